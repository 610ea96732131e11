package domain

// Action websocket request action
type Action string

// Group namespace actions.
const (
	// JoinGroup websocket action join_group
	JoinGroup Action = "join_group"
	// SendGroupMessage websocket action send_group_message
	SendGroupMessage Action = "send_group_message"
	// GetGroupMessages websocket action get_group_messages
	GetGroupMessages Action = "get_group_messages"
	// MarkGroupMessagesRead websocket action mark_group_messages_read
	MarkGroupMessagesRead Action = "mark_group_messages_read"
	// EditMessage websocket action edit_message
	EditMessage Action = "edit_message"
	// DeleteMessage websocket action delete_message
	DeleteMessage Action = "delete_message"

	// ToggleRoomMessaging admin action toggle_room_messaging
	ToggleRoomMessaging Action = "toggle_room_messaging"
	// SetSlowMode admin action set_slow_mode
	SetSlowMode Action = "set_slow_mode"
	// InviteUser admin action invite_user
	InviteUser Action = "invite_user"
	// RemoveUser admin action remove_user
	RemoveUser Action = "remove_user"
	// MuteUser admin action mute_user
	MuteUser Action = "mute_user"
	// UnmuteUser admin action unmute_user
	UnmuteUser Action = "unmute_user"
	// PinMessage admin action pin_message
	PinMessage Action = "pin_message"
	// UnpinMessage admin action unpin_message
	UnpinMessage Action = "unpin_message"
	// AdminDeleteMessage admin action admin_delete_message
	AdminDeleteMessage Action = "admin_delete_message"
)

// Private namespace actions.
const (
	// SendPrivateMessage websocket action send_private_message
	SendPrivateMessage Action = "send_private_message"
	// GetPrivateMessages websocket action get_private_messages
	GetPrivateMessages Action = "get_private_messages"
	// TypingPrivate websocket action typing_private
	TypingPrivate Action = "typing_private"
	// GetOnlineStatus websocket action get_online_status
	GetOnlineStatus Action = "get_online_status"
)

// Server-emitted events.
const (
	// JoinedGroup response event joined_group
	JoinedGroup Action = "joined_group"
	// GroupMessageReceived broadcast event group_message_received
	GroupMessageReceived Action = "group_message_received"
	// GroupMessages response event group_messages
	GroupMessages Action = "group_messages"
	// MessagesRead broadcast event messages_read
	MessagesRead Action = "messages_read"
	// MessageEdited broadcast event message_edited
	MessageEdited Action = "message_edited"
	// MessageDeleted broadcast event message_deleted
	MessageDeleted Action = "message_deleted"
	// RoomMessagingToggled broadcast event room_messaging_toggled
	RoomMessagingToggled Action = "room_messaging_toggled"
	// SlowModeChanged broadcast event slow_mode_changed
	SlowModeChanged Action = "slow_mode_changed"
	// UserInvited broadcast event user_invited
	UserInvited Action = "user_invited"
	// UserRemoved broadcast event user_removed
	UserRemoved Action = "user_removed"
	// UserMuted broadcast event user_muted
	UserMuted Action = "user_muted"
	// UserUnmuted broadcast event user_unmuted
	UserUnmuted Action = "user_unmuted"
	// MessagePinned broadcast event message_pinned
	MessagePinned Action = "message_pinned"
	// MessageUnpinned broadcast event message_unpinned
	MessageUnpinned Action = "message_unpinned"
	// MessageAdminDeleted broadcast event message_admin_deleted
	MessageAdminDeleted Action = "message_admin_deleted"
	// PrivateMessageReceived broadcast event private_message_received
	PrivateMessageReceived Action = "private_message_received"
	// PrivateMessages response event private_messages
	PrivateMessages Action = "private_messages"
	// UserTyping relay event user_typing
	UserTyping Action = "user_typing"
	// OnlineStatus response event online_status
	OnlineStatus Action = "online_status"
	// SessionReplaced notice sent to an evicted connection
	SessionReplaced Action = "session_replaced"
	// ErrorEvent rejection event
	ErrorEvent Action = "error"
)

// WSRequest websocket Request
type WSRequest struct {
	Action      string            `json:"action"`
	RoomID      string            `json:"room_id,omitempty"`
	PeerID      string            `json:"peer_id,omitempty"`
	Content     string            `json:"content,omitempty"`
	ReplyToID   string            `json:"reply_to_id,omitempty"`
	Attachments []AttachmentInput `json:"attachments,omitempty"`
	MessageID   string            `json:"message_id,omitempty"`
	MessageIDs  []string          `json:"message_ids,omitempty"`
	UserID      string            `json:"user_id,omitempty"`
	UserIDs     []string          `json:"user_ids,omitempty"`
	Role        string            `json:"role,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Enabled     *bool             `json:"enabled,omitempty"`
	Seconds     int               `json:"seconds,omitempty"`
	Limit       int               `json:"limit,omitempty"`
	Cursor      *int64            `json:"cursor,omitempty"`
	Direction   string            `json:"direction,omitempty"`
	IsTyping    bool              `json:"is_typing,omitempty"`
}

// WSResponse websocket Response
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}
