package domain

import "time"

// MessageType definition message type
type MessageType string

const (
	// MessageTypeText plain text message
	MessageTypeText MessageType = "TEXT"
	// MessageTypeFile message carrying file attachments
	MessageTypeFile MessageType = "FILE"
)

// Message definition chat message. Deletion is soft: content is cleared and
// the flag set, the row stays.
type Message struct {
	ID          string      `gorm:"type:uuid;primaryKey"`
	RoomID      string      `gorm:"type:uuid;not null;index:idx_messages_room_sent"`
	SenderID    string      `gorm:"not null"`
	Content     *string     `gorm:"type:text"`
	MessageType MessageType `gorm:"type:varchar(8);not null;default:'TEXT'"`
	ReplyToID   *string     `gorm:"type:uuid"`
	IsEdited    bool        `gorm:"not null;default:false"`
	IsDeleted   bool        `gorm:"not null;default:false"`
	SentAt      time.Time   `gorm:"not null;index:idx_messages_room_sent"`
	EditedAt    *time.Time
	DeletedAt   *time.Time

	Attachments []MessageAttachment `gorm:"foreignKey:MessageID"`
}

// MessageAttachment links a message to a FileStore object.
type MessageAttachment struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	MessageID   string `gorm:"type:uuid;not null;index"`
	FileRef     string `gorm:"not null"`
	FileName    string `gorm:"not null"`
	ContentType string
	Size        int64
}

// MessageRead one user's read receipt for one message
type MessageRead struct {
	MessageID string    `gorm:"type:uuid;primaryKey"`
	UserID    string    `gorm:"primaryKey"`
	ReadAt    time.Time `gorm:"autoCreateTime"`
}

// AttachmentInput is a client-supplied reference to an already-uploaded file.
type AttachmentInput struct {
	FileRef     string `json:"file_ref"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// AttachmentView attachment metadata with a servable URL
type AttachmentView struct {
	FileRef     string `json:"file_ref"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

// ReplyPreview truncated view of the replied-to message
type ReplyPreview struct {
	MessageID string `json:"message_id"`
	SenderID  string `json:"sender_id"`
	Preview   string `json:"preview"`
	IsDeleted bool   `json:"is_deleted"`
}

// MessageView is the response shape for a sent or fetched message.
type MessageView struct {
	ID          string           `json:"id"`
	RoomID      string           `json:"room_id"`
	SenderID    string           `json:"sender_id"`
	SenderName  string           `json:"sender_name"`
	Content     *string          `json:"content"`
	MessageType MessageType      `json:"message_type"`
	Reply       *ReplyPreview    `json:"reply,omitempty"`
	Attachments []AttachmentView `json:"attachments,omitempty"`
	IsEdited    bool             `json:"is_edited"`
	IsDeleted   bool             `json:"is_deleted"`
	SentAt      int64            `json:"sent_at"`
	EditedAt    *int64           `json:"edited_at,omitempty"`
}

// PageDirection definition pagination direction relative to the cursor
type PageDirection string

const (
	// DirectionBefore select sentAt < cursor, newest first
	DirectionBefore PageDirection = "before"
	// DirectionAfter select sentAt > cursor, oldest first
	DirectionAfter PageDirection = "after"
)

// MessagePage one page of messages. Cursors are the boundary timestamps
// (unix milliseconds) of the returned page, not wall-clock time, so paging
// stays stable under concurrent inserts.
type MessagePage struct {
	Messages   []MessageView `json:"messages"`
	HasMore    bool          `json:"has_more"`
	NextCursor *int64        `json:"next_cursor,omitempty"`
	PrevCursor *int64        `json:"prev_cursor,omitempty"`
}
