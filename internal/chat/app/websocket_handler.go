package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"campus_chat_service/internal/chat/domain"
	"campus_chat_service/internal/chat/repository"
	"campus_chat_service/pkg/logger"
	"campus_chat_service/pkg/middlewares"
	"campus_chat_service/pkg/token"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// GroupWebsocketHandler serves the /ws/groups namespace: class, section and
// group rooms, history paging and the admin moderation actions.
type GroupWebsocketHandler struct {
	sessions   *SessionManager
	validator  AccessValidator
	messageUC  MessageUseCase
	moderation ModerationUseCase
	pubsub     repository.PubSub
	opTimeout  time.Duration
}

// NewGroupWebsocketHandler create GroupWebsocketHandler
func NewGroupWebsocketHandler(
	sessions *SessionManager,
	validator AccessValidator,
	messageUC MessageUseCase,
	moderation ModerationUseCase,
	pubsub repository.PubSub,
	opTimeout time.Duration,
) *GroupWebsocketHandler {
	return &GroupWebsocketHandler{
		sessions:   sessions,
		validator:  validator,
		messageUC:  messageUC,
		moderation: moderation,
		pubsub:     pubsub,
		opTimeout:  opTimeout,
	}
}

// connState per-connection room subscriptions. Each joined room holds a
// cancel for its pub/sub subscription so a disconnect tears all of them down.
// send is the write-serialized side of the connection; every outbound frame
// goes through it.
type connState struct {
	userID    string
	role      token.RoleType
	send      Conn
	roomSubs  map[string]context.CancelFunc
	closeCtx  context.Context
	closeStop context.CancelFunc
}

// HandleConnection is the entry point of one /ws/groups connection.
func (h *GroupWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	userID, _ := conn.Locals(middlewares.TokenUserID).(string)
	roleStr, _ := conn.Locals(middlewares.TokenRole).(string)
	logger.Log.Info("group websocket connected", zap.String("userID", userID))

	ticker := time.NewTicker(10 * time.Minute)
	closeCtx, cancel := context.WithCancel(context.Background())
	send := newLockedConn(conn)

	state := &connState{
		userID:    userID,
		role:      token.RoleType(roleStr),
		send:      send,
		roomSubs:  make(map[string]context.CancelFunc),
		closeCtx:  closeCtx,
		closeStop: cancel,
	}

	h.sessions.Register(userID, send)

	defer func() {
		ticker.Stop()
		logger.Log.Info("group websocket close", zap.String("userID", userID))
		h.sessions.Unregister(userID, send)
		conn.Close()
		cancel()
	}()

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(appData),
			time.Now().Add(time.Second),
		)
	})

	// Out-of-band deliveries (moderation against this user, cross-node
	// notices) arrive on the personal channel.
	h.pubsub.Subscribe(closeCtx, repository.UserChannel(userID), func(resp domain.WSResponse) {
		h.sendResponse(send, resp)
	})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := send.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
					logger.Log.Errorf("ping error:", err)
					return
				}
			case <-closeCtx.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Info("connection closed", zap.String("userID", userID))
			} else {
				logger.Log.Errorf("websocket read error:", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			h.sendError(send, string(domain.ErrorEvent), "unsupported message type")
			continue
		}
		h.textMessageAction(ctx, state, message)
	}
}

func (h *GroupWebsocketHandler) textMessageAction(ctx context.Context, state *connState, msg []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		h.sendError(state.send, string(domain.ErrorEvent), "malformed request")
		return
	}

	ctx, cancel := opDeadline(ctx, h.opTimeout)
	defer cancel()

	resp := domain.WSResponse{Action: req.Action, Success: false, Payload: map[string]interface{}{}}
	switch req.Action {
	case string(domain.JoinGroup):
		h.joinGroup(ctx, state, req, &resp)

	case string(domain.SendGroupMessage):
		view, err := h.messageUC.Send(ctx, state.userID, req.RoomID, req.Content, req.ReplyToID, req.Attachments)
		if err != nil {
			h.setError(&resp, err)
		} else {
			resp.Success = true
			resp.Payload["message"] = view
		}

	case string(domain.GetGroupMessages):
		page, err := h.messageUC.GetMessages(ctx, state.userID, req.RoomID, req.Limit, req.Cursor, domain.PageDirection(req.Direction))
		if err != nil {
			h.setError(&resp, err)
		} else {
			resp.Action = string(domain.GroupMessages)
			resp.Success = true
			resp.Payload["room_id"] = req.RoomID
			resp.Payload["page"] = page
		}

	case string(domain.MarkGroupMessagesRead):
		if err := h.messageUC.MarkRead(ctx, state.userID, req.RoomID, req.MessageIDs); err != nil {
			h.setError(&resp, err)
		} else {
			resp.Success = true
		}

	case string(domain.EditMessage):
		view, err := h.messageUC.Edit(ctx, state.userID, req.MessageID, req.Content)
		if err != nil {
			h.setError(&resp, err)
		} else {
			resp.Success = true
			resp.Payload["message"] = view
		}

	case string(domain.DeleteMessage):
		if _, err := h.messageUC.Delete(ctx, state.userID, req.MessageID); err != nil {
			h.setError(&resp, err)
		} else {
			resp.Success = true
		}

	case string(domain.ToggleRoomMessaging):
		enabled, err := h.moderation.ToggleMessaging(ctx, state.userID, state.role, req.RoomID, req.Enabled)
		if err != nil {
			h.setError(&resp, err)
		} else {
			resp.Success = true
			h.broadcast(req.RoomID, domain.RoomMessagingToggled, map[string]interface{}{
				"room_id": req.RoomID,
				"enabled": enabled,
				"by":      state.userID,
			})
		}

	case string(domain.SetSlowMode):
		err := h.moderation.SetSlowMode(ctx, state.userID, state.role, req.RoomID, req.Seconds)
		if err != nil {
			h.setError(&resp, err)
		} else {
			resp.Success = true
			h.broadcast(req.RoomID, domain.SlowModeChanged, map[string]interface{}{
				"room_id": req.RoomID,
				"seconds": req.Seconds,
				"by":      state.userID,
			})
		}

	case string(domain.InviteUser):
		err := h.moderation.Invite(ctx, state.userID, state.role, req.RoomID, req.UserID, domain.Role(req.Role))
		if err != nil {
			h.setError(&resp, err)
		} else {
			resp.Success = true
			h.broadcast(req.RoomID, domain.UserInvited, map[string]interface{}{
				"room_id": req.RoomID,
				"user_id": req.UserID,
				"by":      state.userID,
			})
		}

	case string(domain.RemoveUser):
		err := h.moderation.Remove(ctx, state.userID, state.role, req.RoomID, req.UserID, req.Reason)
		if err != nil {
			h.setError(&resp, err)
		} else {
			resp.Success = true
			h.broadcast(req.RoomID, domain.UserRemoved, map[string]interface{}{
				"room_id": req.RoomID,
				"user_id": req.UserID,
				"by":      state.userID,
			})
		}

	case string(domain.MuteUser):
		err := h.moderation.Mute(ctx, state.userID, state.role, req.RoomID, req.UserID, req.Reason)
		if err != nil {
			h.setError(&resp, err)
		} else {
			resp.Success = true
			h.broadcast(req.RoomID, domain.UserMuted, map[string]interface{}{
				"room_id": req.RoomID,
				"user_id": req.UserID,
				"by":      state.userID,
			})
		}

	case string(domain.UnmuteUser):
		err := h.moderation.Unmute(ctx, state.userID, state.role, req.RoomID, req.UserID)
		if err != nil {
			h.setError(&resp, err)
		} else {
			resp.Success = true
			h.broadcast(req.RoomID, domain.UserUnmuted, map[string]interface{}{
				"room_id": req.RoomID,
				"user_id": req.UserID,
				"by":      state.userID,
			})
		}

	case string(domain.PinMessage):
		err := h.moderation.Pin(ctx, state.userID, state.role, req.RoomID, req.MessageID)
		if err != nil {
			h.setError(&resp, err)
		} else {
			resp.Success = true
			h.broadcast(req.RoomID, domain.MessagePinned, map[string]interface{}{
				"room_id":    req.RoomID,
				"message_id": req.MessageID,
				"by":         state.userID,
			})
		}

	case string(domain.UnpinMessage):
		err := h.moderation.Unpin(ctx, state.userID, state.role, req.RoomID, req.MessageID)
		if err != nil {
			h.setError(&resp, err)
		} else {
			resp.Success = true
			h.broadcast(req.RoomID, domain.MessageUnpinned, map[string]interface{}{
				"room_id":    req.RoomID,
				"message_id": req.MessageID,
				"by":         state.userID,
			})
		}

	case string(domain.AdminDeleteMessage):
		err := h.messageUC.AdminDelete(ctx, state.userID, state.role, req.RoomID, req.MessageID, req.Reason)
		if err != nil {
			h.setError(&resp, err)
		} else {
			resp.Success = true
		}

	default:
		resp.Action = string(domain.ErrorEvent)
		resp.Error = "unknown action"
	}

	if resp.Error != "" {
		logger.Log.Error("group websocket action failed",
			zap.String("userID", state.userID),
			zap.String("action", req.Action),
			zap.String("err", resp.Error),
		)
	}
	h.sendResponse(state.send, resp)
}

// joinGroup validate access, register presence and subscribe the connection
// to the room channel. Rejoining an already-joined room only refreshes the
// response.
func (h *GroupWebsocketHandler) joinGroup(ctx context.Context, state *connState, req domain.WSRequest, resp *domain.WSResponse) {
	allowed, err := h.validator.CanAccess(ctx, state.userID, req.RoomID)
	if err != nil {
		h.setError(resp, err)
		return
	}
	if !allowed {
		h.setError(resp, &domain.AuthorizationDeniedError{Reason: domain.ReasonNotMember})
		return
	}

	if _, joined := state.roomSubs[req.RoomID]; !joined {
		roomCtx, cancel := context.WithCancel(state.closeCtx)
		state.roomSubs[req.RoomID] = cancel

		send := state.send
		h.pubsub.Subscribe(roomCtx, repository.RoomChannel(req.RoomID), func(r domain.WSResponse) {
			h.sendResponse(send, r)
		})
		h.sessions.JoinRoom(state.userID, req.RoomID)
	}

	resp.Action = string(domain.JoinedGroup)
	resp.Success = true
	resp.Payload["room_id"] = req.RoomID
	resp.Payload["online_members"] = h.sessions.OnlineMembersOf(req.RoomID)
}

func (h *GroupWebsocketHandler) broadcast(roomID string, action domain.Action, payload map[string]interface{}) {
	err := h.pubsub.Publish(repository.RoomChannel(roomID), domain.WSResponse{
		Action:  string(action),
		Success: true,
		Payload: payload,
	})
	if err != nil {
		logger.Log.Errorf("broadcast publish error:", err)
	}
}

// setError map domain errors onto the response shape clients branch on.
func (h *GroupWebsocketHandler) setError(resp *domain.WSResponse, err error) {
	resp.Error = err.Error()

	var perm *domain.PermissionDeniedError
	if errors.As(err, &perm) {
		resp.Payload["reason"] = perm.Reason
		if perm.Reason == domain.ReasonSlowMode {
			resp.Payload["wait_seconds"] = perm.WaitSeconds
		}
		return
	}

	var auth *domain.AuthorizationDeniedError
	if errors.As(err, &auth) {
		resp.Payload["reason"] = auth.Reason
		return
	}

	if domain.IsNotFound(err) {
		resp.Payload["reason"] = "not_found"
	}
}

func (h *GroupWebsocketHandler) sendResponse(conn Conn, resp domain.WSResponse) {
	b, _ := json.Marshal(resp)
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Log.Errorf("write message error:", err)
	}
}

func (h *GroupWebsocketHandler) sendError(conn Conn, action, errorMsg string) {
	h.sendResponse(conn, domain.WSResponse{
		Action: action,
		Error:  errorMsg,
		Payload: map[string]interface{}{
			"error": errorMsg,
		},
	})
}
