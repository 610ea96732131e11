package app

import (
	"context"
	"encoding/json"
	"time"

	"campus_chat_service/internal/chat/domain"
	"campus_chat_service/internal/chat/repository"
	"campus_chat_service/pkg/logger"
	"campus_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// PrivateWebsocketHandler serves the /ws/private namespace: one-on-one
// messaging, typing relays and online status. Every connection subscribes to
// its own user channel, which is how a peer's message reaches it regardless
// of which gateway node the peer hit.
type PrivateWebsocketHandler struct {
	sessions  *SessionManager
	messageUC MessageUseCase
	pubsub    repository.PubSub
	opTimeout time.Duration
}

// NewPrivateWebsocketHandler create PrivateWebsocketHandler
func NewPrivateWebsocketHandler(
	sessions *SessionManager,
	messageUC MessageUseCase,
	pubsub repository.PubSub,
	opTimeout time.Duration,
) *PrivateWebsocketHandler {
	return &PrivateWebsocketHandler{
		sessions:  sessions,
		messageUC: messageUC,
		pubsub:    pubsub,
		opTimeout: opTimeout,
	}
}

// HandleConnection is the entry point of one /ws/private connection.
func (h *PrivateWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	userID, _ := conn.Locals(middlewares.TokenUserID).(string)
	logger.Log.Info("private websocket connected", zap.String("userID", userID))

	ticker := time.NewTicker(10 * time.Minute)
	closeCtx, cancel := context.WithCancel(context.Background())
	send := newLockedConn(conn)

	h.sessions.Register(userID, send)

	defer func() {
		ticker.Stop()
		logger.Log.Info("private websocket close", zap.String("userID", userID))
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
			continue
		}
		h.textMessageAction(ctx, send, userID, message)
	}
}

func (h *PrivateWebsocketHandler) textMessageAction(ctx context.Context, conn Conn, userID string, msg []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		h.sendResponse(conn, domain.WSResponse{
			Action: string(domain.ErrorEvent),
			Error:  "malformed request",
		})
		return
	}

	ctx, cancel := opDeadline(ctx, h.opTimeout)
	defer cancel()

	resp := domain.WSResponse{Action: req.Action, Success: false, Payload: map[string]interface{}{}}
	switch req.Action {
	case string(domain.SendPrivateMessage):
		view, err := h.messageUC.SendPrivate(ctx, userID, req.PeerID, req.Content, req.ReplyToID, req.Attachments)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload["message"] = view
		}

	case string(domain.GetPrivateMessages):
		page, err := h.messageUC.GetMessages(ctx, userID, req.RoomID, req.Limit, req.Cursor, domain.PageDirection(req.Direction))
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Action = string(domain.PrivateMessages)
			resp.Success = true
			resp.Payload["room_id"] = req.RoomID
			resp.Payload["page"] = page
		}

	case string(domain.TypingPrivate):
		// Ephemeral relay, never persisted.
		err := h.pubsub.Publish(repository.UserChannel(req.PeerID), domain.WSResponse{
			Action:  string(domain.UserTyping),
			Success: true,
			Payload: map[string]interface{}{
				"user_id":   userID,
				"is_typing": req.IsTyping,
			},
		})
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
		}

	case string(domain.GetOnlineStatus):
		status := make(map[string]interface{}, len(req.UserIDs))
		for _, id := range req.UserIDs {
			status[id] = h.sessions.IsOnline(id)
		}
		resp.Action = string(domain.OnlineStatus)
		resp.Success = true
		resp.Payload = status

	default:
		resp.Action = string(domain.ErrorEvent)
		resp.Error = "unknown action"
	}

	if resp.Error != "" {
		logger.Log.Error("private websocket action failed",
			zap.String("userID", userID),
			zap.String("action", req.Action),
			zap.String("err", resp.Error),
		)
	}
	h.sendResponse(conn, resp)
}

func (h *PrivateWebsocketHandler) sendResponse(conn Conn, resp domain.WSResponse) {
	b, _ := json.Marshal(resp)
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Log.Errorf("write message error:", err)
	}
}
