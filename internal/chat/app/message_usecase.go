package app

import (
	"context"
	"time"

	academic "campus_chat_service/internal/academic/repository"
	"campus_chat_service/internal/chat/domain"
	"campus_chat_service/internal/chat/repository"
	"campus_chat_service/pkg"
	errprocess "campus_chat_service/pkg/err"
	"campus_chat_service/pkg/filestore"
	"campus_chat_service/pkg/logger"
	"campus_chat_service/pkg/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
	replyPreviewMax  = 80
)

// MessageUseCase definition message operations: send, edit, delete, history
// paging and read receipts.
type MessageUseCase interface {
	Send(ctx context.Context, senderID, roomID, content, replyToID string, atts []domain.AttachmentInput) (*domain.MessageView, error)
	SendPrivate(ctx context.Context, senderID, peerID, content, replyToID string, atts []domain.AttachmentInput) (*domain.MessageView, error)
	Edit(ctx context.Context, userID, messageID, content string) (*domain.MessageView, error)
	Delete(ctx context.Context, userID, messageID string) (*domain.Message, error)
	AdminDelete(ctx context.Context, actorID string, actorRole token.RoleType, roomID, messageID, reason string) error
	GetMessages(ctx context.Context, userID, roomID string, limit int, cursor *int64, direction domain.PageDirection) (*domain.MessagePage, error)
	MarkRead(ctx context.Context, userID, roomID string, messageIDs []string) error
}

type messageUseCase struct {
	roomRepo   repository.RoomRepository
	memberRepo repository.MembershipRepository
	msgRepo    repository.MessageRepository
	auditRepo  repository.AuditRepository
	academic   academic.AcademicRepository
	validator  AccessValidator
	moderation ModerationUseCase
	files      filestore.FileStore
	pubsub     repository.PubSub
}

// NewMessageUseCase create a MessageUseCase
func NewMessageUseCase(
	roomRepo repository.RoomRepository,
	memberRepo repository.MembershipRepository,
	msgRepo repository.MessageRepository,
	auditRepo repository.AuditRepository,
	academicRepo academic.AcademicRepository,
	validator AccessValidator,
	moderation ModerationUseCase,
	files filestore.FileStore,
	pubsub repository.PubSub,
) MessageUseCase {
	return &messageUseCase{
		roomRepo:   roomRepo,
		memberRepo: memberRepo,
		msgRepo:    msgRepo,
		auditRepo:  auditRepo,
		academic:   academicRepo,
		validator:  validator,
		moderation: moderation,
		files:      files,
		pubsub:     pubsub,
	}
}

// Send accept a message into roomID. Preconditions run in a fixed order:
// access first, then the moderation gate, then reply and content validation.
// On success the view is broadcast on the room channel (or both user channels
// for PRIVATE rooms) and the sender's slow-mode stamp is updated.
func (u *messageUseCase) Send(ctx context.Context, senderID, roomID, content, replyToID string, atts []domain.AttachmentInput) (*domain.MessageView, error) {
	room, err := u.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, domain.NotFoundError("room")
	}

	allowed, err := u.validator.CanAccess(ctx, senderID, roomID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, &domain.AuthorizationDeniedError{Reason: domain.ReasonNotMember}
	}

	perm, err := u.moderation.CheckPermissions(ctx, senderID, roomID)
	if err != nil {
		return nil, err
	}
	if !perm.CanSend {
		return nil, &domain.PermissionDeniedError{Reason: perm.Reason, WaitSeconds: perm.WaitSeconds}
	}

	var replyTo *string
	if replyToID != "" {
		replied, err := u.msgRepo.FindByID(ctx, replyToID)
		if err != nil {
			return nil, err
		}
		if replied == nil || replied.RoomID != roomID || replied.IsDeleted {
			return nil, domain.NotFoundError("reply message")
		}
		replyTo = &replyToID
	}

	if content == "" && len(atts) == 0 {
		return nil, errprocess.Set("message requires content or attachments")
	}

	now := time.Now()
	msg := &domain.Message{
		ID:          uuid.New().String(),
		RoomID:      roomID,
		SenderID:    senderID,
		MessageType: domain.MessageTypeText,
		ReplyToID:   replyTo,
		SentAt:      now,
	}
	if content != "" {
		msg.Content = &content
	}
	if len(atts) > 0 {
		msg.MessageType = domain.MessageTypeFile
		for _, a := range atts {
			msg.Attachments = append(msg.Attachments, domain.MessageAttachment{
				MessageID:   msg.ID,
				FileRef:     a.FileRef,
				FileName:    a.FileName,
				ContentType: a.ContentType,
				Size:        a.Size,
			})
		}
	}

	if err := u.msgRepo.Insert(ctx, msg); err != nil {
		return nil, err
	}
	if err := u.memberRepo.StampLastMessage(ctx, roomID, senderID, now); err != nil {
		logger.Log.Warn("last message stamp failed",
			zap.String("room", roomID), zap.String("user", senderID), zap.Error(err))
	}

	view, err := u.toView(ctx, msg)
	if err != nil {
		return nil, err
	}

	u.broadcast(ctx, room, view)
	return view, nil
}

// SendPrivate resolve (or lazily create) the PRIVATE room for the sorted user
// pair, then send through the normal gate. Blocks set in a private room keep
// working here: a removed peer fails CheckPermissions until re-invited.
func (u *messageUseCase) SendPrivate(ctx context.Context, senderID, peerID, content, replyToID string, atts []domain.AttachmentInput) (*domain.MessageView, error) {
	if peerID == "" || peerID == senderID {
		return nil, errprocess.Set("private messages need a peer other than the sender")
	}

	// The peer must be a real user before any room is created.
	if _, err := u.academic.DisplayName(ctx, peerID); err != nil {
		return nil, err
	}

	room, err := u.ensurePrivateRoom(ctx, senderID, peerID)
	if err != nil {
		return nil, err
	}

	return u.Send(ctx, senderID, room.ID, content, replyToID, atts)
}

func (u *messageUseCase) ensurePrivateRoom(ctx context.Context, a, b string) (*domain.Room, error) {
	lo, hi := pkg.SortPair(a, b)
	pairKey := lo + ":" + hi

	room, err := u.roomRepo.FindPrivateRoom(ctx, pairKey)
	if err != nil {
		return nil, err
	}
	if room != nil {
		return room, nil
	}

	room = &domain.Room{
		ID:                 uuid.New().String(),
		Type:               domain.RoomTypePrivate,
		PairKey:            &pairKey,
		IsActive:           true,
		IsMessagingEnabled: true,
	}
	if err := u.roomRepo.Create(ctx, room); err != nil {
		return nil, err
	}

	// A concurrent create may have won on the pair key; re-read either way so
	// both callers end up on the same row.
	room, err = u.roomRepo.FindPrivateRoom(ctx, pairKey)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, errprocess.Set("private room creation raced and lost the row")
	}

	for _, userID := range []string{lo, hi} {
		err = u.memberRepo.Upsert(ctx, &domain.Membership{
			RoomID: room.ID,
			UserID: userID,
			Role:   domain.RoleMember,
		})
		if err != nil {
			return nil, err
		}
	}
	return room, nil
}

// Edit replace the content of the sender's own message.
func (u *messageUseCase) Edit(ctx context.Context, userID, messageID, content string) (*domain.MessageView, error) {
	if content == "" {
		return nil, errprocess.Set("edited content cannot be empty")
	}

	msg, err := u.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.IsDeleted {
		return nil, domain.NotFoundError("message")
	}
	if msg.SenderID != userID {
		return nil, &domain.AuthorizationDeniedError{Reason: "not_the_sender"}
	}

	now := time.Now()
	if err := u.msgRepo.Edit(ctx, messageID, content, now); err != nil {
		return nil, err
	}

	msg.Content = &content
	msg.IsEdited = true
	msg.EditedAt = &now

	view, err := u.toView(ctx, msg)
	if err != nil {
		return nil, err
	}

	u.pubsub.Publish(repository.RoomChannel(msg.RoomID), domain.WSResponse{
		Action:  string(domain.MessageEdited),
		Success: true,
		Payload: map[string]interface{}{"message": view},
	})
	return view, nil
}

// Delete soft-delete the sender's own message.
func (u *messageUseCase) Delete(ctx context.Context, userID, messageID string) (*domain.Message, error) {
	msg, err := u.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.IsDeleted {
		return nil, domain.NotFoundError("message")
	}
	if msg.SenderID != userID {
		return nil, &domain.AuthorizationDeniedError{Reason: "not_the_sender"}
	}

	if err := u.msgRepo.SoftDelete(ctx, messageID, time.Now()); err != nil {
		return nil, err
	}

	u.pubsub.Publish(repository.RoomChannel(msg.RoomID), domain.WSResponse{
		Action:  string(domain.MessageDeleted),
		Success: true,
		Payload: map[string]interface{}{
			"message_id": messageID,
			"room_id":    msg.RoomID,
		},
	})
	return msg, nil
}

// AdminDelete soft-delete any message in the room after admin verification,
// with an audit record carrying the reason.
func (u *messageUseCase) AdminDelete(ctx context.Context, actorID string, actorRole token.RoleType, roomID, messageID, reason string) error {
	if err := u.moderation.VerifyAdminAccess(ctx, actorID, actorRole, roomID); err != nil {
		return err
	}

	msg, err := u.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil || msg.RoomID != roomID || msg.IsDeleted {
		return domain.NotFoundError("message")
	}

	if err := u.msgRepo.SoftDelete(ctx, messageID, time.Now()); err != nil {
		return err
	}

	err = u.auditRepo.Record(ctx, &repository.AuditEntry{
		RoomID:   roomID,
		ActorID:  actorID,
		Action:   "message_admin_deleted",
		TargetID: messageID,
		Reason:   reason,
	})
	if err != nil {
		logger.Log.Error("audit record failed",
			zap.String("room", roomID), zap.String("message", messageID), zap.Error(err))
	}

	u.pubsub.Publish(repository.RoomChannel(roomID), domain.WSResponse{
		Action:  string(domain.MessageAdminDeleted),
		Success: true,
		Payload: map[string]interface{}{
			"message_id": messageID,
			"room_id":    roomID,
			"deleted_by": actorID,
		},
	})
	return nil
}

// GetMessages page the room history around a unix-millisecond cursor. limit+1
// rows are fetched so HasMore comes from the same query; the extra row is
// dropped from the page.
func (u *messageUseCase) GetMessages(ctx context.Context, userID, roomID string, limit int, cursor *int64, direction domain.PageDirection) (*domain.MessagePage, error) {
	allowed, err := u.validator.CanAccess(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, &domain.AuthorizationDeniedError{Reason: domain.ReasonNotMember}
	}

	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if direction != domain.DirectionAfter {
		direction = domain.DirectionBefore
	}

	var cursorTime *time.Time
	if cursor != nil {
		t := time.UnixMilli(*cursor)
		cursorTime = &t
	}

	msgs, err := u.msgRepo.Page(ctx, roomID, limit+1, cursorTime, direction)
	if err != nil {
		return nil, err
	}

	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[:limit]
	}

	views, err := u.toViews(ctx, msgs)
	if err != nil {
		return nil, err
	}

	page := &domain.MessagePage{
		Messages: views,
		HasMore:  hasMore,
	}
	if len(views) > 0 {
		// "before" pages run newest-to-oldest, so the oldest boundary is the
		// last element; "after" pages run the other way around.
		first := views[0].SentAt
		last := views[len(views)-1].SentAt
		if direction == domain.DirectionBefore {
			page.NextCursor = &last
			page.PrevCursor = &first
		} else {
			page.NextCursor = &first
			page.PrevCursor = &last
		}
	}
	return page, nil
}

// MarkRead record read receipts for the listed messages and broadcast the
// receipt so senders can render it.
func (u *messageUseCase) MarkRead(ctx context.Context, userID, roomID string, messageIDs []string) error {
	allowed, err := u.validator.CanAccess(ctx, userID, roomID)
	if err != nil {
		return err
	}
	if !allowed {
		return &domain.AuthorizationDeniedError{Reason: domain.ReasonNotMember}
	}

	if err := u.msgRepo.MarkRead(ctx, messageIDs, userID); err != nil {
		return err
	}

	u.pubsub.Publish(repository.RoomChannel(roomID), domain.WSResponse{
		Action:  string(domain.MessagesRead),
		Success: true,
		Payload: map[string]interface{}{
			"room_id":     roomID,
			"user_id":     userID,
			"message_ids": messageIDs,
		},
	})
	return nil
}

func (u *messageUseCase) broadcast(ctx context.Context, room *domain.Room, view *domain.MessageView) {
	if room.Type == domain.RoomTypePrivate {
		ids, err := u.memberRepo.MemberIDs(ctx, room.ID)
		if err != nil {
			logger.Log.Error("private fanout member lookup failed",
				zap.String("room", room.ID), zap.Error(err))
			return
		}
		resp := domain.WSResponse{
			Action:  string(domain.PrivateMessageReceived),
			Success: true,
			Payload: map[string]interface{}{"message": view},
		}
		for _, id := range ids {
			if err := u.pubsub.Publish(repository.UserChannel(id), resp); err != nil {
				logger.Log.Error("private fanout publish failed",
					zap.String("user", id), zap.Error(err))
			}
		}
		return
	}

	err := u.pubsub.Publish(repository.RoomChannel(room.ID), domain.WSResponse{
		Action:  string(domain.GroupMessageReceived),
		Success: true,
		Payload: map[string]interface{}{"message": view},
	})
	if err != nil {
		logger.Log.Error("room fanout publish failed",
			zap.String("room", room.ID), zap.Error(err))
	}
}

func (u *messageUseCase) toView(ctx context.Context, msg *domain.Message) (*domain.MessageView, error) {
	views, err := u.toViews(ctx, []domain.Message{*msg})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// toViews resolve sender names in one batch, then per-message reply previews
// and attachment URLs.
func (u *messageUseCase) toViews(ctx context.Context, msgs []domain.Message) ([]domain.MessageView, error) {
	senderIDs := make([]string, 0, len(msgs))
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	names, err := u.academic.DisplayNames(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	views := make([]domain.MessageView, 0, len(msgs))
	for _, m := range msgs {
		v := domain.MessageView{
			ID:          m.ID,
			RoomID:      m.RoomID,
			SenderID:    m.SenderID,
			SenderName:  names[m.SenderID],
			Content:     m.Content,
			MessageType: m.MessageType,
			IsEdited:    m.IsEdited,
			IsDeleted:   m.IsDeleted,
			SentAt:      m.SentAt.UnixMilli(),
		}
		if m.EditedAt != nil {
			at := m.EditedAt.UnixMilli()
			v.EditedAt = &at
		}

		if m.ReplyToID != nil {
			preview, err := u.replyPreview(ctx, *m.ReplyToID)
			if err != nil {
				return nil, err
			}
			v.Reply = preview
		}

		for _, a := range m.Attachments {
			url, err := u.files.ServableURL(ctx, a.FileRef)
			if err != nil {
				logger.Log.Warn("attachment url failed",
					zap.String("ref", a.FileRef), zap.Error(err))
			}
			v.Attachments = append(v.Attachments, domain.AttachmentView{
				FileRef:     a.FileRef,
				FileName:    a.FileName,
				ContentType: a.ContentType,
				Size:        a.Size,
				URL:         url,
			})
		}

		views = append(views, v)
	}
	return views, nil
}

func (u *messageUseCase) replyPreview(ctx context.Context, messageID string) (*domain.ReplyPreview, error) {
	replied, err := u.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if replied == nil {
		return nil, nil
	}

	preview := &domain.ReplyPreview{
		MessageID: replied.ID,
		SenderID:  replied.SenderID,
		IsDeleted: replied.IsDeleted,
	}
	if !replied.IsDeleted && replied.Content != nil {
		runes := []rune(*replied.Content)
		if len(runes) > replyPreviewMax {
			runes = runes[:replyPreviewMax]
		}
		preview.Preview = string(runes)
	}
	return preview, nil
}
