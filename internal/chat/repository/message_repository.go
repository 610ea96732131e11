package repository

import (
	"context"
	"errors"
	"time"

	"campus_chat_service/internal/chat/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository definition message store with timestamp-cursor paging.
type MessageRepository interface {
	Insert(ctx context.Context, msg *domain.Message) error
	FindByID(ctx context.Context, messageID string) (*domain.Message, error)
	Edit(ctx context.Context, messageID, content string, at time.Time) error
	SoftDelete(ctx context.Context, messageID string, at time.Time) error
	Page(ctx context.Context, roomID string, limit int, cursor *time.Time, direction domain.PageDirection) ([]domain.Message, error)
	MarkRead(ctx context.Context, messageIDs []string, userID string) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository create a MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Insert persist the message and its attachment rows in one transaction.
func (r *messageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		First(&msg, "id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) Edit(ctx context.Context, messageID, content string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"content":   &content,
			"is_edited": true,
			"edited_at": &at,
		}).Error
}

// SoftDelete clear the content and set the flags; the row stays for history.
func (r *messageRepository) SoftDelete(ctx context.Context, messageID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"content":    nil,
			"is_deleted": true,
			"deleted_at": &at,
		}).Error
}

// Page fetch up to limit rows around the cursor. "before" selects
// sent_at < cursor newest first, "after" selects sent_at > cursor oldest
// first. Callers pass limit+1 to detect a further page without a second
// query.
func (r *messageRepository) Page(ctx context.Context, roomID string, limit int, cursor *time.Time, direction domain.PageDirection) ([]domain.Message, error) {
	q := r.db.WithContext(ctx).
		Preload("Attachments").
		Where("room_id = ?", roomID).
		Limit(limit)

	switch direction {
	case domain.DirectionAfter:
		if cursor != nil {
			q = q.Where("sent_at > ?", *cursor)
		}
		q = q.Order("sent_at ASC")
	default:
		if cursor != nil {
			q = q.Where("sent_at < ?", *cursor)
		}
		q = q.Order("sent_at DESC")
	}

	var msgs []domain.Message
	err := q.Find(&msgs).Error
	return msgs, err
}

// MarkRead record read receipts; re-marking an already-read message is a
// no-op.
func (r *messageRepository) MarkRead(ctx context.Context, messageIDs []string, userID string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	reads := make([]domain.MessageRead, 0, len(messageIDs))
	for _, id := range messageIDs {
		reads = append(reads, domain.MessageRead{MessageID: id, UserID: userID})
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&reads).Error
}
