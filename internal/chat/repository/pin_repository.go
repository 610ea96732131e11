package repository

import (
	"context"
	"errors"

	"campus_chat_service/internal/chat/domain"

	"gorm.io/gorm"
)

// Pin rejection causes.
var (
	// ErrPinLimit the room already holds the maximum number of pins
	ErrPinLimit = errors.New("pin limit reached")
	// ErrAlreadyPinned the message is already pinned in this room
	ErrAlreadyPinned = errors.New("message already pinned")
)

// PinRepository definition pinned message store enforcing the per-room cap.
type PinRepository interface {
	Pin(ctx context.Context, pin *domain.PinnedMessage) error
	Unpin(ctx context.Context, roomID, messageID string) error
	List(ctx context.Context, roomID string) ([]domain.PinnedMessage, error)
}

type pinRepository struct {
	db *gorm.DB
}

// NewPinRepository create a PinRepository
func NewPinRepository(db *gorm.DB) PinRepository {
	return &pinRepository{db: db}
}

// Pin count-then-insert inside one transaction so concurrent pins cannot
// exceed the cap.
func (r *pinRepository) Pin(ctx context.Context, pin *domain.PinnedMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&domain.PinnedMessage{}).
			Where("room_id = ? AND message_id = ?", pin.RoomID, pin.MessageID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyPinned
		}

		var count int64
		if err := tx.Model(&domain.PinnedMessage{}).
			Where("room_id = ?", pin.RoomID).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= domain.MaxPinnedPerRoom {
			return ErrPinLimit
		}

		return tx.Create(pin).Error
	})
}

func (r *pinRepository) Unpin(ctx context.Context, roomID, messageID string) error {
	res := r.db.WithContext(ctx).
		Where("room_id = ? AND message_id = ?", roomID, messageID).
		Delete(&domain.PinnedMessage{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundError("pin")
	}
	return nil
}

func (r *pinRepository) List(ctx context.Context, roomID string) ([]domain.PinnedMessage, error) {
	var pins []domain.PinnedMessage
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("pinned_at ASC").
		Find(&pins).Error
	return pins, err
}
