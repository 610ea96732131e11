package repository

import (
	"context"
	"errors"

	"campus_chat_service/internal/chat/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoomRepository definition chat room store. Find helpers return (nil, nil)
// when no row matches so callers can branch on existence without error
// juggling.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	FindByID(ctx context.Context, roomID string) (*domain.Room, error)
	FindActiveClassRoom(ctx context.Context, classID string) (*domain.Room, error)
	FindActiveSectionRoom(ctx context.Context, taID, courseID string) (*domain.Room, error)
	FindPrivateRoom(ctx context.Context, pairKey string) (*domain.Room, error)
	Rename(ctx context.Context, roomID, name string) error
	Deactivate(ctx context.Context, roomID string) error
	SetMessagingEnabled(ctx context.Context, roomID string, enabled bool) error
	SetSlowMode(ctx context.Context, roomID string, seconds *int) error
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository create a RoomRepository
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

// Create insert the room. PRIVATE rooms carry a unique PairKey; a concurrent
// double-create is absorbed by DoNothing and the caller re-reads.
func (r *roomRepository) Create(ctx context.Context, room *domain.Room) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "pair_key"}}, DoNothing: true}).
		Create(room).Error
}

func (r *roomRepository) FindByID(ctx context.Context, roomID string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) FindActiveClassRoom(ctx context.Context, classID string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).
		Where("type = ? AND course_class_id = ? AND is_active", domain.RoomTypeClass, classID).
		First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) FindActiveSectionRoom(ctx context.Context, taID, courseID string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).
		Where("type = ? AND ta_id = ? AND course_id = ? AND is_active", domain.RoomTypeSection, taID, courseID).
		First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) FindPrivateRoom(ctx context.Context, pairKey string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).
		Where("type = ? AND pair_key = ?", domain.RoomTypePrivate, pairKey).
		First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) Rename(ctx context.Context, roomID, name string) error {
	return r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("id = ?", roomID).
		Update("name", name).Error
}

// Deactivate close the room and disable messaging. Memberships stay so
// history is preserved.
func (r *roomRepository) Deactivate(ctx context.Context, roomID string) error {
	return r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("id = ?", roomID).
		Updates(map[string]interface{}{
			"is_active":            false,
			"is_messaging_enabled": false,
		}).Error
}

func (r *roomRepository) SetMessagingEnabled(ctx context.Context, roomID string, enabled bool) error {
	return r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("id = ?", roomID).
		Update("is_messaging_enabled", enabled).Error
}

func (r *roomRepository) SetSlowMode(ctx context.Context, roomID string, seconds *int) error {
	return r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("id = ?", roomID).
		Update("slow_mode_seconds", seconds).Error
}

// Migrate create/update the chat tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Room{},
		&domain.Membership{},
		&domain.Message{},
		&domain.MessageAttachment{},
		&domain.MessageRead{},
		&domain.PinnedMessage{},
	)
}
