package repository

import (
	"context"
	"errors"
	"time"

	"campus_chat_service/internal/chat/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MembershipRepository definition membership store. Upsert is the only write
// path for new rows: automation events are delivered at least once, so
// replaying the same event must leave the table unchanged.
type MembershipRepository interface {
	Upsert(ctx context.Context, m *domain.Membership) error
	Delete(ctx context.Context, roomID, userID string) error
	Find(ctx context.Context, roomID, userID string) (*domain.Membership, error)
	ListByRoom(ctx context.Context, roomID string) ([]domain.Membership, error)
	MemberIDs(ctx context.Context, roomID string) ([]string, error)
	SetBlocked(ctx context.Context, roomID, userID string, by string) error
	Reactivate(ctx context.Context, roomID, userID string, role domain.Role) error
	SetMuted(ctx context.Context, roomID, userID string, muted bool, by string) error
	StampLastMessage(ctx context.Context, roomID, userID string, at time.Time) error
}

type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository create a MembershipRepository
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

// Upsert insert the membership; an existing (room_id, user_id) row is left
// untouched so moderation flags survive event replays.
func (r *membershipRepository) Upsert(ctx context.Context, m *domain.Membership) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(m).Error
}

func (r *membershipRepository) Delete(ctx context.Context, roomID, userID string) error {
	return r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&domain.Membership{}).Error
}

func (r *membershipRepository) Find(ctx context.Context, roomID, userID string) (*domain.Membership, error) {
	var m domain.Membership
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *membershipRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.Membership, error) {
	var members []domain.Membership
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Find(&members).Error
	return members, err
}

func (r *membershipRepository) MemberIDs(ctx context.Context, roomID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.Membership{}).
		Where("room_id = ? AND NOT is_blocked", roomID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// SetBlocked soft-remove: the row stays with audit fields so history is
// preserved and rejoin stays blocked.
func (r *membershipRepository) SetBlocked(ctx context.Context, roomID, userID string, by string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&domain.Membership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]interface{}{
			"is_blocked": true,
			"blocked_at": &now,
			"blocked_by": &by,
		}).Error
}

// Reactivate clear the block fields and reset the role, used when an admin
// re-invites a previously removed member.
func (r *membershipRepository) Reactivate(ctx context.Context, roomID, userID string, role domain.Role) error {
	return r.db.WithContext(ctx).Model(&domain.Membership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]interface{}{
			"is_blocked": false,
			"blocked_at": nil,
			"blocked_by": nil,
			"role":       role,
		}).Error
}

func (r *membershipRepository) SetMuted(ctx context.Context, roomID, userID string, muted bool, by string) error {
	updates := map[string]interface{}{
		"is_muted": muted,
		"muted_at": nil,
		"muted_by": nil,
	}
	if muted {
		now := time.Now()
		updates["muted_at"] = &now
		updates["muted_by"] = &by
	}
	return r.db.WithContext(ctx).Model(&domain.Membership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(updates).Error
}

func (r *membershipRepository) StampLastMessage(ctx context.Context, roomID, userID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Membership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("last_message_at", &at).Error
}
