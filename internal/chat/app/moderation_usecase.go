package app

import (
	"context"
	"math"
	"time"

	"campus_chat_service/internal/chat/domain"
	"campus_chat_service/internal/chat/repository"
	errprocess "campus_chat_service/pkg/err"
	"campus_chat_service/pkg/logger"
	"campus_chat_service/pkg/token"

	"go.uber.org/zap"
)

// ReasonAdminRequired rejection reason for non-admin moderation attempts
const ReasonAdminRequired = "admin_required"

// ModerationUseCase definition moderation operations. Every mutation demands
// admin standing in the target room and lands an audit record.
type ModerationUseCase interface {
	VerifyAdminAccess(ctx context.Context, actorID string, actorRole token.RoleType, roomID string) error
	CheckPermissions(ctx context.Context, userID, roomID string) (domain.SendPermission, error)
	ToggleMessaging(ctx context.Context, actorID string, actorRole token.RoleType, roomID string, enabled *bool) (bool, error)
	SetSlowMode(ctx context.Context, actorID string, actorRole token.RoleType, roomID string, seconds int) error
	Invite(ctx context.Context, actorID string, actorRole token.RoleType, roomID, targetID string, role domain.Role) error
	Remove(ctx context.Context, actorID string, actorRole token.RoleType, roomID, targetID, reason string) error
	Mute(ctx context.Context, actorID string, actorRole token.RoleType, roomID, targetID, reason string) error
	Unmute(ctx context.Context, actorID string, actorRole token.RoleType, roomID, targetID string) error
	Pin(ctx context.Context, actorID string, actorRole token.RoleType, roomID, messageID string) error
	Unpin(ctx context.Context, actorID string, actorRole token.RoleType, roomID, messageID string) error
}

type moderationUseCase struct {
	roomRepo   repository.RoomRepository
	memberRepo repository.MembershipRepository
	msgRepo    repository.MessageRepository
	pinRepo    repository.PinRepository
	auditRepo  repository.AuditRepository
}

// NewModerationUseCase create a ModerationUseCase
func NewModerationUseCase(
	roomRepo repository.RoomRepository,
	memberRepo repository.MembershipRepository,
	msgRepo repository.MessageRepository,
	pinRepo repository.PinRepository,
	auditRepo repository.AuditRepository,
) ModerationUseCase {
	return &moderationUseCase{
		roomRepo:   roomRepo,
		memberRepo: memberRepo,
		msgRepo:    msgRepo,
		pinRepo:    pinRepo,
		auditRepo:  auditRepo,
	}
}

// VerifyAdminAccess accept a platform admin token or a live ADMIN membership
// in the room. Platform admins need no membership row.
func (u *moderationUseCase) VerifyAdminAccess(ctx context.Context, actorID string, actorRole token.RoleType, roomID string) error {
	if actorRole == token.RoleAdmin {
		return nil
	}

	member, err := u.memberRepo.Find(ctx, roomID, actorID)
	if err != nil {
		return err
	}
	if member == nil || member.IsBlocked || member.Role != domain.RoleAdmin {
		return &domain.AuthorizationDeniedError{Reason: ReasonAdminRequired}
	}
	return nil
}

// CheckPermissions run the fixed-order send gate: membership, block, mute,
// room messaging flag, slow mode. The first failing check wins so clients
// always see the most fundamental reason.
func (u *moderationUseCase) CheckPermissions(ctx context.Context, userID, roomID string) (domain.SendPermission, error) {
	member, err := u.memberRepo.Find(ctx, roomID, userID)
	if err != nil {
		return domain.SendPermission{}, err
	}
	if member == nil {
		return domain.SendPermission{Reason: domain.ReasonNotMember}, nil
	}
	if member.IsBlocked {
		return domain.SendPermission{Reason: domain.ReasonRemoved}, nil
	}
	if member.IsMuted {
		return domain.SendPermission{Reason: domain.ReasonMuted}, nil
	}

	room, err := u.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return domain.SendPermission{}, err
	}
	if room == nil {
		return domain.SendPermission{}, domain.NotFoundError("room")
	}
	if !room.IsMessagingEnabled {
		return domain.SendPermission{Reason: domain.ReasonMessagingDisabled}, nil
	}

	// Slow mode throttles MEMBERs only; admins post freely.
	if room.SlowModeSeconds != nil && member.Role == domain.RoleMember && member.LastMessageAt != nil {
		window := time.Duration(*room.SlowModeSeconds) * time.Second
		remaining := window - time.Since(*member.LastMessageAt)
		if remaining > 0 {
			return domain.SendPermission{
				Reason:      domain.ReasonSlowMode,
				WaitSeconds: int(math.Ceil(remaining.Seconds())),
			}, nil
		}
	}

	return domain.SendPermission{CanSend: true}, nil
}

// ToggleMessaging set the room's messaging flag, or flip the current value
// when enabled is nil. Returns the resulting state.
func (u *moderationUseCase) ToggleMessaging(ctx context.Context, actorID string, actorRole token.RoleType, roomID string, enabled *bool) (bool, error) {
	if err := u.VerifyAdminAccess(ctx, actorID, actorRole, roomID); err != nil {
		return false, err
	}

	var next bool
	if enabled != nil {
		next = *enabled
	} else {
		room, err := u.roomRepo.FindByID(ctx, roomID)
		if err != nil {
			return false, err
		}
		if room == nil {
			return false, domain.NotFoundError("room")
		}
		next = !room.IsMessagingEnabled
	}

	if err := u.roomRepo.SetMessagingEnabled(ctx, roomID, next); err != nil {
		return false, err
	}

	action := "messaging_disabled"
	if next {
		action = "messaging_enabled"
	}
	u.audit(ctx, roomID, actorID, action, "", "")
	return next, nil
}

// SetSlowMode seconds <= 0 clears slow mode.
func (u *moderationUseCase) SetSlowMode(ctx context.Context, actorID string, actorRole token.RoleType, roomID string, seconds int) error {
	if err := u.VerifyAdminAccess(ctx, actorID, actorRole, roomID); err != nil {
		return err
	}

	var value *int
	if seconds > 0 {
		value = &seconds
	}
	if err := u.roomRepo.SetSlowMode(ctx, roomID, value); err != nil {
		return err
	}

	u.audit(ctx, roomID, actorID, "slow_mode_set", "", "")
	return nil
}

// Invite add targetID to the room. A blocked row is reactivated, which is the
// only path back in for a removed member. An active membership rejects the
// invite outright.
func (u *moderationUseCase) Invite(ctx context.Context, actorID string, actorRole token.RoleType, roomID, targetID string, role domain.Role) error {
	if err := u.VerifyAdminAccess(ctx, actorID, actorRole, roomID); err != nil {
		return err
	}
	if role == "" {
		role = domain.RoleMember
	}

	member, err := u.memberRepo.Find(ctx, roomID, targetID)
	if err != nil {
		return err
	}
	if member != nil && !member.IsBlocked {
		return errprocess.Set("user is already a member of the room")
	}

	if member != nil {
		if err := u.memberRepo.Reactivate(ctx, roomID, targetID, role); err != nil {
			return err
		}
	} else {
		err = u.memberRepo.Upsert(ctx, &domain.Membership{
			RoomID: roomID,
			UserID: targetID,
			Role:   role,
		})
		if err != nil {
			return err
		}
	}

	u.audit(ctx, roomID, actorID, "user_invited", targetID, "")
	return nil
}

// Remove block targetID. The membership row survives with audit fields, so a
// rejoin attempt stays rejected until an admin re-invites.
func (u *moderationUseCase) Remove(ctx context.Context, actorID string, actorRole token.RoleType, roomID, targetID, reason string) error {
	if err := u.VerifyAdminAccess(ctx, actorID, actorRole, roomID); err != nil {
		return err
	}
	if actorID == targetID {
		return errprocess.Set("admins cannot remove themselves from the room")
	}

	member, err := u.memberRepo.Find(ctx, roomID, targetID)
	if err != nil {
		return err
	}
	if member == nil {
		return domain.NotFoundError("membership")
	}

	if err := u.memberRepo.SetBlocked(ctx, roomID, targetID, actorID); err != nil {
		return err
	}

	u.audit(ctx, roomID, actorID, "user_removed", targetID, reason)
	return nil
}

func (u *moderationUseCase) Mute(ctx context.Context, actorID string, actorRole token.RoleType, roomID, targetID, reason string) error {
	if err := u.VerifyAdminAccess(ctx, actorID, actorRole, roomID); err != nil {
		return err
	}
	if actorID == targetID {
		return errprocess.Set("admins cannot mute themselves")
	}

	member, err := u.memberRepo.Find(ctx, roomID, targetID)
	if err != nil {
		return err
	}
	if member == nil {
		return domain.NotFoundError("membership")
	}
	if member.Role == domain.RoleAdmin {
		return errprocess.Set("room admins cannot be muted")
	}

	if err := u.memberRepo.SetMuted(ctx, roomID, targetID, true, actorID); err != nil {
		return err
	}

	u.audit(ctx, roomID, actorID, "user_muted", targetID, reason)
	return nil
}

func (u *moderationUseCase) Unmute(ctx context.Context, actorID string, actorRole token.RoleType, roomID, targetID string) error {
	if err := u.VerifyAdminAccess(ctx, actorID, actorRole, roomID); err != nil {
		return err
	}

	member, err := u.memberRepo.Find(ctx, roomID, targetID)
	if err != nil {
		return err
	}
	if member == nil {
		return domain.NotFoundError("membership")
	}

	if err := u.memberRepo.SetMuted(ctx, roomID, targetID, false, actorID); err != nil {
		return err
	}

	u.audit(ctx, roomID, actorID, "user_unmuted", targetID, "")
	return nil
}

// Pin pin messageID in its room, capped at domain.MaxPinnedPerRoom. The
// message must exist in this room and not be deleted.
func (u *moderationUseCase) Pin(ctx context.Context, actorID string, actorRole token.RoleType, roomID, messageID string) error {
	if err := u.VerifyAdminAccess(ctx, actorID, actorRole, roomID); err != nil {
		return err
	}

	msg, err := u.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil || msg.RoomID != roomID {
		return domain.NotFoundError("message")
	}
	if msg.IsDeleted {
		return errprocess.Set("deleted messages cannot be pinned")
	}

	err = u.pinRepo.Pin(ctx, &domain.PinnedMessage{
		RoomID:    roomID,
		MessageID: messageID,
		PinnedBy:  actorID,
	})
	if err != nil {
		return err
	}

	u.audit(ctx, roomID, actorID, "message_pinned", messageID, "")
	return nil
}

func (u *moderationUseCase) Unpin(ctx context.Context, actorID string, actorRole token.RoleType, roomID, messageID string) error {
	if err := u.VerifyAdminAccess(ctx, actorID, actorRole, roomID); err != nil {
		return err
	}

	if err := u.pinRepo.Unpin(ctx, roomID, messageID); err != nil {
		return err
	}

	u.audit(ctx, roomID, actorID, "message_unpinned", messageID, "")
	return nil
}

// audit record the moderation action, best effort. A failed audit write never
// rolls back the action itself.
func (u *moderationUseCase) audit(ctx context.Context, roomID, actorID, action, targetID, reason string) {
	err := u.auditRepo.Record(ctx, &repository.AuditEntry{
		RoomID:   roomID,
		ActorID:  actorID,
		Action:   action,
		TargetID: targetID,
		Reason:   reason,
	})
	if err != nil {
		logger.Log.Error("audit record failed",
			zap.String("room", roomID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
