package app

import (
	"context"
	"testing"
	"time"

	"campus_chat_service/internal/chat/domain"
	"campus_chat_service/internal/chat/repository"
	"campus_chat_service/pkg/logger"
	"campus_chat_service/pkg/token"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestMain(m *testing.M) {
	logger.SetNewNop()
	m.Run()
}

func newModerationFixture() (*MockRoomRepository, *MockMembershipRepository, *MockMessageRepository, *MockPinRepository, *MockAuditRepository, ModerationUseCase) {
	roomRepo := new(MockRoomRepository)
	memberRepo := new(MockMembershipRepository)
	msgRepo := new(MockMessageRepository)
	pinRepo := new(MockPinRepository)
	auditRepo := new(MockAuditRepository)
	uc := NewModerationUseCase(roomRepo, memberRepo, msgRepo, pinRepo, auditRepo)
	return roomRepo, memberRepo, msgRepo, pinRepo, auditRepo, uc
}

func TestCheckPermissions_NotAMember(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	userID := uuid.New().String()

	_, memberRepo, _, _, _, uc := newModerationFixture()
	memberRepo.On("Find", ctx, roomID, userID).Return(nil, nil)

	perm, err := uc.CheckPermissions(ctx, userID, roomID)

	assert.NoError(t, err)
	assert.False(t, perm.CanSend)
	assert.Equal(t, domain.ReasonNotMember, perm.Reason)
}

func TestCheckPermissions_RemovedBeatsMuted(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	userID := uuid.New().String()

	_, memberRepo, _, _, _, uc := newModerationFixture()
	memberRepo.On("Find", ctx, roomID, userID).Return(&domain.Membership{
		RoomID:    roomID,
		UserID:    userID,
		Role:      domain.RoleMember,
		IsBlocked: true,
		IsMuted:   true,
	}, nil)

	perm, err := uc.CheckPermissions(ctx, userID, roomID)

	assert.NoError(t, err)
	assert.Equal(t, domain.ReasonRemoved, perm.Reason)
}

func TestCheckPermissions_MessagingDisabled(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	userID := uuid.New().String()

	roomRepo, memberRepo, _, _, _, uc := newModerationFixture()
	memberRepo.On("Find", ctx, roomID, userID).Return(&domain.Membership{
		RoomID: roomID,
		UserID: userID,
		Role:   domain.RoleMember,
	}, nil)
	roomRepo.On("FindByID", ctx, roomID).Return(&domain.Room{
		ID:                 roomID,
		Type:               domain.RoomTypeClass,
		IsActive:           true,
		IsMessagingEnabled: false,
	}, nil)

	perm, err := uc.CheckPermissions(ctx, userID, roomID)

	assert.NoError(t, err)
	assert.Equal(t, domain.ReasonMessagingDisabled, perm.Reason)
}

func TestCheckPermissions_SlowModeWait(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	userID := uuid.New().String()
	slow := 30
	last := time.Now().Add(-10 * time.Second)

	roomRepo, memberRepo, _, _, _, uc := newModerationFixture()
	memberRepo.On("Find", ctx, roomID, userID).Return(&domain.Membership{
		RoomID:        roomID,
		UserID:        userID,
		Role:          domain.RoleMember,
		LastMessageAt: &last,
	}, nil)
	roomRepo.On("FindByID", ctx, roomID).Return(&domain.Room{
		ID:                 roomID,
		Type:               domain.RoomTypeClass,
		IsActive:           true,
		IsMessagingEnabled: true,
		SlowModeSeconds:    &slow,
	}, nil)

	perm, err := uc.CheckPermissions(ctx, userID, roomID)

	assert.NoError(t, err)
	assert.False(t, perm.CanSend)
	assert.Equal(t, domain.ReasonSlowMode, perm.Reason)
	assert.Equal(t, 20, perm.WaitSeconds)
}

// Admins are not throttled by slow mode.
func TestCheckPermissions_SlowModeSkipsAdmins(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	userID := uuid.New().String()
	slow := 30
	last := time.Now()

	roomRepo, memberRepo, _, _, _, uc := newModerationFixture()
	memberRepo.On("Find", ctx, roomID, userID).Return(&domain.Membership{
		RoomID:        roomID,
		UserID:        userID,
		Role:          domain.RoleAdmin,
		LastMessageAt: &last,
	}, nil)
	roomRepo.On("FindByID", ctx, roomID).Return(&domain.Room{
		ID:                 roomID,
		IsActive:           true,
		IsMessagingEnabled: true,
		SlowModeSeconds:    &slow,
	}, nil)

	perm, err := uc.CheckPermissions(ctx, userID, roomID)

	assert.NoError(t, err)
	assert.True(t, perm.CanSend)
}

func TestVerifyAdminAccess_PlatformAdminBypassesMembership(t *testing.T) {
	ctx := context.Background()
	_, _, _, _, _, uc := newModerationFixture()

	err := uc.VerifyAdminAccess(ctx, uuid.New().String(), token.RoleAdmin, uuid.New().String())

	assert.NoError(t, err)
}

func TestVerifyAdminAccess_MemberDenied(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	userID := uuid.New().String()

	_, memberRepo, _, _, _, uc := newModerationFixture()
	memberRepo.On("Find", ctx, roomID, userID).Return(&domain.Membership{
		RoomID: roomID,
		UserID: userID,
		Role:   domain.RoleMember,
	}, nil)

	err := uc.VerifyAdminAccess(ctx, userID, token.RoleStudent, roomID)

	var denied *domain.AuthorizationDeniedError
	assert.ErrorAs(t, err, &denied)
	assert.Equal(t, ReasonAdminRequired, denied.Reason)
}

func TestInvite_ReactivatesRemovedMember(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	adminID := uuid.New().String()
	targetID := uuid.New().String()

	_, memberRepo, _, _, auditRepo, uc := newModerationFixture()
	memberRepo.On("Find", ctx, roomID, adminID).Return(&domain.Membership{
		RoomID: roomID, UserID: adminID, Role: domain.RoleAdmin,
	}, nil)
	memberRepo.On("Find", ctx, roomID, targetID).Return(&domain.Membership{
		RoomID: roomID, UserID: targetID, Role: domain.RoleMember, IsBlocked: true,
	}, nil)
	memberRepo.On("Reactivate", ctx, roomID, targetID, domain.RoleMember).Return(nil)
	auditRepo.On("Record", ctx, mock.Anything).Return(nil)

	err := uc.Invite(ctx, adminID, token.RoleProfessor, roomID, targetID, domain.RoleMember)

	assert.NoError(t, err)
	memberRepo.AssertExpectations(t)
	memberRepo.AssertNotCalled(t, "Upsert", ctx, mock.Anything)
}

func TestInvite_ActiveMemberRejected(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	adminID := uuid.New().String()
	targetID := uuid.New().String()

	_, memberRepo, _, _, _, uc := newModerationFixture()
	memberRepo.On("Find", ctx, roomID, adminID).Return(&domain.Membership{
		RoomID: roomID, UserID: adminID, Role: domain.RoleAdmin,
	}, nil)
	memberRepo.On("Find", ctx, roomID, targetID).Return(&domain.Membership{
		RoomID: roomID, UserID: targetID, Role: domain.RoleMember,
	}, nil)

	err := uc.Invite(ctx, adminID, token.RoleProfessor, roomID, targetID, domain.RoleMember)

	assert.Error(t, err)
	memberRepo.AssertNotCalled(t, "Reactivate", ctx, roomID, targetID, domain.RoleMember)
}

func TestRemove_SelfRejected(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	adminID := uuid.New().String()

	_, memberRepo, _, _, _, uc := newModerationFixture()
	memberRepo.On("Find", ctx, roomID, adminID).Return(&domain.Membership{
		RoomID: roomID, UserID: adminID, Role: domain.RoleAdmin,
	}, nil)

	err := uc.Remove(ctx, adminID, token.RoleProfessor, roomID, adminID, "cleanup")

	assert.Error(t, err)
	memberRepo.AssertNotCalled(t, "SetBlocked", ctx, roomID, adminID, adminID)
}

func TestRemove_BlocksTarget(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	adminID := uuid.New().String()
	targetID := uuid.New().String()

	_, memberRepo, _, _, auditRepo, uc := newModerationFixture()
	memberRepo.On("Find", ctx, roomID, adminID).Return(&domain.Membership{
		RoomID: roomID, UserID: adminID, Role: domain.RoleAdmin,
	}, nil)
	memberRepo.On("Find", ctx, roomID, targetID).Return(&domain.Membership{
		RoomID: roomID, UserID: targetID, Role: domain.RoleMember,
	}, nil)
	memberRepo.On("SetBlocked", ctx, roomID, targetID, adminID).Return(nil)
	auditRepo.On("Record", ctx, mock.MatchedBy(func(e *repository.AuditEntry) bool {
		return e.Action == "user_removed" && e.TargetID == targetID && e.Reason == "spam"
	})).Return(nil)

	err := uc.Remove(ctx, adminID, token.RoleProfessor, roomID, targetID, "spam")

	assert.NoError(t, err)
	memberRepo.AssertExpectations(t)
	auditRepo.AssertExpectations(t)
}

func TestMute_AdminTargetRejected(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	adminID := uuid.New().String()
	targetID := uuid.New().String()

	_, memberRepo, _, _, _, uc := newModerationFixture()
	memberRepo.On("Find", ctx, roomID, adminID).Return(&domain.Membership{
		RoomID: roomID, UserID: adminID, Role: domain.RoleAdmin,
	}, nil)
	memberRepo.On("Find", ctx, roomID, targetID).Return(&domain.Membership{
		RoomID: roomID, UserID: targetID, Role: domain.RoleAdmin,
	}, nil)

	err := uc.Mute(ctx, adminID, token.RoleProfessor, roomID, targetID, "")

	assert.Error(t, err)
	memberRepo.AssertNotCalled(t, "SetMuted", ctx, roomID, targetID, true, adminID)
}

func TestPin_DeletedMessageRejected(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	adminID := uuid.New().String()
	messageID := uuid.New().String()

	_, memberRepo, msgRepo, pinRepo, _, uc := newModerationFixture()
	memberRepo.On("Find", ctx, roomID, adminID).Return(&domain.Membership{
		RoomID: roomID, UserID: adminID, Role: domain.RoleAdmin,
	}, nil)
	msgRepo.On("FindByID", ctx, messageID).Return(&domain.Message{
		ID: messageID, RoomID: roomID, IsDeleted: true,
	}, nil)

	err := uc.Pin(ctx, adminID, token.RoleProfessor, roomID, messageID)

	assert.Error(t, err)
	pinRepo.AssertNotCalled(t, "Pin", ctx, mock.Anything)
}

func TestPin_CapSurfacesRepositoryError(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	adminID := uuid.New().String()
	messageID := uuid.New().String()

	_, memberRepo, msgRepo, pinRepo, _, uc := newModerationFixture()
	memberRepo.On("Find", ctx, roomID, adminID).Return(&domain.Membership{
		RoomID: roomID, UserID: adminID, Role: domain.RoleAdmin,
	}, nil)
	msgRepo.On("FindByID", ctx, messageID).Return(&domain.Message{
		ID: messageID, RoomID: roomID,
	}, nil)
	pinRepo.On("Pin", ctx, mock.Anything).Return(repository.ErrPinLimit)

	err := uc.Pin(ctx, adminID, token.RoleProfessor, roomID, messageID)

	assert.ErrorIs(t, err, repository.ErrPinLimit)
}

func TestSetSlowMode_ZeroClears(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	adminID := uuid.New().String()

	roomRepo, memberRepo, _, _, auditRepo, uc := newModerationFixture()
	memberRepo.On("Find", ctx, roomID, adminID).Return(&domain.Membership{
		RoomID: roomID, UserID: adminID, Role: domain.RoleAdmin,
	}, nil)
	roomRepo.On("SetSlowMode", ctx, roomID, (*int)(nil)).Return(nil)
	auditRepo.On("Record", ctx, mock.Anything).Return(nil)

	err := uc.SetSlowMode(ctx, adminID, token.RoleTA, roomID, 0)

	assert.NoError(t, err)
	roomRepo.AssertExpectations(t)
}

func TestToggleMessaging_FlipsWhenUnset(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	adminID := uuid.New().String()

	roomRepo, memberRepo, _, _, auditRepo, uc := newModerationFixture()
	memberRepo.On("Find", ctx, roomID, adminID).Return(&domain.Membership{
		RoomID: roomID, UserID: adminID, Role: domain.RoleAdmin,
	}, nil)
	roomRepo.On("FindByID", ctx, roomID).Return(&domain.Room{
		ID: roomID, Type: domain.RoomTypeGroup, IsActive: true, IsMessagingEnabled: true,
	}, nil)
	roomRepo.On("SetMessagingEnabled", ctx, roomID, false).Return(nil)
	auditRepo.On("Record", ctx, mock.MatchedBy(func(e *repository.AuditEntry) bool {
		return e.Action == "messaging_disabled"
	})).Return(nil)

	enabled, err := uc.ToggleMessaging(ctx, adminID, token.RoleProfessor, roomID, nil)

	assert.NoError(t, err)
	assert.False(t, enabled)
	roomRepo.AssertExpectations(t)
}

func TestToggleMessaging_ExplicitValueSkipsRead(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	adminID := uuid.New().String()
	on := true

	roomRepo, memberRepo, _, _, auditRepo, uc := newModerationFixture()
	memberRepo.On("Find", ctx, roomID, adminID).Return(&domain.Membership{
		RoomID: roomID, UserID: adminID, Role: domain.RoleAdmin,
	}, nil)
	roomRepo.On("SetMessagingEnabled", ctx, roomID, true).Return(nil)
	auditRepo.On("Record", ctx, mock.Anything).Return(nil)

	enabled, err := uc.ToggleMessaging(ctx, adminID, token.RoleProfessor, roomID, &on)

	assert.NoError(t, err)
	assert.True(t, enabled)
	roomRepo.AssertNotCalled(t, "FindByID", ctx, roomID)
}
