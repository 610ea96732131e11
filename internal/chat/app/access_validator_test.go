package app

import (
	"context"
	"testing"

	"campus_chat_service/internal/chat/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newValidatorFixture() (*MockRoomRepository, *MockMembershipRepository, *MockAcademicRepository, *AccessControlValidator) {
	roomRepo := new(MockRoomRepository)
	memberRepo := new(MockMembershipRepository)
	academic := new(MockAcademicRepository)
	return roomRepo, memberRepo, academic, NewAccessControlValidator(roomRepo, memberRepo, academic)
}

func TestCanAccess_UnknownRoom(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()

	roomRepo, _, _, v := newValidatorFixture()
	roomRepo.On("FindByID", ctx, roomID).Return(nil, nil)

	_, err := v.CanAccess(ctx, "u1", roomID)

	assert.True(t, domain.IsNotFound(err))
}

func TestCanAccess_BlockedMemberDenied(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()

	roomRepo, memberRepo, _, v := newValidatorFixture()
	roomRepo.On("FindByID", ctx, roomID).Return(&domain.Room{
		ID: roomID, Type: domain.RoomTypeGroup, IsActive: true,
	}, nil)
	memberRepo.On("Find", ctx, roomID, "u1").Return(&domain.Membership{
		RoomID: roomID, UserID: "u1", IsBlocked: true,
	}, nil)

	ok, err := v.CanAccess(ctx, "u1", roomID)

	assert.NoError(t, err)
	assert.False(t, ok)
}

// Membership alone is not enough for a CLASS room: a stale row without a live
// enrollment is denied.
func TestCanAccess_ClassRoomStaleMembershipDenied(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	classID := uuid.New().String()

	roomRepo, memberRepo, academic, v := newValidatorFixture()
	roomRepo.On("FindByID", ctx, roomID).Return(&domain.Room{
		ID: roomID, Type: domain.RoomTypeClass, CourseClassID: &classID, IsActive: true,
	}, nil)
	memberRepo.On("Find", ctx, roomID, "u1").Return(&domain.Membership{
		RoomID: roomID, UserID: "u1", Role: domain.RoleMember,
	}, nil)
	academic.On("HasActiveEnrollmentInClass", ctx, "u1", classID).Return(false, nil)
	academic.On("IsProfessorOfClass", ctx, "u1", classID).Return(false, nil)

	ok, err := v.CanAccess(ctx, "u1", roomID)

	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCanAccess_ClassRoomProfessorAllowed(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	classID := uuid.New().String()

	roomRepo, memberRepo, academic, v := newValidatorFixture()
	roomRepo.On("FindByID", ctx, roomID).Return(&domain.Room{
		ID: roomID, Type: domain.RoomTypeClass, CourseClassID: &classID, IsActive: true,
	}, nil)
	memberRepo.On("Find", ctx, roomID, "p1").Return(&domain.Membership{
		RoomID: roomID, UserID: "p1", Role: domain.RoleAdmin,
	}, nil)
	academic.On("HasActiveEnrollmentInClass", ctx, "p1", classID).Return(false, nil)
	academic.On("IsProfessorOfClass", ctx, "p1", classID).Return(true, nil)

	ok, err := v.CanAccess(ctx, "p1", roomID)

	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestCanAccess_SectionRoomTAAllowedWithoutAcademicQuery(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	taID := "ta-1"
	courseID := uuid.New().String()

	roomRepo, memberRepo, academic, v := newValidatorFixture()
	roomRepo.On("FindByID", ctx, roomID).Return(&domain.Room{
		ID: roomID, Type: domain.RoomTypeSection,
		TAID: &taID, CourseID: &courseID, IsActive: true,
	}, nil)
	memberRepo.On("Find", ctx, roomID, taID).Return(&domain.Membership{
		RoomID: roomID, UserID: taID, Role: domain.RoleAdmin,
	}, nil)

	ok, err := v.CanAccess(ctx, taID, roomID)

	assert.NoError(t, err)
	assert.True(t, ok)
	academic.AssertNotCalled(t, "HasEnrollmentInCourse", ctx, taID, courseID)
}

func TestCanAccess_SectionRoomStudentNeedsCourseEnrollment(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()
	taID := "ta-1"
	courseID := uuid.New().String()

	roomRepo, memberRepo, academic, v := newValidatorFixture()
	roomRepo.On("FindByID", ctx, roomID).Return(&domain.Room{
		ID: roomID, Type: domain.RoomTypeSection,
		TAID: &taID, CourseID: &courseID, IsActive: true,
	}, nil)
	memberRepo.On("Find", ctx, roomID, "s1").Return(&domain.Membership{
		RoomID: roomID, UserID: "s1", Role: domain.RoleMember,
	}, nil)
	academic.On("HasEnrollmentInCourse", ctx, "s1", courseID).Return(true, nil)

	ok, err := v.CanAccess(ctx, "s1", roomID)

	assert.NoError(t, err)
	assert.True(t, ok)
}

// PRIVATE and GROUP rooms stop at the membership layer.
func TestCanAccess_PrivateRoomMembershipDecides(t *testing.T) {
	ctx := context.Background()
	roomID := uuid.New().String()

	roomRepo, memberRepo, academic, v := newValidatorFixture()
	roomRepo.On("FindByID", ctx, roomID).Return(&domain.Room{
		ID: roomID, Type: domain.RoomTypePrivate, IsActive: true,
	}, nil)
	memberRepo.On("Find", ctx, roomID, "u1").Return(&domain.Membership{
		RoomID: roomID, UserID: "u1", Role: domain.RoleMember,
	}, nil)

	ok, err := v.CanAccess(ctx, "u1", roomID)

	assert.NoError(t, err)
	assert.True(t, ok)
	academic.AssertNotCalled(t, "HasActiveEnrollmentInClass", ctx, "u1", roomID)
}
