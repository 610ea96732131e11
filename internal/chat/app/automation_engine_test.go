package app

import (
	"context"
	"testing"
	"time"

	"campus_chat_service/internal/chat/domain"
	"campus_chat_service/pkg/eventbus"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type engineFixture struct {
	roomRepo   *MockRoomRepository
	memberRepo *MockMembershipRepository
	academic   *MockAcademicRepository
	events     *EventRecorder
	engine     *RoomAutomationEngine
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		roomRepo:   new(MockRoomRepository),
		memberRepo: new(MockMembershipRepository),
		academic:   new(MockAcademicRepository),
		events:     new(EventRecorder),
	}
	f.engine = NewRoomAutomationEngine(f.roomRepo, f.memberRepo, f.academic, f.events, 0)
	return f
}

func TestOnClassCreated_SeedsRoomAndMembers(t *testing.T) {
	ctx := context.Background()
	classID := uuid.New().String()
	students := []string{"s1", "s2", "s3"}
	professors := []string{"p1"}

	f := newEngineFixture()
	f.roomRepo.On("FindActiveClassRoom", ctx, classID).Return(nil, nil)
	f.roomRepo.On("Create", ctx, mock.MatchedBy(func(r *domain.Room) bool {
		return r.Type == domain.RoomTypeClass && *r.CourseClassID == classID && r.Name == "CS101 Algorithms"
	})).Return(nil)
	f.academic.On("EnrolledStudentIDs", ctx, classID).Return(students, nil)
	f.academic.On("ProfessorIDs", ctx, classID).Return(professors, nil)
	f.memberRepo.On("Upsert", ctx, mock.MatchedBy(func(m *domain.Membership) bool {
		return m.UserID == "p1" && m.Role == domain.RoleAdmin
	})).Return(nil)
	f.memberRepo.On("Upsert", ctx, mock.MatchedBy(func(m *domain.Membership) bool {
		return m.Role == domain.RoleMember
	})).Return(nil).Times(3)

	err := f.engine.OnClassCreated(ctx, domain.ClassCreatedEvent{
		ClassID:    classID,
		CourseCode: "CS101",
		CourseName: "Algorithms",
	})

	assert.NoError(t, err)
	f.memberRepo.AssertExpectations(t)

	created := f.events.Named(domain.EventRoomCreated)
	assert.Len(t, created, 1)
	payload := created[0].Payload.(domain.RoomCreatedEvent)
	assert.Equal(t, classID, payload.ClassID)
	assert.ElementsMatch(t, []string{"p1", "s1", "s2", "s3"}, payload.MemberIDs)
}

// A replayed class.created must not create a second room or re-announce the
// first one.
func TestOnClassCreated_ReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	classID := uuid.New().String()
	existing := &domain.Room{
		ID: uuid.New().String(), Type: domain.RoomTypeClass,
		CourseClassID: &classID, IsActive: true,
	}

	f := newEngineFixture()
	f.roomRepo.On("FindActiveClassRoom", ctx, classID).Return(existing, nil)
	f.academic.On("EnrolledStudentIDs", ctx, classID).Return([]string{"s1"}, nil)
	f.academic.On("ProfessorIDs", ctx, classID).Return([]string{"p1"}, nil)
	f.memberRepo.On("Upsert", ctx, mock.Anything).Return(nil)

	err := f.engine.OnClassCreated(ctx, domain.ClassCreatedEvent{ClassID: classID})

	assert.NoError(t, err)
	f.roomRepo.AssertNotCalled(t, "Create", ctx, mock.Anything)
	assert.Empty(t, f.events.Named(domain.EventRoomCreated))
}

func TestOnClassDeleted_DeactivatesAndAnnounces(t *testing.T) {
	ctx := context.Background()
	classID := uuid.New().String()
	room := &domain.Room{
		ID: uuid.New().String(), Type: domain.RoomTypeClass,
		CourseClassID: &classID, IsActive: true,
	}

	f := newEngineFixture()
	f.roomRepo.On("FindActiveClassRoom", ctx, classID).Return(room, nil)
	f.memberRepo.On("MemberIDs", ctx, room.ID).Return([]string{"s1", "p1"}, nil)
	f.roomRepo.On("Deactivate", ctx, room.ID).Return(nil)

	err := f.engine.OnClassDeleted(ctx, domain.ClassDeletedEvent{ClassID: classID})

	assert.NoError(t, err)
	deleted := f.events.Named(domain.EventRoomDeleted)
	assert.Len(t, deleted, 1)
	assert.ElementsMatch(t, []string{"s1", "p1"}, deleted[0].Payload.(domain.RoomDeletedEvent).MemberIDs)
}

// Two sections under one TA in one course share a room: the second event
// finds the room and stops.
func TestOnSectionCreated_SharedRoomPerTACourse(t *testing.T) {
	ctx := context.Background()
	taID := uuid.New().String()
	courseID := uuid.New().String()
	existing := &domain.Room{
		ID: uuid.New().String(), Type: domain.RoomTypeSection,
		TAID: &taID, CourseID: &courseID, IsActive: true,
	}

	f := newEngineFixture()
	f.roomRepo.On("FindActiveSectionRoom", ctx, taID, courseID).Return(existing, nil)

	err := f.engine.OnSectionCreated(ctx, domain.SectionCreatedEvent{
		SectionID: uuid.New().String(), CourseID: courseID, TAID: taID,
	})

	assert.NoError(t, err)
	f.roomRepo.AssertNotCalled(t, "Create", ctx, mock.Anything)
}

func TestOnSectionUpdated_ReassignsStudentsAndRetiresOldRoom(t *testing.T) {
	ctx := context.Background()
	sectionID := uuid.New().String()
	courseID := uuid.New().String()
	oldTA := "ta-old"
	newTA := "ta-new"
	students := []string{"s1", "s2"}

	oldRoom := &domain.Room{
		ID: "room-old", Type: domain.RoomTypeSection,
		TAID: &oldTA, CourseID: &courseID, IsActive: true,
	}
	newRoom := &domain.Room{
		ID: "room-new", Type: domain.RoomTypeSection,
		TAID: &newTA, CourseID: &courseID, IsActive: true,
	}

	f := newEngineFixture()
	f.academic.On("StudentIDsOfSection", ctx, sectionID).Return(students, nil)
	f.roomRepo.On("FindActiveSectionRoom", ctx, oldTA, courseID).Return(oldRoom, nil)
	f.roomRepo.On("FindActiveSectionRoom", ctx, newTA, courseID).Return(newRoom, nil)
	f.memberRepo.On("Delete", ctx, oldRoom.ID, "s1").Return(nil)
	f.memberRepo.On("Delete", ctx, oldRoom.ID, "s2").Return(nil)
	f.memberRepo.On("Upsert", ctx, mock.Anything).Return(nil)
	// old TA keeps no sections in this course, so the old room retires
	f.academic.On("SectionsByTAInCourse", ctx, oldTA, courseID).Return([]string(nil), nil)
	f.memberRepo.On("MemberIDs", ctx, oldRoom.ID).Return([]string{oldTA}, nil)
	f.roomRepo.On("Deactivate", ctx, oldRoom.ID).Return(nil)

	err := f.engine.OnSectionUpdated(ctx, domain.SectionUpdatedEvent{
		SectionID: sectionID, CourseID: courseID, OldTAID: oldTA, NewTAID: newTA,
	})

	assert.NoError(t, err)
	f.memberRepo.AssertExpectations(t)
	f.roomRepo.AssertExpectations(t)

	assert.Len(t, f.events.Named(domain.EventUserLeftGroup), 2)
	assert.Len(t, f.events.Named(domain.EventUserJoinedGroup), 2)
	assert.Len(t, f.events.Named(domain.EventRoomDeleted), 1)
}

// When the old TA still teaches another section of the course, the old room
// stays active.
func TestOnSectionUpdated_OldRoomSurvivesRemainingSections(t *testing.T) {
	ctx := context.Background()
	sectionID := uuid.New().String()
	courseID := uuid.New().String()
	oldTA := "ta-old"
	newTA := "ta-new"

	oldRoom := &domain.Room{
		ID: "room-old", Type: domain.RoomTypeSection,
		TAID: &oldTA, CourseID: &courseID, IsActive: true,
	}
	newRoom := &domain.Room{
		ID: "room-new", Type: domain.RoomTypeSection,
		TAID: &newTA, CourseID: &courseID, IsActive: true,
	}

	f := newEngineFixture()
	f.academic.On("StudentIDsOfSection", ctx, sectionID).Return([]string{"s1"}, nil)
	f.roomRepo.On("FindActiveSectionRoom", ctx, oldTA, courseID).Return(oldRoom, nil)
	f.roomRepo.On("FindActiveSectionRoom", ctx, newTA, courseID).Return(newRoom, nil)
	f.memberRepo.On("Delete", ctx, oldRoom.ID, "s1").Return(nil)
	f.memberRepo.On("Upsert", ctx, mock.Anything).Return(nil)
	f.academic.On("SectionsByTAInCourse", ctx, oldTA, courseID).Return([]string{"other-section"}, nil)

	err := f.engine.OnSectionUpdated(ctx, domain.SectionUpdatedEvent{
		SectionID: sectionID, CourseID: courseID, OldTAID: oldTA, NewTAID: newTA,
	})

	assert.NoError(t, err)
	f.roomRepo.AssertNotCalled(t, "Deactivate", ctx, oldRoom.ID)
	assert.Empty(t, f.events.Named(domain.EventRoomDeleted))
}

func TestOnSectionUpdated_SameTANoOp(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()

	err := f.engine.OnSectionUpdated(ctx, domain.SectionUpdatedEvent{
		SectionID: uuid.New().String(), CourseID: uuid.New().String(),
		OldTAID: "ta-1", NewTAID: "ta-1",
	})

	assert.NoError(t, err)
	assert.Empty(t, f.events.All())
}

func TestOnEnrollmentCreated_JoinsClassAndSectionRooms(t *testing.T) {
	ctx := context.Background()
	classID := uuid.New().String()
	sectionID := uuid.New().String()
	courseID := uuid.New().String()
	taID := uuid.New().String()
	studentID := "s9"

	classRoom := &domain.Room{
		ID: "room-class", Type: domain.RoomTypeClass,
		CourseClassID: &classID, IsActive: true,
	}
	sectionRoom := &domain.Room{
		ID: "room-section", Type: domain.RoomTypeSection,
		TAID: &taID, CourseID: &courseID, IsActive: true,
	}

	f := newEngineFixture()
	f.roomRepo.On("FindActiveClassRoom", ctx, classID).Return(classRoom, nil)
	f.memberRepo.On("Upsert", ctx, mock.MatchedBy(func(m *domain.Membership) bool {
		return m.UserID == studentID && m.Role == domain.RoleMember
	})).Return(nil)
	f.academic.On("SectionTA", ctx, sectionID).Return(taID, courseID, nil)
	f.roomRepo.On("FindActiveSectionRoom", ctx, taID, courseID).Return(sectionRoom, nil)

	err := f.engine.OnEnrollmentCreated(ctx, domain.EnrollmentCreatedEvent{
		StudentID: studentID, ClassID: classID, CourseID: courseID, SectionID: sectionID,
	})

	assert.NoError(t, err)
	assert.Len(t, f.events.Named(domain.EventUserJoinedGroup), 2)
	assert.Len(t, f.events.Named(domain.EventUserEnrolledClass), 1)
}

func TestOnEnrollmentRemoved_LeavesRoomsAndClassTopic(t *testing.T) {
	ctx := context.Background()
	classID := uuid.New().String()
	studentID := "s9"

	classRoom := &domain.Room{
		ID: "room-class", Type: domain.RoomTypeClass,
		CourseClassID: &classID, IsActive: true,
	}

	f := newEngineFixture()
	f.roomRepo.On("FindActiveClassRoom", ctx, classID).Return(classRoom, nil)
	f.memberRepo.On("Delete", ctx, classRoom.ID, studentID).Return(nil)

	err := f.engine.OnEnrollmentRemoved(ctx, domain.EnrollmentRemovedEvent{
		StudentID: studentID, ClassID: classID,
	})

	assert.NoError(t, err)
	assert.Len(t, f.events.Named(domain.EventUserLeftGroup), 1)
	assert.Len(t, f.events.Named(domain.EventUserUnenrolledClass), 1)
}

func TestOnProfessorAssigned_AddsAdmin(t *testing.T) {
	ctx := context.Background()
	classID := uuid.New().String()
	profID := "prof-1"

	room := &domain.Room{
		ID: "room-class", Type: domain.RoomTypeClass,
		CourseClassID: &classID, IsActive: true,
	}

	f := newEngineFixture()
	f.roomRepo.On("FindActiveClassRoom", ctx, classID).Return(room, nil)
	f.memberRepo.On("Upsert", ctx, mock.MatchedBy(func(m *domain.Membership) bool {
		return m.UserID == profID && m.Role == domain.RoleAdmin
	})).Return(nil)

	err := f.engine.OnProfessorAssigned(ctx, domain.ProfessorAssignedEvent{
		ClassID: classID, ProfessorID: profID,
	})

	assert.NoError(t, err)
	f.memberRepo.AssertExpectations(t)
}

// Every delivery must run under a bounded context so a stalled store call
// cannot wedge the dispatch goroutine.
func TestGuard_BoundsHandlerContext(t *testing.T) {
	var hasDeadline bool
	h := guard(domain.EventClassCreated, 0, func(ctx context.Context, evt domain.ClassCreatedEvent) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	})

	h(context.Background(), eventbus.Event{
		Name:    domain.EventClassCreated,
		Payload: domain.ClassCreatedEvent{},
	})

	assert.True(t, hasDeadline)
}

func TestGuard_ConfiguredTimeoutWins(t *testing.T) {
	var deadline time.Time
	h := guard(domain.EventClassCreated, time.Second, func(ctx context.Context, evt domain.ClassCreatedEvent) error {
		deadline, _ = ctx.Deadline()
		return nil
	})

	before := time.Now()
	h(context.Background(), eventbus.Event{
		Name:    domain.EventClassCreated,
		Payload: domain.ClassCreatedEvent{},
	})

	assert.WithinDuration(t, before.Add(time.Second), deadline, 500*time.Millisecond)
}
