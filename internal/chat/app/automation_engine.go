package app

import (
	"context"
	"fmt"
	"time"

	academic "campus_chat_service/internal/academic/repository"
	"campus_chat_service/internal/chat/domain"
	"campus_chat_service/internal/chat/repository"
	"campus_chat_service/pkg/eventbus"
	"campus_chat_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// systemActor marks memberships and rooms created by automation rather than a
// person.
const systemActor = "system"

// automationSubscriber the bus subscriber name of the engine
const automationSubscriber = "room_automation"

// EventPublisher is the slice of *eventbus.Bus the engine needs to re-emit
// derived events.
type EventPublisher interface {
	Publish(ctx context.Context, evt eventbus.Event)
}

// RoomAutomationEngine reacts to academic lifecycle events by creating,
// populating and deactivating rooms. Every handler is guarded and idempotent:
// events arrive at least once, so a replay must converge on the same state,
// and a failing handler logs and returns without poisoning the bus.
type RoomAutomationEngine struct {
	roomRepo   repository.RoomRepository
	memberRepo repository.MembershipRepository
	academic   academic.AcademicRepository
	bus        EventPublisher
	opTimeout  time.Duration
}

// NewRoomAutomationEngine create a RoomAutomationEngine
func NewRoomAutomationEngine(
	roomRepo repository.RoomRepository,
	memberRepo repository.MembershipRepository,
	academicRepo academic.AcademicRepository,
	bus EventPublisher,
	opTimeout time.Duration,
) *RoomAutomationEngine {
	return &RoomAutomationEngine{
		roomRepo:   roomRepo,
		memberRepo: memberRepo,
		academic:   academicRepo,
		bus:        bus,
		opTimeout:  opTimeout,
	}
}

// RegisterHandlers subscribe the engine to every academic lifecycle event.
func (e *RoomAutomationEngine) RegisterHandlers(bus *eventbus.Bus) {
	bus.Subscribe(domain.EventClassCreated, automationSubscriber, guard(domain.EventClassCreated, e.opTimeout, e.OnClassCreated))
	bus.Subscribe(domain.EventClassUpdated, automationSubscriber, guard(domain.EventClassUpdated, e.opTimeout, e.OnClassUpdated))
	bus.Subscribe(domain.EventClassDeleted, automationSubscriber, guard(domain.EventClassDeleted, e.opTimeout, e.OnClassDeleted))
	bus.Subscribe(domain.EventSectionCreated, automationSubscriber, guard(domain.EventSectionCreated, e.opTimeout, e.OnSectionCreated))
	bus.Subscribe(domain.EventSectionUpdated, automationSubscriber, guard(domain.EventSectionUpdated, e.opTimeout, e.OnSectionUpdated))
	bus.Subscribe(domain.EventSectionDeleted, automationSubscriber, guard(domain.EventSectionDeleted, e.opTimeout, e.OnSectionDeleted))
	bus.Subscribe(domain.EventProfessorAssigned, automationSubscriber, guard(domain.EventProfessorAssigned, e.opTimeout, e.OnProfessorAssigned))
	bus.Subscribe(domain.EventProfessorRemoved, automationSubscriber, guard(domain.EventProfessorRemoved, e.opTimeout, e.OnProfessorRemoved))
	bus.Subscribe(domain.EventEnrollmentCreated, automationSubscriber, guard(domain.EventEnrollmentCreated, e.opTimeout, e.OnEnrollmentCreated))
	bus.Subscribe(domain.EventEnrollmentRemoved, automationSubscriber, guard(domain.EventEnrollmentRemoved, e.opTimeout, e.OnEnrollmentRemoved))
}

// guard adapt a typed handler into an eventbus.Handler, logging payload
// mismatches and handler errors instead of propagating them. Each delivery
// runs under its own bounded context.
func guard[T any](name string, timeout time.Duration, h func(ctx context.Context, payload T) error) eventbus.Handler {
	return func(ctx context.Context, evt eventbus.Event) {
		payload, ok := evt.Payload.(T)
		if !ok {
			logger.Log.Error("automation payload type mismatch",
				zap.String("event", name),
				zap.String("got", fmt.Sprintf("%T", evt.Payload)),
			)
			return
		}
		ctx, cancel := opDeadline(ctx, timeout)
		defer cancel()
		if err := h(ctx, payload); err != nil {
			logger.Log.Error("automation handler failed",
				zap.String("event", name),
				zap.Error(err),
			)
		}
	}
}

// OnClassCreated ensure the CLASS room exists and seed it with the current
// enrollees (MEMBER) and professors (ADMIN). Re-running on the same class is
// a no-op thanks to the membership upsert.
func (e *RoomAutomationEngine) OnClassCreated(ctx context.Context, evt domain.ClassCreatedEvent) error {
	room, err := e.roomRepo.FindActiveClassRoom(ctx, evt.ClassID)
	if err != nil {
		return err
	}

	created := false
	if room == nil {
		classID := evt.ClassID
		room = &domain.Room{
			ID:                 uuid.New().String(),
			Type:               domain.RoomTypeClass,
			Name:               evt.CourseCode + " " + evt.CourseName,
			CourseClassID:      &classID,
			IsActive:           true,
			IsMessagingEnabled: true,
		}
		if err := e.roomRepo.Create(ctx, room); err != nil {
			return err
		}
		created = true
	}

	students, err := e.academic.EnrolledStudentIDs(ctx, evt.ClassID)
	if err != nil {
		return err
	}
	professors, err := e.academic.ProfessorIDs(ctx, evt.ClassID)
	if err != nil {
		return err
	}

	memberIDs := make([]string, 0, len(students)+len(professors))
	for _, id := range professors {
		if err := e.upsertMember(ctx, room.ID, id, domain.RoleAdmin); err != nil {
			return err
		}
		memberIDs = append(memberIDs, id)
	}
	for _, id := range students {
		if err := e.upsertMember(ctx, room.ID, id, domain.RoleMember); err != nil {
			return err
		}
		memberIDs = append(memberIDs, id)
	}

	if created {
		e.bus.Publish(ctx, eventbus.Event{
			Name: domain.EventRoomCreated,
			Payload: domain.RoomCreatedEvent{
				RoomID:    room.ID,
				Type:      domain.RoomTypeClass,
				MemberIDs: memberIDs,
				CreatedBy: systemActor,
				ClassID:   evt.ClassID,
			},
		})
	}
	return nil
}

// OnClassUpdated rename the room to follow the class.
func (e *RoomAutomationEngine) OnClassUpdated(ctx context.Context, evt domain.ClassUpdatedEvent) error {
	room, err := e.roomRepo.FindActiveClassRoom(ctx, evt.ClassID)
	if err != nil || room == nil {
		return err
	}
	return e.roomRepo.Rename(ctx, room.ID, evt.CourseCode+" "+evt.CourseName)
}

// OnClassDeleted deactivate the room. History and memberships stay.
func (e *RoomAutomationEngine) OnClassDeleted(ctx context.Context, evt domain.ClassDeletedEvent) error {
	room, err := e.roomRepo.FindActiveClassRoom(ctx, evt.ClassID)
	if err != nil || room == nil {
		return err
	}

	memberIDs, err := e.memberRepo.MemberIDs(ctx, room.ID)
	if err != nil {
		return err
	}
	if err := e.roomRepo.Deactivate(ctx, room.ID); err != nil {
		return err
	}

	e.bus.Publish(ctx, eventbus.Event{
		Name: domain.EventRoomDeleted,
		Payload: domain.RoomDeletedEvent{
			RoomID:    room.ID,
			Type:      domain.RoomTypeClass,
			MemberIDs: memberIDs,
			ClassID:   evt.ClassID,
		},
	})
	return nil
}

// OnSectionCreated ensure the TA's course-wide SECTION room. All sections of
// one TA in one course share a single room, so a second section event finds
// the room and stops.
func (e *RoomAutomationEngine) OnSectionCreated(ctx context.Context, evt domain.SectionCreatedEvent) error {
	_, err := e.ensureSectionRoom(ctx, evt.TAID, evt.CourseID)
	return err
}

func (e *RoomAutomationEngine) ensureSectionRoom(ctx context.Context, taID, courseID string) (*domain.Room, error) {
	room, err := e.roomRepo.FindActiveSectionRoom(ctx, taID, courseID)
	if err != nil {
		return nil, err
	}
	if room != nil {
		return room, nil
	}

	ta, course := taID, courseID
	taName, err := e.academic.DisplayName(ctx, taID)
	if err != nil {
		return nil, err
	}

	room = &domain.Room{
		ID:                 uuid.New().String(),
		Type:               domain.RoomTypeSection,
		Name:               taName + " sections",
		TAID:               &ta,
		CourseID:           &course,
		IsActive:           true,
		IsMessagingEnabled: true,
	}
	if err := e.roomRepo.Create(ctx, room); err != nil {
		return nil, err
	}
	if err := e.upsertMember(ctx, room.ID, taID, domain.RoleAdmin); err != nil {
		return nil, err
	}

	e.bus.Publish(ctx, eventbus.Event{
		Name: domain.EventRoomCreated,
		Payload: domain.RoomCreatedEvent{
			RoomID:    room.ID,
			Type:      domain.RoomTypeSection,
			MemberIDs: []string{taID},
			CreatedBy: systemActor,
		},
	})
	return room, nil
}

// OnSectionUpdated move the section's students on a TA reassignment. One
// reconciliation pass: each student leaves the old TA's room and joins the
// new TA's room, then the old room is deactivated if the old TA has no
// remaining sections in the course. Replaying the event finds the work
// already done and changes nothing.
func (e *RoomAutomationEngine) OnSectionUpdated(ctx context.Context, evt domain.SectionUpdatedEvent) error {
	if evt.OldTAID == evt.NewTAID {
		return nil
	}

	students, err := e.academic.StudentIDsOfSection(ctx, evt.SectionID)
	if err != nil {
		return err
	}

	oldRoom, err := e.roomRepo.FindActiveSectionRoom(ctx, evt.OldTAID, evt.CourseID)
	if err != nil {
		return err
	}
	newRoom, err := e.ensureSectionRoom(ctx, evt.NewTAID, evt.CourseID)
	if err != nil {
		return err
	}

	for _, studentID := range students {
		if oldRoom != nil {
			if err := e.removeMember(ctx, oldRoom, studentID); err != nil {
				return err
			}
		}
		if err := e.addMember(ctx, newRoom, studentID, domain.RoleMember); err != nil {
			return err
		}
	}

	if oldRoom == nil {
		return nil
	}

	// The sections table already reflects the reassignment, so an empty
	// result means the old TA is done with this course.
	remaining, err := e.academic.SectionsByTAInCourse(ctx, evt.OldTAID, evt.CourseID)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return nil
	}

	memberIDs, err := e.memberRepo.MemberIDs(ctx, oldRoom.ID)
	if err != nil {
		return err
	}
	if err := e.roomRepo.Deactivate(ctx, oldRoom.ID); err != nil {
		return err
	}

	e.bus.Publish(ctx, eventbus.Event{
		Name: domain.EventRoomDeleted,
		Payload: domain.RoomDeletedEvent{
			RoomID:    oldRoom.ID,
			Type:      domain.RoomTypeSection,
			MemberIDs: memberIDs,
		},
	})
	return nil
}

// OnSectionDeleted deactivate the TA's room only when no other section keeps
// it alive.
func (e *RoomAutomationEngine) OnSectionDeleted(ctx context.Context, evt domain.SectionDeletedEvent) error {
	remaining, err := e.academic.SectionsByTAInCourse(ctx, evt.TAID, evt.CourseID)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return nil
	}

	room, err := e.roomRepo.FindActiveSectionRoom(ctx, evt.TAID, evt.CourseID)
	if err != nil || room == nil {
		return err
	}

	memberIDs, err := e.memberRepo.MemberIDs(ctx, room.ID)
	if err != nil {
		return err
	}
	if err := e.roomRepo.Deactivate(ctx, room.ID); err != nil {
		return err
	}

	e.bus.Publish(ctx, eventbus.Event{
		Name: domain.EventRoomDeleted,
		Payload: domain.RoomDeletedEvent{
			RoomID:    room.ID,
			Type:      domain.RoomTypeSection,
			MemberIDs: memberIDs,
		},
	})
	return nil
}

// OnProfessorAssigned add the professor as room ADMIN.
func (e *RoomAutomationEngine) OnProfessorAssigned(ctx context.Context, evt domain.ProfessorAssignedEvent) error {
	room, err := e.roomRepo.FindActiveClassRoom(ctx, evt.ClassID)
	if err != nil || room == nil {
		return err
	}
	return e.addMember(ctx, room, evt.ProfessorID, domain.RoleAdmin)
}

// OnProfessorRemoved drop the professor's membership.
func (e *RoomAutomationEngine) OnProfessorRemoved(ctx context.Context, evt domain.ProfessorRemovedEvent) error {
	room, err := e.roomRepo.FindActiveClassRoom(ctx, evt.ClassID)
	if err != nil || room == nil {
		return err
	}
	return e.removeMember(ctx, room, evt.ProfessorID)
}

// OnEnrollmentCreated add the student to the CLASS room and, when the
// enrollment names a section, the TA's SECTION room. Also emits the class
// topic event, which tracks enrollment rather than room membership.
func (e *RoomAutomationEngine) OnEnrollmentCreated(ctx context.Context, evt domain.EnrollmentCreatedEvent) error {
	room, err := e.roomRepo.FindActiveClassRoom(ctx, evt.ClassID)
	if err != nil {
		return err
	}
	if room != nil {
		if err := e.addMember(ctx, room, evt.StudentID, domain.RoleMember); err != nil {
			return err
		}
	}

	e.bus.Publish(ctx, eventbus.Event{
		Name:    domain.EventUserEnrolledClass,
		Payload: domain.ClassTopicEvent{ClassID: evt.ClassID, UserID: evt.StudentID},
	})

	if evt.SectionID == "" {
		return nil
	}

	taID, courseID, err := e.academic.SectionTA(ctx, evt.SectionID)
	if err != nil {
		if domain.IsNotFound(err) {
			logger.Log.Warn("enrollment names unknown section",
				zap.String("section", evt.SectionID))
			return nil
		}
		return err
	}

	sectionRoom, err := e.roomRepo.FindActiveSectionRoom(ctx, taID, courseID)
	if err != nil || sectionRoom == nil {
		return err
	}
	return e.addMember(ctx, sectionRoom, evt.StudentID, domain.RoleMember)
}

// OnEnrollmentRemoved drop the student from the CLASS room and the section
// room, emit the class topic event.
func (e *RoomAutomationEngine) OnEnrollmentRemoved(ctx context.Context, evt domain.EnrollmentRemovedEvent) error {
	room, err := e.roomRepo.FindActiveClassRoom(ctx, evt.ClassID)
	if err != nil {
		return err
	}
	if room != nil {
		if err := e.removeMember(ctx, room, evt.StudentID); err != nil {
			return err
		}
	}

	e.bus.Publish(ctx, eventbus.Event{
		Name:    domain.EventUserUnenrolledClass,
		Payload: domain.ClassTopicEvent{ClassID: evt.ClassID, UserID: evt.StudentID},
	})

	if evt.SectionID == "" {
		return nil
	}

	taID, courseID, err := e.academic.SectionTA(ctx, evt.SectionID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil
		}
		return err
	}

	sectionRoom, err := e.roomRepo.FindActiveSectionRoom(ctx, taID, courseID)
	if err != nil || sectionRoom == nil {
		return err
	}
	return e.removeMember(ctx, sectionRoom, evt.StudentID)
}

func (e *RoomAutomationEngine) upsertMember(ctx context.Context, roomID, userID string, role domain.Role) error {
	return e.memberRepo.Upsert(ctx, &domain.Membership{
		RoomID: roomID,
		UserID: userID,
		Role:   role,
	})
}

// addMember upsert the membership and announce the join for topic sync. The
// upsert makes a replayed event a silent no-op at the table level; the join
// event is re-emitted, which topic subscription absorbs idempotently.
func (e *RoomAutomationEngine) addMember(ctx context.Context, room *domain.Room, userID string, role domain.Role) error {
	if err := e.upsertMember(ctx, room.ID, userID, role); err != nil {
		return err
	}
	e.bus.Publish(ctx, eventbus.Event{
		Name: domain.EventUserJoinedGroup,
		Payload: domain.MembershipChangedEvent{
			RoomID: room.ID,
			Type:   room.Type,
			UserID: userID,
		},
	})
	return nil
}

func (e *RoomAutomationEngine) removeMember(ctx context.Context, room *domain.Room, userID string) error {
	if err := e.memberRepo.Delete(ctx, room.ID, userID); err != nil {
		return err
	}
	e.bus.Publish(ctx, eventbus.Event{
		Name: domain.EventUserLeftGroup,
		Payload: domain.MembershipChangedEvent{
			RoomID: room.ID,
			Type:   room.Type,
			UserID: userID,
		},
	})
	return nil
}
