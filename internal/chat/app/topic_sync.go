package app

import (
	"context"
	"sync"
	"time"

	academic "campus_chat_service/internal/academic/repository"
	"campus_chat_service/internal/chat/domain"
	"campus_chat_service/pkg/eventbus"
	"campus_chat_service/pkg/logger"
	"campus_chat_service/pkg/pushgw"

	"go.uber.org/zap"
)

// topicSubscriber the bus subscriber name of the service
const topicSubscriber = "topic_sync"

// ClassRoomTopic push topic of a CLASS room
func ClassRoomTopic(roomID string) string {
	return "class_" + roomID
}

// ClassTopic class-wide push topic keyed by class id, independent of any room
func ClassTopic(classID string) string {
	return "class_" + classID
}

// SectionTopic push topic of a SECTION room
func SectionTopic(roomID string) string {
	return "section_" + roomID
}

// GroupTopic push topic of a GROUP or PRIVATE room
func GroupTopic(roomID string) string {
	return "group_" + roomID
}

// TopicForRoom the push topic a room's members subscribe to
func TopicForRoom(roomType domain.RoomType, roomID string) string {
	switch roomType {
	case domain.RoomTypeClass:
		return ClassRoomTopic(roomID)
	case domain.RoomTypeSection:
		return SectionTopic(roomID)
	default:
		return GroupTopic(roomID)
	}
}

// TopicSyncService keeps push-notification topic subscriptions aligned with
// room membership and class enrollment. All gateway calls are best effort:
// subscription drift is repaired by the next event for the same user, so a
// failed call logs and moves on instead of failing the batch.
type TopicSyncService struct {
	gateway   pushgw.PushGateway
	academic  academic.AcademicRepository
	opTimeout time.Duration
}

// NewTopicSyncService create a TopicSyncService
func NewTopicSyncService(gateway pushgw.PushGateway, academicRepo academic.AcademicRepository, opTimeout time.Duration) *TopicSyncService {
	return &TopicSyncService{
		gateway:   gateway,
		academic:  academicRepo,
		opTimeout: opTimeout,
	}
}

// RegisterHandlers subscribe the service to the derived room/topic events.
func (s *TopicSyncService) RegisterHandlers(bus *eventbus.Bus) {
	bus.Subscribe(domain.EventRoomCreated, topicSubscriber, guard(domain.EventRoomCreated, s.opTimeout, s.OnRoomCreated))
	bus.Subscribe(domain.EventRoomDeleted, topicSubscriber, guard(domain.EventRoomDeleted, s.opTimeout, s.OnRoomDeleted))
	bus.Subscribe(domain.EventUserJoinedGroup, topicSubscriber, guard(domain.EventUserJoinedGroup, s.opTimeout, s.OnUserJoined))
	bus.Subscribe(domain.EventUserLeftGroup, topicSubscriber, guard(domain.EventUserLeftGroup, s.opTimeout, s.OnUserLeft))
	bus.Subscribe(domain.EventUserEnrolledClass, topicSubscriber, guard(domain.EventUserEnrolledClass, s.opTimeout, s.OnClassEnrolled))
	bus.Subscribe(domain.EventUserUnenrolledClass, topicSubscriber, guard(domain.EventUserUnenrolledClass, s.opTimeout, s.OnClassUnenrolled))
}

// OnRoomCreated subscribe every member's devices to the room topic, fanned
// out concurrently per user.
func (s *TopicSyncService) OnRoomCreated(ctx context.Context, evt domain.RoomCreatedEvent) error {
	s.fanOut(ctx, evt.MemberIDs, TopicForRoom(evt.Type, evt.RoomID), true)
	return nil
}

// OnRoomDeleted unsubscribe every member's devices from the room topic.
func (s *TopicSyncService) OnRoomDeleted(ctx context.Context, evt domain.RoomDeletedEvent) error {
	s.fanOut(ctx, evt.MemberIDs, TopicForRoom(evt.Type, evt.RoomID), false)
	return nil
}

func (s *TopicSyncService) OnUserJoined(ctx context.Context, evt domain.MembershipChangedEvent) error {
	return s.syncUser(ctx, evt.UserID, TopicForRoom(evt.Type, evt.RoomID), true)
}

func (s *TopicSyncService) OnUserLeft(ctx context.Context, evt domain.MembershipChangedEvent) error {
	return s.syncUser(ctx, evt.UserID, TopicForRoom(evt.Type, evt.RoomID), false)
}

func (s *TopicSyncService) OnClassEnrolled(ctx context.Context, evt domain.ClassTopicEvent) error {
	return s.syncUser(ctx, evt.UserID, ClassTopic(evt.ClassID), true)
}

func (s *TopicSyncService) OnClassUnenrolled(ctx context.Context, evt domain.ClassTopicEvent) error {
	return s.syncUser(ctx, evt.UserID, ClassTopic(evt.ClassID), false)
}

// fanOut run syncUser for each user concurrently and wait for the batch.
// Per-user failures are logged inside syncUser and do not stop siblings.
func (s *TopicSyncService) fanOut(ctx context.Context, userIDs []string, topic string, subscribe bool) {
	var wg sync.WaitGroup
	for _, userID := range userIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.syncUser(ctx, id, topic, subscribe); err != nil {
				logger.Log.Error("topic sync failed",
					zap.String("user", id),
					zap.String("topic", topic),
					zap.Bool("subscribe", subscribe),
					zap.Error(err),
				)
			}
		}(userID)
	}
	wg.Wait()
}

// syncUser apply the subscribe/unsubscribe to every device token of one
// user. A user without tokens is a no-op, not an error.
func (s *TopicSyncService) syncUser(ctx context.Context, userID, topic string, subscribe bool) error {
	tokens, err := s.academic.DeviceTokens(ctx, userID)
	if err != nil {
		return err
	}

	for _, t := range tokens {
		if subscribe {
			err = s.gateway.Subscribe(ctx, t, topic)
		} else {
			err = s.gateway.Unsubscribe(ctx, t, topic)
		}
		if err != nil {
			logger.Log.Warn("push gateway call failed",
				zap.String("topic", topic),
				zap.Bool("subscribe", subscribe),
				zap.Error(err),
			)
		}
	}
	return nil
}
