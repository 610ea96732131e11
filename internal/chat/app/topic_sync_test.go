package app

import (
	"context"
	"errors"
	"testing"

	"campus_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
)

func TestTopicForRoom(t *testing.T) {
	assert.Equal(t, "class_r1", TopicForRoom(domain.RoomTypeClass, "r1"))
	assert.Equal(t, "section_r1", TopicForRoom(domain.RoomTypeSection, "r1"))
	assert.Equal(t, "group_r1", TopicForRoom(domain.RoomTypeGroup, "r1"))
	assert.Equal(t, "group_r1", TopicForRoom(domain.RoomTypePrivate, "r1"))
}

func TestOnRoomCreated_SubscribesEveryDevice(t *testing.T) {
	ctx := context.Background()
	gateway := new(MockPushGateway)
	academic := new(MockAcademicRepository)
	svc := NewTopicSyncService(gateway, academic, 0)

	academic.On("DeviceTokens", ctx, "s1").Return([]string{"tok-1a", "tok-1b"}, nil)
	academic.On("DeviceTokens", ctx, "s2").Return([]string{"tok-2"}, nil)
	gateway.On("Subscribe", ctx, "tok-1a", "class_room-1").Return(nil)
	gateway.On("Subscribe", ctx, "tok-1b", "class_room-1").Return(nil)
	gateway.On("Subscribe", ctx, "tok-2", "class_room-1").Return(nil)

	err := svc.OnRoomCreated(ctx, domain.RoomCreatedEvent{
		RoomID:    "room-1",
		Type:      domain.RoomTypeClass,
		MemberIDs: []string{"s1", "s2"},
	})

	assert.NoError(t, err)
	gateway.AssertExpectations(t)
}

// A gateway failure for one device must not stop the other devices.
func TestOnRoomCreated_GatewayFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	gateway := new(MockPushGateway)
	academic := new(MockAcademicRepository)
	svc := NewTopicSyncService(gateway, academic, 0)

	academic.On("DeviceTokens", ctx, "s1").Return([]string{"tok-bad", "tok-good"}, nil)
	gateway.On("Subscribe", ctx, "tok-bad", "group_room-1").Return(errors.New("provider down"))
	gateway.On("Subscribe", ctx, "tok-good", "group_room-1").Return(nil)

	err := svc.OnRoomCreated(ctx, domain.RoomCreatedEvent{
		RoomID:    "room-1",
		Type:      domain.RoomTypeGroup,
		MemberIDs: []string{"s1"},
	})

	assert.NoError(t, err)
	gateway.AssertExpectations(t)
}

func TestOnUserLeft_UnsubscribesDevices(t *testing.T) {
	ctx := context.Background()
	gateway := new(MockPushGateway)
	academic := new(MockAcademicRepository)
	svc := NewTopicSyncService(gateway, academic, 0)

	academic.On("DeviceTokens", ctx, "s1").Return([]string{"tok-1"}, nil)
	gateway.On("Unsubscribe", ctx, "tok-1", "section_room-2").Return(nil)

	err := svc.OnUserLeft(ctx, domain.MembershipChangedEvent{
		RoomID: "room-2",
		Type:   domain.RoomTypeSection,
		UserID: "s1",
	})

	assert.NoError(t, err)
	gateway.AssertExpectations(t)
}

func TestOnClassEnrolled_UsesClassTopic(t *testing.T) {
	ctx := context.Background()
	gateway := new(MockPushGateway)
	academic := new(MockAcademicRepository)
	svc := NewTopicSyncService(gateway, academic, 0)

	academic.On("DeviceTokens", ctx, "s1").Return([]string{"tok-1"}, nil)
	gateway.On("Subscribe", ctx, "tok-1", "class_class-9").Return(nil)

	err := svc.OnClassEnrolled(ctx, domain.ClassTopicEvent{ClassID: "class-9", UserID: "s1"})

	assert.NoError(t, err)
	gateway.AssertExpectations(t)
}

// No devices, no gateway calls, no error.
func TestSyncUser_NoTokensIsNoOp(t *testing.T) {
	ctx := context.Background()
	gateway := new(MockPushGateway)
	academic := new(MockAcademicRepository)
	svc := NewTopicSyncService(gateway, academic, 0)

	academic.On("DeviceTokens", ctx, "s1").Return([]string(nil), nil)

	err := svc.OnUserJoined(ctx, domain.MembershipChangedEvent{
		RoomID: "room-3",
		Type:   domain.RoomTypeGroup,
		UserID: "s1",
	})

	assert.NoError(t, err)
	gateway.AssertNotCalled(t, "Subscribe", ctx, "tok-1", "group_room-3")
}
