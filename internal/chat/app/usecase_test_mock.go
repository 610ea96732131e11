package app

import (
	"context"
	"io"
	"sync"
	"time"

	"campus_chat_service/internal/chat/domain"
	"campus_chat_service/internal/chat/repository"
	"campus_chat_service/pkg/eventbus"
	"campus_chat_service/pkg/filestore"
	"campus_chat_service/pkg/pushgw"

	"github.com/stretchr/testify/mock"
)

// MockRoomRepository Mock RoomRepository
type MockRoomRepository struct {
	mock.Mock
}

// Create mock create room
func (m *MockRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

// FindByID mock find room by id
func (m *MockRoomRepository) FindByID(ctx context.Context, roomID string) (*domain.Room, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindActiveClassRoom mock find active class room
func (m *MockRoomRepository) FindActiveClassRoom(ctx context.Context, classID string) (*domain.Room, error) {
	args := m.Called(ctx, classID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindActiveSectionRoom mock find active section room
func (m *MockRoomRepository) FindActiveSectionRoom(ctx context.Context, taID, courseID string) (*domain.Room, error) {
	args := m.Called(ctx, taID, courseID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindPrivateRoom mock find private room by pair key
func (m *MockRoomRepository) FindPrivateRoom(ctx context.Context, pairKey string) (*domain.Room, error) {
	args := m.Called(ctx, pairKey)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

// Rename mock rename room
func (m *MockRoomRepository) Rename(ctx context.Context, roomID, name string) error {
	args := m.Called(ctx, roomID, name)
	return args.Error(0)
}

// Deactivate mock deactivate room
func (m *MockRoomRepository) Deactivate(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

// SetMessagingEnabled mock set messaging flag
func (m *MockRoomRepository) SetMessagingEnabled(ctx context.Context, roomID string, enabled bool) error {
	args := m.Called(ctx, roomID, enabled)
	return args.Error(0)
}

// SetSlowMode mock set slow mode
func (m *MockRoomRepository) SetSlowMode(ctx context.Context, roomID string, seconds *int) error {
	args := m.Called(ctx, roomID, seconds)
	return args.Error(0)
}

// MockMembershipRepository Mock MembershipRepository
type MockMembershipRepository struct {
	mock.Mock
}

// Upsert mock upsert membership
func (m *MockMembershipRepository) Upsert(ctx context.Context, mem *domain.Membership) error {
	args := m.Called(ctx, mem)
	return args.Error(0)
}

// Delete mock delete membership
func (m *MockMembershipRepository) Delete(ctx context.Context, roomID, userID string) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

// Find mock find membership
func (m *MockMembershipRepository) Find(ctx context.Context, roomID, userID string) (*domain.Membership, error) {
	args := m.Called(ctx, roomID, userID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Membership), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListByRoom mock list memberships of a room
func (m *MockMembershipRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.Membership, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Membership), args.Error(1)
	}
	return nil, args.Error(1)
}

// MemberIDs mock list non-blocked member ids
func (m *MockMembershipRepository) MemberIDs(ctx context.Context, roomID string) ([]string, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// SetBlocked mock block member
func (m *MockMembershipRepository) SetBlocked(ctx context.Context, roomID, userID string, by string) error {
	args := m.Called(ctx, roomID, userID, by)
	return args.Error(0)
}

// Reactivate mock clear block fields
func (m *MockMembershipRepository) Reactivate(ctx context.Context, roomID, userID string, role domain.Role) error {
	args := m.Called(ctx, roomID, userID, role)
	return args.Error(0)
}

// SetMuted mock mute/unmute member
func (m *MockMembershipRepository) SetMuted(ctx context.Context, roomID, userID string, muted bool, by string) error {
	args := m.Called(ctx, roomID, userID, muted, by)
	return args.Error(0)
}

// StampLastMessage mock update slow-mode stamp
func (m *MockMembershipRepository) StampLastMessage(ctx context.Context, roomID, userID string, at time.Time) error {
	args := m.Called(ctx, roomID, userID, at)
	return args.Error(0)
}

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Insert mock insert message
func (m *MockMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// FindByID mock find message by id
func (m *MockMessageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// Edit mock edit message
func (m *MockMessageRepository) Edit(ctx context.Context, messageID, content string, at time.Time) error {
	args := m.Called(ctx, messageID, content, at)
	return args.Error(0)
}

// SoftDelete mock soft delete message
func (m *MockMessageRepository) SoftDelete(ctx context.Context, messageID string, at time.Time) error {
	args := m.Called(ctx, messageID, at)
	return args.Error(0)
}

// Page mock page messages
func (m *MockMessageRepository) Page(ctx context.Context, roomID string, limit int, cursor *time.Time, direction domain.PageDirection) ([]domain.Message, error) {
	args := m.Called(ctx, roomID, limit, cursor, direction)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkRead mock record read receipts
func (m *MockMessageRepository) MarkRead(ctx context.Context, messageIDs []string, userID string) error {
	args := m.Called(ctx, messageIDs, userID)
	return args.Error(0)
}

// MockPinRepository Mock PinRepository
type MockPinRepository struct {
	mock.Mock
}

// Pin mock pin message
func (m *MockPinRepository) Pin(ctx context.Context, pin *domain.PinnedMessage) error {
	args := m.Called(ctx, pin)
	return args.Error(0)
}

// Unpin mock unpin message
func (m *MockPinRepository) Unpin(ctx context.Context, roomID, messageID string) error {
	args := m.Called(ctx, roomID, messageID)
	return args.Error(0)
}

// List mock list pins
func (m *MockPinRepository) List(ctx context.Context, roomID string) ([]domain.PinnedMessage, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.PinnedMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAuditRepository Mock AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

// Record mock record audit entry
func (m *MockAuditRepository) Record(ctx context.Context, entry *repository.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// FindByRoom mock list audit entries
func (m *MockAuditRepository) FindByRoom(ctx context.Context, roomID string, limit int64) ([]repository.AuditEntry, error) {
	args := m.Called(ctx, roomID, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]repository.AuditEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAcademicRepository Mock AcademicRepository
type MockAcademicRepository struct {
	mock.Mock
}

// EnrolledStudentIDs mock enrolled students of a class
func (m *MockAcademicRepository) EnrolledStudentIDs(ctx context.Context, classID string) ([]string, error) {
	args := m.Called(ctx, classID)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// ProfessorIDs mock professors of a class
func (m *MockAcademicRepository) ProfessorIDs(ctx context.Context, classID string) ([]string, error) {
	args := m.Called(ctx, classID)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// HasActiveEnrollmentInClass mock enrollment check
func (m *MockAcademicRepository) HasActiveEnrollmentInClass(ctx context.Context, userID, classID string) (bool, error) {
	args := m.Called(ctx, userID, classID)
	return args.Bool(0), args.Error(1)
}

// HasEnrollmentInCourse mock course enrollment check
func (m *MockAcademicRepository) HasEnrollmentInCourse(ctx context.Context, userID, courseID string) (bool, error) {
	args := m.Called(ctx, userID, courseID)
	return args.Bool(0), args.Error(1)
}

// IsProfessorOfClass mock professor check
func (m *MockAcademicRepository) IsProfessorOfClass(ctx context.Context, userID, classID string) (bool, error) {
	args := m.Called(ctx, userID, classID)
	return args.Bool(0), args.Error(1)
}

// StudentIDsOfSection mock students of a section
func (m *MockAcademicRepository) StudentIDsOfSection(ctx context.Context, sectionID string) ([]string, error) {
	args := m.Called(ctx, sectionID)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// SectionsByTAInCourse mock remaining sections of a TA
func (m *MockAcademicRepository) SectionsByTAInCourse(ctx context.Context, taID, courseID string) ([]string, error) {
	args := m.Called(ctx, taID, courseID)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// SectionTA mock TA and course of a section
func (m *MockAcademicRepository) SectionTA(ctx context.Context, sectionID string) (string, string, error) {
	args := m.Called(ctx, sectionID)
	return args.String(0), args.String(1), args.Error(2)
}

// DisplayName mock single display name lookup
func (m *MockAcademicRepository) DisplayName(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

// DisplayNames mock batch display name lookup
func (m *MockAcademicRepository) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) != nil {
		return args.Get(0).(map[string]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// DeviceTokens mock device tokens of a user
func (m *MockAcademicRepository) DeviceTokens(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockRedisPubSub Mock PubSub
type MockRedisPubSub struct {
	mock.Mock
}

// Publish mock publisher
func (m *MockRedisPubSub) Publish(channel string, resp domain.WSResponse) error {
	args := m.Called(channel, resp)
	return args.Error(0)
}

// Subscribe mock subscriber
func (m *MockRedisPubSub) Subscribe(ctx context.Context, channel string, handler func(resp domain.WSResponse)) error {
	args := m.Called(channel, handler)
	return args.Error(0)
}

// MockPushGateway Mock PushGateway
type MockPushGateway struct {
	mock.Mock
}

// Subscribe mock topic subscribe
func (m *MockPushGateway) Subscribe(ctx context.Context, token, topic string) error {
	args := m.Called(ctx, token, topic)
	return args.Error(0)
}

// Unsubscribe mock topic unsubscribe
func (m *MockPushGateway) Unsubscribe(ctx context.Context, token, topic string) error {
	args := m.Called(ctx, token, topic)
	return args.Error(0)
}

// SendToToken mock direct push
func (m *MockPushGateway) SendToToken(ctx context.Context, token string, p pushgw.Payload) (string, error) {
	args := m.Called(ctx, token, p)
	return args.String(0), args.Error(1)
}

// SendToTopic mock topic push
func (m *MockPushGateway) SendToTopic(ctx context.Context, topic string, p pushgw.Payload) (string, error) {
	args := m.Called(ctx, topic, p)
	return args.String(0), args.Error(1)
}

// MockFileStore Mock FileStore
type MockFileStore struct {
	mock.Mock
}

// Upload mock upload
func (m *MockFileStore) Upload(ctx context.Context, fileName string, r io.Reader, size int64, contentType string) (*filestore.Object, error) {
	args := m.Called(ctx, fileName, size, contentType)
	if args.Get(0) != nil {
		return args.Get(0).(*filestore.Object), args.Error(1)
	}
	return nil, args.Error(1)
}

// ServableURL mock presigned url
func (m *MockFileStore) ServableURL(ctx context.Context, ref string) (string, error) {
	args := m.Called(ctx, ref)
	return args.String(0), args.Error(1)
}

// MockAccessValidator Mock AccessValidator
type MockAccessValidator struct {
	mock.Mock
}

// CanAccess mock access check
func (m *MockAccessValidator) CanAccess(ctx context.Context, userID, roomID string) (bool, error) {
	args := m.Called(ctx, userID, roomID)
	return args.Bool(0), args.Error(1)
}

// EventRecorder captures published events for assertions.
type EventRecorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

// Publish record the event
func (r *EventRecorder) Publish(ctx context.Context, evt eventbus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Named the recorded events with the given name, in publish order
func (r *EventRecorder) Named(name string) []eventbus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []eventbus.Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// All the recorded events in publish order
func (r *EventRecorder) All() []eventbus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]eventbus.Event(nil), r.events...)
}
