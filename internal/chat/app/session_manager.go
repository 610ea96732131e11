package app

import (
	"encoding/json"
	"sync"

	"campus_chat_service/internal/chat/domain"
	"campus_chat_service/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// Conn is the slice of *websocket.Conn the session registry and handlers
// need, so tests can substitute a recorder.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// lockedConn serializes writes onto one connection. The read loop, the ping
// ticker, the pub/sub fanout callbacks and a takeover notice can all reach
// WriteMessage concurrently; the underlying websocket connection supports
// only one writer at a time.
type lockedConn struct {
	mu sync.Mutex
	c  Conn
}

func newLockedConn(c Conn) *lockedConn {
	return &lockedConn{c: c}
}

func (l *lockedConn) WriteMessage(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.WriteMessage(messageType, data)
}

// Close stays outside the write lock so a stuck write cannot block an
// eviction.
func (l *lockedConn) Close() error {
	return l.c.Close()
}

type session struct {
	conn  Conn
	rooms map[string]struct{}
}

// SessionManager holds at most one live connection per user within one
// transport namespace. Connect/disconnect race across clients, so every
// mutation happens under the lock. This is the only purely in-memory shared
// structure in the service.
type SessionManager struct {
	namespace string

	mu       sync.RWMutex
	sessions map[string]*session
	// roomID -> set of userIDs currently joined, presence only
	rooms map[string]map[string]struct{}
}

// NewSessionManager create a SessionManager for one namespace
func NewSessionManager(namespace string) *SessionManager {
	return &SessionManager{
		namespace: namespace,
		sessions:  make(map[string]*session),
		rooms:     make(map[string]map[string]struct{}),
	}
}

// Register bind conn as the user's single live connection. If the user is
// already connected the old connection gets exactly one session_replaced
// notice and is closed before the new one is registered.
func (m *SessionManager) Register(userID string, conn Conn) {
	m.mu.Lock()
	old := m.sessions[userID]
	if old != nil {
		m.dropLocked(userID, old)
	}
	m.sessions[userID] = &session{
		conn:  conn,
		rooms: make(map[string]struct{}),
	}
	m.mu.Unlock()

	if old != nil {
		m.notifyReplaced(userID, old.conn)
	}
}

// Unregister remove the entry only if it still belongs to conn. After a
// takeover the evicted connection's deferred cleanup must not remove the
// successor.
func (m *SessionManager) Unregister(userID string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[userID]
	if s == nil || s.conn != conn {
		return
	}
	m.dropLocked(userID, s)
}

func (m *SessionManager) dropLocked(userID string, s *session) {
	for roomID := range s.rooms {
		if members := m.rooms[roomID]; members != nil {
			delete(members, userID)
			if len(members) == 0 {
				delete(m.rooms, roomID)
			}
		}
	}
	delete(m.sessions, userID)
}

func (m *SessionManager) notifyReplaced(userID string, conn Conn) {
	resp := domain.WSResponse{
		Action:  string(domain.SessionReplaced),
		Success: true,
	}
	data, _ := json.Marshal(resp)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.Log.Warn("session_replaced notice failed",
			zap.String("namespace", m.namespace),
			zap.String("userID", userID),
			zap.Error(err),
		)
	}
	if err := conn.Close(); err != nil {
		logger.Log.Warn("evicted connection close failed",
			zap.String("namespace", m.namespace),
			zap.String("userID", userID),
			zap.Error(err),
		)
	}
}

// JoinRoom record the user as present in roomID
func (m *SessionManager) JoinRoom(userID, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[userID]
	if s == nil {
		return
	}
	s.rooms[roomID] = struct{}{}
	if m.rooms[roomID] == nil {
		m.rooms[roomID] = make(map[string]struct{})
	}
	m.rooms[roomID][userID] = struct{}{}
}

// LeaveRoom clear the user's presence in roomID
func (m *SessionManager) LeaveRoom(userID, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.sessions[userID]; s != nil {
		delete(s.rooms, roomID)
	}
	if members := m.rooms[roomID]; members != nil {
		delete(members, userID)
		if len(members) == 0 {
			delete(m.rooms, roomID)
		}
	}
}

// IsOnline report whether the user has a live connection
func (m *SessionManager) IsOnline(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[userID] != nil
}

// OnlineMembersOf list users currently joined to roomID. Presence only,
// derived from key membership, never authoritative.
func (m *SessionManager) OnlineMembersOf(roomID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := m.rooms[roomID]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// Get return the user's live connection, if any
func (m *SessionManager) Get(userID string) (Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.sessions[userID]
	if s == nil {
		return nil, false
	}
	return s.conn, true
}
