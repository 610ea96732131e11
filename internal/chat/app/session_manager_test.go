package app

import (
	"encoding/json"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"campus_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
)

// fakeConn records writes and close calls in place of a websocket connection.
type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) lastAction(t *testing.T) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return ""
	}
	var resp domain.WSResponse
	if err := json.Unmarshal(c.messages[len(c.messages)-1], &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp.Action
}

func TestRegister_SecondConnectionEvictsFirst(t *testing.T) {
	m := NewSessionManager("groups")
	first := new(fakeConn)
	second := new(fakeConn)

	m.Register("u1", first)
	m.JoinRoom("u1", "room-1")
	m.Register("u1", second)

	assert.Equal(t, string(domain.SessionReplaced), first.lastAction(t))
	assert.True(t, first.closed)

	// the successor owns the session and starts with no room presence
	conn, ok := m.Get("u1")
	assert.True(t, ok)
	assert.Same(t, second, conn.(*fakeConn))
	assert.Empty(t, m.OnlineMembersOf("room-1"))
}

// The evicted connection's deferred cleanup must not unregister the
// successor.
func TestUnregister_StaleConnIsIgnored(t *testing.T) {
	m := NewSessionManager("groups")
	first := new(fakeConn)
	second := new(fakeConn)

	m.Register("u1", first)
	m.Register("u1", second)
	m.Unregister("u1", first)

	assert.True(t, m.IsOnline("u1"))

	m.Unregister("u1", second)
	assert.False(t, m.IsOnline("u1"))
}

func TestPresence_JoinLeaveRoom(t *testing.T) {
	m := NewSessionManager("groups")
	m.Register("u1", new(fakeConn))
	m.Register("u2", new(fakeConn))

	m.JoinRoom("u1", "room-1")
	m.JoinRoom("u2", "room-1")
	assert.ElementsMatch(t, []string{"u1", "u2"}, m.OnlineMembersOf("room-1"))

	m.LeaveRoom("u1", "room-1")
	assert.ElementsMatch(t, []string{"u2"}, m.OnlineMembersOf("room-1"))
}

// Joining before registering is ignored: presence always hangs off a live
// session.
func TestJoinRoom_WithoutSessionIsNoOp(t *testing.T) {
	m := NewSessionManager("groups")

	m.JoinRoom("ghost", "room-1")

	assert.Empty(t, m.OnlineMembersOf("room-1"))
	assert.False(t, m.IsOnline("ghost"))
}

func TestUnregister_ClearsAllRoomPresence(t *testing.T) {
	m := NewSessionManager("groups")
	conn := new(fakeConn)
	m.Register("u1", conn)
	m.JoinRoom("u1", "room-1")
	m.JoinRoom("u1", "room-2")

	m.Unregister("u1", conn)

	assert.Empty(t, m.OnlineMembersOf("room-1"))
	assert.Empty(t, m.OnlineMembersOf("room-2"))
}

// overlapConn flags any two writers inside WriteMessage at the same time,
// the condition a raw websocket connection panics on.
type overlapConn struct {
	inWrite int32
	overlap int32
}

func (c *overlapConn) WriteMessage(messageType int, data []byte) error {
	if !atomic.CompareAndSwapInt32(&c.inWrite, 0, 1) {
		atomic.StoreInt32(&c.overlap, 1)
		return nil
	}
	runtime.Gosched()
	atomic.StoreInt32(&c.inWrite, 0)
	return nil
}

func (c *overlapConn) Close() error { return nil }

// The fanout callbacks, the ping ticker and the read loop all write to one
// connection; the locked wrapper must serialize them.
func TestLockedConn_SerializesConcurrentWriters(t *testing.T) {
	raw := new(overlapConn)
	conn := newLockedConn(raw)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.NoError(t, conn.WriteMessage(1, []byte("x")))
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&raw.overlap))
}

func TestSessionManager_ConcurrentRegisterIsSafe(t *testing.T) {
	m := NewSessionManager("private")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Register("u1", new(fakeConn))
		}()
	}
	wg.Wait()

	assert.True(t, m.IsOnline("u1"))
}
