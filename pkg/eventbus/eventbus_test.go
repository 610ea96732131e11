package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"campus_chat_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.SetNewNop()
	m.Run()
}

func TestBus_DeliverInOrder(t *testing.T) {
	bus := New(16, nil)

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	bus.Subscribe("class.created", "recorder", func(ctx context.Context, evt Event) {
		mu.Lock()
		got = append(got, evt.Payload.(string))
		if len(got) == 3 {
			close(done)
		}
		mu.Unlock()
	})

	bus.Publish(context.Background(), Event{Name: "class.created", Payload: "a"})
	bus.Publish(context.Background(), Event{Name: "class.created", Payload: "b"})
	bus.Publish(context.Background(), Event{Name: "class.created", Payload: "c"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for deliveries")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, got)

	bus.Close()
}

func TestBus_PanicIsolation(t *testing.T) {
	bus := New(16, nil)

	delivered := make(chan string, 2)

	bus.Subscribe("enrollment.created", "panicker", func(ctx context.Context, evt Event) {
		panic("handler blew up")
	})
	bus.Subscribe("enrollment.created", "survivor", func(ctx context.Context, evt Event) {
		delivered <- evt.Payload.(string)
	})

	// publishing must not panic, and the sibling must still receive both
	bus.Publish(context.Background(), Event{Name: "enrollment.created", Payload: "one"})
	bus.Publish(context.Background(), Event{Name: "enrollment.created", Payload: "two"})

	assert.Equal(t, "one", <-delivered)
	assert.Equal(t, "two", <-delivered)

	bus.Close()
}

func TestBus_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	bus := New(1, nil)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	bus.Subscribe("section.updated", "slow", func(ctx context.Context, evt Event) {
		started <- struct{}{}
		<-block
	})

	// first occupies the handler, second fills the queue, third must drop
	// without blocking this goroutine
	bus.Publish(context.Background(), Event{Name: "section.updated", Payload: 1})
	<-started
	bus.Publish(context.Background(), Event{Name: "section.updated", Payload: 2})

	finished := make(chan struct{})
	go func() {
		bus.Publish(context.Background(), Event{Name: "section.updated", Payload: 3})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber queue")
	}

	close(block)
	bus.Close()
}

type journalRecorder struct {
	mu   sync.Mutex
	msgs []kafka.Message
	done chan struct{}
}

func (j *journalRecorder) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	j.mu.Lock()
	j.msgs = append(j.msgs, msgs...)
	j.mu.Unlock()
	select {
	case j.done <- struct{}{}:
	default:
	}
	return nil
}

func TestBus_JournalReceivesPublishedEvents(t *testing.T) {
	rec := &journalRecorder{done: make(chan struct{}, 1)}
	bus := New(16, rec)

	bus.Publish(context.Background(), Event{Name: "room.created", Payload: map[string]string{"room_id": "r-1"}})

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("journal never written")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.msgs, 1)
	assert.Equal(t, "room.created", string(rec.msgs[0].Key))

	bus.Close()
}
