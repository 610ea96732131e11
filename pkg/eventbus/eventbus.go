package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"campus_chat_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event is one published notification. Payload carries the typed event
// struct of the producing domain.
type Event struct {
	Name    string      `json:"name"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload"`
}

// Handler processes one delivered event.
type Handler func(ctx context.Context, evt Event)

// JournalWriter is the slice of *kafka.Writer the bus needs, so tests can
// substitute a recorder.
type JournalWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type subscriber struct {
	name    string
	handler Handler
	queue   chan Event
}

// Bus is an in-process publish/subscribe dispatcher. Each subscriber owns a
// bounded queue drained by its own goroutine, so a slow subscriber never
// delays the publisher or a sibling subscriber. Delivery is at-least-once
// within the process; a full queue drops the event with an error log and the
// kafka journal is the replay path.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string][]*subscriber
	queueSize int
	journal   JournalWriter
	wg        sync.WaitGroup
	closed    bool
}

// New create a Bus. queueSize bounds each subscriber's backlog. journal may
// be nil to disable the replay journal.
func New(queueSize int, journal JournalWriter) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Bus{
		subs:      make(map[string][]*subscriber),
		queueSize: queueSize,
		journal:   journal,
	}
}

// Subscribe register handler for eventName under subscriberName. Each call
// creates an independent bounded queue and drain goroutine.
func (b *Bus) Subscribe(eventName, subscriberName string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	sub := &subscriber{
		name:    subscriberName,
		handler: h,
		queue:   make(chan Event, b.queueSize),
	}
	b.subs[eventName] = append(b.subs[eventName], sub)

	b.wg.Add(1)
	go b.drain(sub)
}

// drain runs one subscriber's queue until it is closed. A panicking handler
// is recovered per delivery so it cannot take down sibling deliveries.
func (b *Bus) drain(sub *subscriber) {
	defer b.wg.Done()
	for evt := range sub.queue {
		b.deliver(sub, evt)
	}
}

func (b *Bus) deliver(sub *subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("event handler panic",
				zap.String("subscriber", sub.name),
				zap.String("event", evt.Name),
				zap.String("panic", fmt.Sprintf("%v", r)),
			)
		}
	}()
	sub.handler(context.Background(), evt)
}

// Publish hand evt to every subscriber of evt.Name without blocking the
// caller. The academic write that triggered the event returns regardless of
// the automation outcome.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}

	b.mu.RLock()
	subs := b.subs[evt.Name]
	journal := b.journal
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.queue <- evt:
		default:
			logger.Log.Error("event queue full, dropping event",
				zap.String("subscriber", sub.name),
				zap.String("event", evt.Name),
			)
		}
	}

	if journal != nil {
		go b.writeJournal(evt)
	}
}

// writeJournal append the event to the kafka replay journal, best effort.
func (b *Bus) writeJournal(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		logger.Log.Errorf("journal marshal failed:", err, zap.String("event", evt.Name))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.journal.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Name),
		Value: data,
	}); err != nil {
		logger.Log.Errorf("journal write failed:", err, zap.String("event", evt.Name))
	}
}

// Close stop accepting subscriptions, close all queues and wait for drains.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			close(sub.queue)
		}
	}
	b.mu.Unlock()

	b.wg.Wait()
}
