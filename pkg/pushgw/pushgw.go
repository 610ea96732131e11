package pushgw

import (
	"context"
	"encoding/json"
	"fmt"

	"campus_chat_service/pkg/database"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// Payload is one push notification body.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// PushGateway manages device-token topic subscriptions and per-token /
// per-topic sends. Implementations must be idempotent: subscribing an
// already-subscribed token is a no-op downstream.
type PushGateway interface {
	Subscribe(ctx context.Context, token, topic string) error
	Unsubscribe(ctx context.Context, token, topic string) error
	SendToToken(ctx context.Context, token string, p Payload) (string, error)
	SendToTopic(ctx context.Context, topic string, p Payload) (string, error)
}

// Command ops understood by the delivery worker.
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpSendToken   = "send_token"
	OpSendTopic   = "send_topic"
)

// Command is one unit of work on the push delivery queue.
type Command struct {
	Op        string   `json:"op"`
	MessageID string   `json:"message_id,omitempty"`
	Token     string   `json:"token,omitempty"`
	Topic     string   `json:"topic,omitempty"`
	Payload   *Payload `json:"payload,omitempty"`
}

type amqpGateway struct {
	rabbit database.RabbitRepo
	queue  string
}

// NewAMQPGateway create a PushGateway that enqueues commands on a durable
// RabbitMQ queue drained by the push worker.
func NewAMQPGateway(rabbit database.RabbitRepo, queue string) PushGateway {
	return &amqpGateway{rabbit: rabbit, queue: queue}
}

func (g *amqpGateway) publish(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal push command: %w", err)
	}

	return g.rabbit.Publish("", g.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (g *amqpGateway) Subscribe(ctx context.Context, token, topic string) error {
	return g.publish(ctx, Command{Op: OpSubscribe, Token: token, Topic: topic})
}

func (g *amqpGateway) Unsubscribe(ctx context.Context, token, topic string) error {
	return g.publish(ctx, Command{Op: OpUnsubscribe, Token: token, Topic: topic})
}

func (g *amqpGateway) SendToToken(ctx context.Context, token string, p Payload) (string, error) {
	id := uuid.New().String()
	if err := g.publish(ctx, Command{Op: OpSendToken, MessageID: id, Token: token, Payload: &p}); err != nil {
		return "", err
	}
	return id, nil
}

func (g *amqpGateway) SendToTopic(ctx context.Context, topic string, p Payload) (string, error) {
	id := uuid.New().String()
	if err := g.publish(ctx, Command{Op: OpSendTopic, MessageID: id, Topic: topic, Payload: &p}); err != nil {
		return "", err
	}
	return id, nil
}
