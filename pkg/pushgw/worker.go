package pushgw

import (
	"context"
	"encoding/json"

	"campus_chat_service/pkg/logger"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Sink is the device-push edge the worker hands commands to. The real
// transport (APNs/FCM relay) lives outside this repository.
type Sink interface {
	Apply(ctx context.Context, cmd Command) error
}

// Consumer drains the push delivery queue and applies each command to the
// sink, acking on success and requeueing on failure.
type Consumer struct {
	channel   *amqp.Channel
	queueName string
	sink      Sink
}

// NewConsumer create a Consumer
func NewConsumer(channel *amqp.Channel, queueName string, sink Sink) *Consumer {
	return &Consumer{
		channel:   channel,
		queueName: queueName,
		sink:      sink,
	}
}

// Start consume until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer tag assigned by broker
		false, // manual ack
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	logger.Log.Info("push worker started", zap.String("queue", c.queueName))

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				logger.Log.Warn("push delivery channel closed")
				return nil
			}

			var cmd Command
			if err := json.Unmarshal(d.Body, &cmd); err != nil {
				logger.Log.Errorf("bad push command, discarding:", err)
				// malformed payloads never become deliverable; drop them
				if err := d.Nack(false, false); err != nil {
					logger.Log.Errorf("nack failed:", err)
				}
				continue
			}

			if err := c.sink.Apply(ctx, cmd); err != nil {
				logger.Log.Errorf("push command failed, requeueing:", err,
					zap.String("op", cmd.Op),
					zap.String("topic", cmd.Topic),
				)
				if err := d.Nack(false, true); err != nil {
					logger.Log.Errorf("nack failed:", err)
				}
				continue
			}

			if err := d.Ack(false); err != nil {
				logger.Log.Errorf("ack failed:", err)
			}
		case <-ctx.Done():
			logger.Log.Info("push worker stopping")
			return nil
		}
	}
}

// LogSink logs every command; stands in for the external delivery transport.
type LogSink struct{}

// Apply log the command
func (LogSink) Apply(ctx context.Context, cmd Command) error {
	logger.Log.Info("push command",
		zap.String("op", cmd.Op),
		zap.String("message_id", cmd.MessageID),
		zap.String("token", cmd.Token),
		zap.String("topic", cmd.Topic),
	)
	return nil
}
