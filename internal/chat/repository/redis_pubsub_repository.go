package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"campus_chat_service/internal/chat/domain"
	"campus_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// UserChannel the per-user channel for out-of-band delivery
func UserChannel(userID string) string {
	return "chat:user:" + userID
}

// RoomChannel the per-room fanout channel
func RoomChannel(roomID string) string {
	return "chat:room:" + roomID
}

// PubSub fans websocket responses out across gateway nodes.
type PubSub interface {
	Publish(channel string, resp domain.WSResponse) error
	Subscribe(ctx context.Context, channel string, handler func(resp domain.WSResponse)) error
}

// RedisPubSub definition redis pub/sub
type RedisPubSub struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{
		client: client,
		ctx:    context.Background(),
	}
}

// Publish serialize resp and publish it on channel
func (r *RedisPubSub) Publish(channel string, resp domain.WSResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return r.client.Publish(r.ctx, channel, data).Err()
}

// Subscribe listen on channel and hand each response to handler until ctx is
// cancelled.
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string, handler func(resp domain.WSResponse)) error {
	sub := r.client.Subscribe(r.ctx, channel)
	go func() {
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var resp domain.WSResponse
				if err := json.Unmarshal([]byte(m.Payload), &resp); err != nil {
					logger.Log.Error("pubsub payload err :", zap.String("err", fmt.Sprintf("failed to unmarshal response: %v", err)))
					continue
				}

				handler(resp)
			case <-ctx.Done():
				logger.Log.Info(fmt.Sprintf("%s , sub close", channel))
				sub.Close()
				return
			}
		}
	}()
	return nil
}
