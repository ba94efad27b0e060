package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "ekiden:event:"

// RedisRelay publishes messages through Redis so every replica's Hub sees
// them. Run must be started for messages to reach local viewers.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	logger *slog.Logger
}

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// NewRedisRelay wires a Redis client to the local hub.
func NewRedisRelay(client *redis.Client, hub *Hub, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{client: client, hub: hub, logger: logger.With("component", "broadcast.redis")}
}

func channelFor(eventID string) string {
	return channelPrefix + eventID
}

// Publish sends msg to the event's Redis channel. Failures are logged and
// otherwise ignored.
func (r *RedisRelay) Publish(ctx context.Context, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.ErrorContext(ctx, "encode broadcast message", "error", err)
		return
	}
	if err := r.client.Publish(ctx, channelFor(msg.EventID), payload).Err(); err != nil {
		r.logger.WarnContext(ctx, "redis publish failed", "event_id", msg.EventID, "error", err)
	}
}

// Run forwards every event channel message into the local hub until ctx
// is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "relay subscribed", "pattern", channelPrefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			r.deliver(ctx, m)
		}
	}
}

func (r *RedisRelay) deliver(ctx context.Context, m *redis.Message) {
	var msg Message
	if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
		r.logger.WarnContext(ctx, "discarding malformed broadcast", "channel", m.Channel, "error", err)
		return
	}
	if msg.EventID == "" {
		msg.EventID = strings.TrimPrefix(m.Channel, channelPrefix)
	}
	r.hub.Publish(ctx, msg)
}
