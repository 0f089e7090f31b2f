package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
)

// Channel is the Redis pub/sub channel all instances share.
const Channel = "journeygen:events"

// RedisBus publishes to Redis; Run feeds messages from every instance into the local Hub.
type RedisBus struct {
	client *redis.Client
	hub    *Hub
	log    *logger.Logger
	once   sync.Once
}

func NewRedisBus(client *redis.Client, hub *Hub, log *logger.Logger) *RedisBus {
	return &RedisBus{client: client, hub: hub, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		b.log.Warn("failed to marshal event", "type", evt.Type, "error", err)
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := b.client.Publish(pubCtx, Channel, data).Err(); err != nil {
		b.log.Warn("failed to publish event", "type", evt.Type, "error", err)
	}
}

// Start launches the subscriber once per process.
func (b *RedisBus) Start(ctx context.Context) {
	b.once.Do(func() {
		go b.run(ctx)
	})
}

func (b *RedisBus) run(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := b.client.Subscribe(ctx, Channel)
			defer pubsub.Close()

			b.log.Info("event subscriber started", "channel", Channel)

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					b.log.Warn("redis subscriber error", "error", err)
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					b.log.Warn("failed to unmarshal event", "error", err)
					continue
				}
				b.hub.Broadcast(evt)
			}
		}()
	}
}
