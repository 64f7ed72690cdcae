package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/npc-engine/pkg/conversation"
)

// WorldEventsChannel carries inbound world events to the simulation.
const WorldEventsChannel = "world-events"

// WorldEvent is an external happening fed to the topic manager.
type WorldEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Broadcaster publishes conversation events to redis pub/sub so
// observers (consoles, other services) can follow the simulation,
// and relays inbound world events from the same transport.
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// HandleEvent implements the conversation observer contract. It must
// not block; publishing happens on a short timeout and failures are
// logged, never surfaced.
func (b *Broadcaster) HandleEvent(evt conversation.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	channel := "conversation-events"
	if evt.GroupID != uuid.Nil {
		channel = fmt.Sprintf("conversation-events:%s", evt.GroupID.String())
	}

	data, err := json.Marshal(evt)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", evt.Type)
		return
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", evt.Type,
		"group_id", evt.GroupID.String(),
	)
}

// PublishWorldEvent pushes a world event onto the shared channel.
func (b *Broadcaster) PublishWorldEvent(ctx context.Context, evt WorldEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal world event: %w", err)
	}
	if err := b.redisClient.Publish(ctx, WorldEventsChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish world event: %w", err)
	}
	return nil
}

// SubscribeWorldEvents delivers inbound world events to the handler
// until the context is cancelled. Runs on the caller's goroutine.
func (b *Broadcaster) SubscribeWorldEvents(ctx context.Context, handle func(WorldEvent)) error {
	sub := b.redisClient.Subscribe(ctx, WorldEventsChannel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var evt WorldEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.logger.Warn("Skipping unparseable world event", "error", err)
				continue
			}
			handle(evt)
		}
	}
}
