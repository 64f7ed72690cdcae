package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/npc-engine/pkg/conversation"
)

const (
	// Most recent memories kept per actor in redis.
	memoryListCap = 200
)

// RedisMemoryStore persists conversation memory records per actor in
// capped redis lists. It implements the conversation subsystem's
// MemorySink contract and is typically paired with the in-process
// actor registry through a MultiSink.
type RedisMemoryStore struct {
	client *redis.Client
	logger *slog.Logger
}

var _ conversation.MemorySink = (*RedisMemoryStore)(nil)

func NewRedisMemoryStore(redisURL string, logger *slog.Logger) *RedisMemoryStore {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})
	return &RedisMemoryStore{
		client: rdb,
		logger: logger,
	}
}

func memoryKey(actor string) string {
	return fmt.Sprintf("npc-memory:%s", actor)
}

// AddMemory appends a record to the actor's memory list, trimming the
// oldest entries past the cap. Write failures are logged and absorbed;
// the sink contract has no error path.
func (r *RedisMemoryStore) AddMemory(actor string, mem conversation.MemoryRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(mem)
	if err != nil {
		r.logger.Error("Failed to marshal memory record", "error", err, "actor", actor)
		return
	}

	key := memoryKey(actor)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, memoryListCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to persist memory record", "error", err, "actor", actor)
	}
}

// Memories returns up to n most recent records for an actor.
func (r *RedisMemoryStore) Memories(ctx context.Context, actor string, n int) ([]conversation.MemoryRecord, error) {
	end := int64(n - 1)
	if n <= 0 {
		end = -1
	}
	raw, err := r.client.LRange(ctx, memoryKey(actor), 0, end).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read memories: %w", err)
	}

	out := make([]conversation.MemoryRecord, 0, len(raw))
	for _, item := range raw {
		var rec conversation.MemoryRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			r.logger.Warn("Skipping unparseable memory record", "actor", actor, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisMemoryStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisMemoryStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	return nil
}

func (r *RedisMemoryStore) Client() *redis.Client {
	return r.client
}

// WaitForConnection waits for redis to be available with retries.
func (r *RedisMemoryStore) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("redis not available after %d attempts", maxRetries)
}

// MultiSink fans memory records out to several sinks, e.g. the live
// actor registry plus the redis store.
type MultiSink []conversation.MemorySink

func (s MultiSink) AddMemory(actor string, mem conversation.MemoryRecord) {
	for _, sink := range s {
		sink.AddMemory(actor, mem)
	}
}
