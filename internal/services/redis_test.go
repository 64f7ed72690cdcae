package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/pkg/conversation"
)

func setupTestRedis(t *testing.T) (*RedisMemoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	logger := slog.Default()
	store := NewRedisMemoryStore(mr.Addr(), logger)
	require.NoError(t, store.Ping(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisMemoryStore_AddAndRead(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	store.AddMemory("alice", conversation.MemoryRecord{
		Type:       "dialogue",
		Content:    "I said: nice weather today",
		Importance: 0.25,
		Topic:      "weather",
		Source:     "bob",
	})
	store.AddMemory("alice", conversation.MemoryRecord{
		Type:       "conversation_end",
		Content:    "Talked with bob about weather",
		Importance: 0.5,
	})

	memories, err := store.Memories(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, memories, 2)

	// Newest first.
	assert.Equal(t, "conversation_end", memories[0].Type)
	assert.Equal(t, "dialogue", memories[1].Type)
	assert.Equal(t, "weather", memories[1].Topic)
	assert.InDelta(t, 0.25, memories[1].Importance, 0.001)
}

func TestRedisMemoryStore_TrimsToCap(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	for i := 0; i < memoryListCap+25; i++ {
		store.AddMemory("bob", conversation.MemoryRecord{
			Type:    "dialogue",
			Content: "line",
		})
	}

	n, err := store.Client().LLen(ctx, memoryKey("bob")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(memoryListCap), n)

	// Other actors are unaffected.
	assert.False(t, mr.Exists(memoryKey("carol")))
}

func TestRedisMemoryStore_PerActorIsolation(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	store.AddMemory("alice", conversation.MemoryRecord{Type: "dialogue", Content: "a"})
	store.AddMemory("bob", conversation.MemoryRecord{Type: "dialogue", Content: "b"})

	aliceMem, err := store.Memories(ctx, "alice", 10)
	require.NoError(t, err)
	bobMem, err := store.Memories(ctx, "bob", 10)
	require.NoError(t, err)

	require.Len(t, aliceMem, 1)
	require.Len(t, bobMem, 1)
	assert.Equal(t, "a", aliceMem[0].Content)
	assert.Equal(t, "b", bobMem[0].Content)
}

func TestRedisMemoryStore_EmptyActor(t *testing.T) {
	store, _ := setupTestRedis(t)

	memories, err := store.Memories(context.Background(), "nobody", 5)
	require.NoError(t, err)
	assert.Empty(t, memories)
}

func TestMultiSink_FanOut(t *testing.T) {
	store, _ := setupTestRedis(t)
	var local []conversation.MemoryRecord
	sink := MultiSink{
		store,
		sinkFunc(func(actorID string, m conversation.MemoryRecord) {
			local = append(local, m)
		}),
	}

	sink.AddMemory("alice", conversation.MemoryRecord{Type: "dialogue", Content: "hello"})

	require.Len(t, local, 1)
	memories, err := store.Memories(context.Background(), "alice", 5)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "hello", memories[0].Content)
}

type sinkFunc func(actorID string, m conversation.MemoryRecord)

func (f sinkFunc) AddMemory(actorID string, m conversation.MemoryRecord) { f(actorID, m) }
