package services

import (
	"context"

	"github.com/jwebster45206/npc-engine/pkg/chat"
)

// LLMService defines the interface for the dialogue-generation
// backend. It satisfies the conversation controller's Generator
// contract; providers that cannot stream return an error from
// ChatStream and the controller falls back to Chat.
type LLMService interface {
	// InitModel initializes the LLM model on startup
	InitModel(ctx context.Context, modelName string) error

	// Chat generates a complete response in one call
	Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)

	// ChatStream generates a response as a channel of chunks
	ChatStream(ctx context.Context, messages []chat.ChatMessage) (<-chan chat.StreamChunk, error)
}
