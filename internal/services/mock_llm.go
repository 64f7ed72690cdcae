package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/jwebster45206/npc-engine/pkg/chat"
)

// MockLLM is a mock implementation of LLMService for testing and for
// running the simulation without a model. Behavior is overridable per
// call via the func fields; all calls are tracked.
type MockLLM struct {
	InitModelFunc  func(ctx context.Context, modelName string) error
	ChatFunc       func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)
	ChatStreamFunc func(ctx context.Context, messages []chat.ChatMessage) (<-chan chat.StreamChunk, error)

	InitModelCalls  []string
	ChatCalls       [][]chat.ChatMessage
	ChatStreamCalls [][]chat.ChatMessage

	lineIndex int
	mu        sync.Mutex // protects all fields above
}

// Canned lines cycled through by the default Chat behavior, so a
// mock-backed simulation produces varied-looking dialogue.
var mockLines = []string{
	"Lovely day, don't you think?",
	"I heard the strangest thing this morning.",
	"Can't complain. Well, I could, but I won't.",
	"That reminds me of something my grandmother used to say.",
	"Have you been down to the market lately?",
	"I agree, more or less.",
}

func NewMockLLM() *MockLLM {
	return &MockLLM{
		InitModelCalls:  make([]string, 0),
		ChatCalls:       make([][]chat.ChatMessage, 0),
		ChatStreamCalls: make([][]chat.ChatMessage, 0),
	}
}

func (m *MockLLM) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitModelCalls = append(m.InitModelCalls, modelName)
	if m.InitModelFunc != nil {
		return m.InitModelFunc(ctx, modelName)
	}
	return nil
}

func (m *MockLLM) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ChatCalls = append(m.ChatCalls, messages)
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, messages)
	}

	line := mockLines[m.lineIndex%len(mockLines)]
	m.lineIndex++
	return &chat.ChatResponse{Message: line, Model: "mock"}, nil
}

func (m *MockLLM) ChatStream(ctx context.Context, messages []chat.ChatMessage) (<-chan chat.StreamChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ChatStreamCalls = append(m.ChatStreamCalls, messages)
	if m.ChatStreamFunc != nil {
		return m.ChatStreamFunc(ctx, messages)
	}
	return nil, fmt.Errorf("streaming not enabled on mock")
}

// SetChatError sets up the mock to fail every Chat call.
func (m *MockLLM) SetChatError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
		return nil, err
	}
}

// SetChatResponse sets up the mock to return a fixed line.
func (m *MockLLM) SetChatResponse(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
		return &chat.ChatResponse{Message: text, Model: "mock"}, nil
	}
}

// SetStreamChunks sets up the mock to stream the given fragments.
func (m *MockLLM) SetStreamChunks(chunks ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatStreamFunc = func(ctx context.Context, messages []chat.ChatMessage) (<-chan chat.StreamChunk, error) {
		out := make(chan chat.StreamChunk, len(chunks)+1)
		for _, c := range chunks {
			out <- chat.StreamChunk{Content: c}
		}
		out <- chat.StreamChunk{Done: true}
		close(out)
		return out, nil
	}
}

// Reset clears all call tracking.
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelCalls = make([]string, 0)
	m.ChatCalls = make([][]chat.ChatMessage, 0)
	m.ChatStreamCalls = make([][]chat.ChatMessage, 0)
	m.lineIndex = 0
}

// Calls returns a snapshot of call counts in a thread-safe way.
func (m *MockLLM) Calls() (initCalls, chatCalls, streamCalls int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.InitModelCalls), len(m.ChatCalls), len(m.ChatStreamCalls)
}
