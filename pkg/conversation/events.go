package conversation

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a cross-component notification.
type EventType string

const (
	EventConversationStarted EventType = "conversation.started"
	EventConversationEnded   EventType = "conversation.ended"
	EventConversationsMerged EventType = "conversation.merged"
	EventParticipantJoined   EventType = "participant.joined"
	EventParticipantLeft     EventType = "participant.left"
	EventTopicChanged        EventType = "topic.changed"
	EventTopicSuggested      EventType = "topic.suggested"
	EventTopicDecayed        EventType = "topic.decayed"
	EventTopicRemoved        EventType = "topic.removed"
	EventTurnStarted         EventType = "turn.started"
	EventTurnEnded           EventType = "turn.ended"
	EventTurnTimeout         EventType = "turn.timeout"
	EventInterruptQueued     EventType = "interrupt.queued"
	EventInterruptGranted    EventType = "interrupt.granted"
	EventDialogueAdded       EventType = "dialogue.added"
	EventDialogueChunk       EventType = "dialogue.chunk"
	EventDialogueFailed      EventType = "dialogue.failed"
)

// Event is a typed notification emitted by the conversation subsystem.
// Data is an opaque pass-through payload; consumers should treat
// unknown keys as informational.
type Event struct {
	Type      EventType      `json:"type"`
	GroupID   uuid.UUID      `json:"group_id,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventFunc receives events from the subsystem. Handlers run on the
// emitting goroutine and must not block.
type EventFunc func(Event)

// emitter fans events out to registered observers. A nil emitter is
// safe to call.
type emitter struct {
	observers []EventFunc
	now       func() time.Time
}

func newEmitter(now func() time.Time) *emitter {
	return &emitter{now: now}
}

func (e *emitter) subscribe(fn EventFunc) {
	if fn != nil {
		e.observers = append(e.observers, fn)
	}
}

func (e *emitter) emit(evt Event) {
	if e == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now()
	}
	for _, fn := range e.observers {
		fn(evt)
	}
}
