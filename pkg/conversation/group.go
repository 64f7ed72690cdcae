package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation end reasons.
const (
	EndInsufficientParticipants = "insufficient_participants"
	EndDuoConversation          = "duo_conversation_ended"
	EndTimeLimit                = "time_limit_reached"
	EndSocialFatigue            = "social_fatigue"
	EndNatural                  = "natural_end"
	EndMerged                   = "merged"
	EndExternal                 = "external_request"
)

const (
	DefaultMaxParticipants = 4
	DefaultDialogueCap     = 100
	groupMemoryCap         = 50

	// A two-person conversation stuck on one topic this long winds down.
	duoTopicLimit = 300 * time.Second
	// No conversation outlives this.
	conversationTimeLimit = 1800 * time.Second

	duoMoodFloor     = -0.3
	naturalMoodFloor = -0.8
	fatigueCeiling   = 0.8
)

// Mood is the group's aggregate emotional state.
type Mood struct {
	Valence float64 `json:"valence"` // -1..1
	Arousal float64 `json:"arousal"` // 0..1
}

// TopicRecord archives a topic the group has moved past.
type TopicRecord struct {
	Topic        string        `json:"topic"`
	Duration     time.Duration `json:"duration"`
	Participants []string      `json:"participants"`
	Reason       string        `json:"reason"`
	TurnIndex    int           `json:"turn_index"`
}

// DialogueEntry is one line of conversation.
type DialogueEntry struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Source    string    `json:"source"` // e.g. "llm", "scripted"
	Topic     string    `json:"topic"`
	TurnIndex int       `json:"turn_index"`
	Timestamp time.Time `json:"timestamp"`
}

// GroupMemory is a derived entry in the group's own memory log,
// folded into the group mood as it is added.
type GroupMemory struct {
	Kind      string    `json:"kind"` // "mood_shift", "relationship_effect", "summary"
	Content   string    `json:"content"`
	Valence   float64   `json:"valence"`
	Arousal   float64   `json:"arousal"`
	Timestamp time.Time `json:"timestamp"`
}

// ParticipantData is per-participant bookkeeping local to one group.
type ParticipantData struct {
	JoinedAt time.Time      `json:"joined_at"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Group is the state machine for a single conversation: participants,
// topic, dialogue history, derived memory, and mood. Groups are
// created and driven by the Controller; once ended they are terminal.
type Group struct {
	ID uuid.UUID

	participants    []string
	participantData map[string]ParticipantData
	maxParticipants int

	currentTopic string
	topicStarted time.Time
	topicHistory []TopicRecord

	dialogue    []DialogueEntry
	dialogueCap int
	turnIndex   int
	lastSpeaker string

	memory []GroupMemory
	mood   Mood

	active       bool
	started      time.Time
	lastActivity time.Time
	endReason    string

	floor  *FloorManager
	now    func() time.Time
	events *emitter
}

// NewGroup creates an empty, active group with its own FloorManager.
func NewGroup(topic string) *Group {
	g := &Group{
		ID:              uuid.New(),
		participantData: make(map[string]ParticipantData),
		maxParticipants: DefaultMaxParticipants,
		currentTopic:    topic,
		dialogueCap:     DefaultDialogueCap,
		active:          true,
		now:             time.Now,
	}
	g.events = newEmitter(func() time.Time { return g.now() })
	g.started = g.now()
	g.topicStarted = g.started
	g.lastActivity = g.started
	g.floor = newFloorManager(g)
	return g
}

// Subscribe registers an observer for this group's events.
func (g *Group) Subscribe(fn EventFunc) {
	g.events.subscribe(fn)
}

// Floor returns the group's turn-taking state machine.
func (g *Group) Floor() *FloorManager {
	return g.floor
}

// IsActive reports whether the group is still live.
func (g *Group) IsActive() bool {
	return g.active
}

// EndReason returns the recorded end reason, empty while active.
func (g *Group) EndReason() string {
	return g.endReason
}

// Participants returns a copy of the ordered participant list.
func (g *Group) Participants() []string {
	out := make([]string, len(g.participants))
	copy(out, g.participants)
	return out
}

// HasParticipant reports membership.
func (g *Group) HasParticipant(actor string) bool {
	for _, p := range g.participants {
		if p == actor {
			return true
		}
	}
	return false
}

// Size returns the participant count.
func (g *Group) Size() int {
	return len(g.participants)
}

// CurrentTopic returns the topic under discussion.
func (g *Group) CurrentTopic() string {
	return g.currentTopic
}

// TopicElapsed is how long the current topic has been held.
func (g *Group) TopicElapsed() time.Duration {
	return g.now().Sub(g.topicStarted)
}

// Age is the total conversation duration so far.
func (g *Group) Age() time.Duration {
	return g.now().Sub(g.started)
}

// Mood returns the group's aggregate mood.
func (g *Group) Mood() Mood {
	return g.mood
}

// LastSpeaker returns the most recent dialogue speaker.
func (g *Group) LastSpeaker() string {
	return g.lastSpeaker
}

// AddParticipant admits an actor. It fails when the group is inactive
// or at capacity, or when the actor is already a participant. The
// caller is responsible for the one-conversation-per-actor invariant;
// the group re-validates size and duplicates regardless.
func (g *Group) AddParticipant(actor string, extra map[string]any) bool {
	if !g.active || actor == "" {
		return false
	}
	if len(g.participants) >= g.maxParticipants {
		return false
	}
	if g.HasParticipant(actor) {
		return false
	}

	g.participants = append(g.participants, actor)
	g.participantData[actor] = ParticipantData{JoinedAt: g.now(), Extra: extra}
	g.lastActivity = g.now()
	g.floor.HandleParticipantAdded()
	g.events.emit(Event{Type: EventParticipantJoined, GroupID: g.ID, Actor: actor})
	return true
}

// RemoveParticipant drops an actor from the group, cleaning up floor
// state, then evaluates viability: a group left with fewer than two
// participants ends itself. Fails on an ended group, like AddParticipant.
func (g *Group) RemoveParticipant(actor, reason string) bool {
	if !g.active || !g.HasParticipant(actor) {
		return false
	}

	for i, p := range g.participants {
		if p == actor {
			g.participants = append(g.participants[:i], g.participants[i+1:]...)
			break
		}
	}
	delete(g.participantData, actor)
	g.floor.HandleParticipantRemoved(actor)
	g.lastActivity = g.now()
	g.events.emit(Event{
		Type:    EventParticipantLeft,
		GroupID: g.ID,
		Actor:   actor,
		Data:    map[string]any{"reason": reason},
	})

	if g.active && len(g.participants) < 2 {
		g.End(EndInsufficientParticipants)
	}
	return true
}

// ChangeTopic archives the current topic and moves to a new one.
// Returns false when the topic is unchanged.
func (g *Group) ChangeTopic(topic, reason string) bool {
	if !g.active || topic == g.currentTopic {
		return false
	}

	if g.currentTopic != "" {
		g.topicHistory = append(g.topicHistory, TopicRecord{
			Topic:        g.currentTopic,
			Duration:     g.TopicElapsed(),
			Participants: g.Participants(),
			Reason:       reason,
			TurnIndex:    g.turnIndex,
		})
	}
	old := g.currentTopic
	g.currentTopic = topic
	g.topicStarted = g.now()
	g.lastActivity = g.now()
	g.events.emit(Event{
		Type:    EventTopicChanged,
		GroupID: g.ID,
		Data:    map[string]any{"from": old, "to": topic, "reason": reason},
	})
	return true
}

// TopicHistory returns a copy of the archived topics.
func (g *Group) TopicHistory() []TopicRecord {
	out := make([]TopicRecord, len(g.topicHistory))
	copy(out, g.topicHistory)
	return out
}

// AddDialogue appends a line to the capped dialogue history, derives
// a group memory entry from lightweight keyword heuristics, and folds
// it into the group mood.
func (g *Group) AddDialogue(speaker, text, source string) {
	if !g.active {
		return
	}
	g.turnIndex++
	entry := DialogueEntry{
		Speaker:   speaker,
		Text:      text,
		Source:    source,
		Topic:     g.currentTopic,
		TurnIndex: g.turnIndex,
		Timestamp: g.now(),
	}
	g.dialogue = append(g.dialogue, entry)
	if len(g.dialogue) > g.dialogueCap {
		g.dialogue = g.dialogue[len(g.dialogue)-g.dialogueCap:]
	}
	g.lastSpeaker = speaker
	g.lastActivity = g.now()

	g.addMemory(deriveDialogueMemory(speaker, text))
	g.events.emit(Event{
		Type:    EventDialogueAdded,
		GroupID: g.ID,
		Actor:   speaker,
		Data:    map[string]any{"text": text, "source": source, "topic": g.currentTopic},
	})
}

// Dialogue returns a copy of the dialogue history.
func (g *Group) Dialogue() []DialogueEntry {
	out := make([]DialogueEntry, len(g.dialogue))
	copy(out, g.dialogue)
	return out
}

// RecentDialogue returns up to n latest lines, oldest first.
func (g *Group) RecentDialogue(n int) []DialogueEntry {
	d := g.dialogue
	if n > 0 && len(d) > n {
		d = d[len(d)-n:]
	}
	out := make([]DialogueEntry, len(d))
	copy(out, d)
	return out
}

// addMemory appends to the capped group memory log and updates the
// mood incrementally rather than recomputing from scratch.
func (g *Group) addMemory(m GroupMemory) {
	m.Timestamp = g.now()
	g.memory = append(g.memory, m)
	if len(g.memory) > groupMemoryCap {
		g.memory = g.memory[len(g.memory)-groupMemoryCap:]
	}
	g.mood.Valence = clampValence(g.mood.Valence*0.8 + m.Valence*0.2)
	g.mood.Arousal = clamp01f(g.mood.Arousal*0.8 + m.Arousal*0.2)
}

// deriveDialogueMemory estimates a line's emotional effect from
// keyword heuristics. This is intentionally shallow; real sentiment
// comes back through the LLM pipeline as summaries.
func deriveDialogueMemory(speaker, text string) GroupMemory {
	lower := strings.ToLower(text)
	m := GroupMemory{Kind: "mood_shift", Content: fmt.Sprintf("%s spoke", speaker), Arousal: 0.3}

	switch {
	case strings.Contains(lower, "thank"):
		m.Kind = "relationship_effect"
		m.Content = fmt.Sprintf("%s expressed gratitude", speaker)
		m.Valence = 0.4
	case strings.Contains(lower, "sorry"):
		m.Kind = "relationship_effect"
		m.Content = fmt.Sprintf("%s apologized", speaker)
		m.Valence = 0.2
	case strings.Contains(lower, "disagree"):
		m.Kind = "relationship_effect"
		m.Content = fmt.Sprintf("%s disagreed", speaker)
		m.Valence = -0.3
		m.Arousal = 0.5
	case strings.Contains(lower, "agree"):
		m.Kind = "relationship_effect"
		m.Content = fmt.Sprintf("%s agreed", speaker)
		m.Valence = 0.3
	case strings.Contains(lower, "!"):
		m.Valence = 0.1
		m.Arousal = 0.6
	}
	return m
}

// Viability evaluates the natural-end policy. It returns false with a
// reason when the group should end. Fatigue values are externally
// supplied per actor; a nil lookup skips the fatigue rule.
func (g *Group) Viability(fatigueOf func(string) float64) (bool, string) {
	if !g.active {
		return false, g.endReason
	}
	if len(g.participants) < 2 {
		return false, EndInsufficientParticipants
	}
	if len(g.participants) == 2 {
		if g.TopicElapsed() > duoTopicLimit || g.mood.Valence < duoMoodFloor {
			return false, EndDuoConversation
		}
	}
	if g.Age() > conversationTimeLimit {
		return false, EndTimeLimit
	}
	if fatigueOf != nil {
		allTired := true
		for _, p := range g.participants {
			if fatigueOf(p) <= fatigueCeiling {
				allTired = false
				break
			}
		}
		if allTired {
			return false, EndSocialFatigue
		}
	}
	return true, ""
}

// ShouldContinue is the group's own check the controller applies each
// tick, separate from the membership-driven viability rules.
func (g *Group) ShouldContinue() bool {
	if !g.active {
		return false
	}
	if g.Age() > conversationTimeLimit {
		return false
	}
	if g.mood.Valence < naturalMoodFloor {
		return false
	}
	return len(g.participants) >= 2
}

// End terminates the group. Idempotent: a second call is a no-op.
// Produces a textual summary, records it in the group memory, and
// notifies observers. The group cannot be reused afterwards.
func (g *Group) End(reason string) {
	if !g.active {
		return
	}
	g.active = false
	g.endReason = reason
	g.floor.EndTurn(TurnEndConversationEnd)

	summary := g.Summary()
	g.memory = append(g.memory, GroupMemory{
		Kind:      "summary",
		Content:   summary,
		Valence:   g.mood.Valence,
		Arousal:   g.mood.Arousal,
		Timestamp: g.now(),
	})

	g.events.emit(Event{
		Type:    EventConversationEnded,
		GroupID: g.ID,
		Data: map[string]any{
			"reason":       reason,
			"summary":      summary,
			"participants": g.Participants(),
			"duration_s":   g.Age().Seconds(),
		},
	})
}

// Summary renders a short human-readable account of the conversation.
func (g *Group) Summary() string {
	topics := make([]string, 0, len(g.topicHistory)+1)
	for _, tr := range g.topicHistory {
		topics = append(topics, tr.Topic)
	}
	if g.currentTopic != "" {
		topics = append(topics, g.currentTopic)
	}
	return fmt.Sprintf("%d participants talked about %s over %d lines (%.0fs)",
		len(g.participants), strings.Join(topics, ", "), len(g.dialogue), g.Age().Seconds())
}

func clampValence(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp01f(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
