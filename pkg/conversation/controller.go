package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/npc-engine/pkg/chat"
)

// Precondition failures. These are returned as errors, never panics,
// and leave no state mutated.
var (
	ErrInsufficientActors = errors.New("not enough available actors")
	ErrTooManyGroups      = errors.New("active group limit reached")
	ErrGroupFull          = errors.New("group participant limit reached")
	ErrActorBusy          = errors.New("actor is already in a conversation")
	ErrGroupNotFound      = errors.New("conversation group not found")
	ErrNotParticipant     = errors.New("actor is not a participant")
)

const (
	DefaultMaxActiveGroups = 5
	DefaultTurnCooldown    = 30 * time.Second
	DefaultRequestTimeout  = 30 * time.Second

	// A group stuck on one topic this long gets a fresh suggestion.
	topicRotateAfter = 120 * time.Second
)

// TopicSource supplies replacement topics for conversations that have
// gone stale. Satisfied by TopicManager.
type TopicSource interface {
	SuggestForGroup(currentTopic string, groupSize int) []TopicSuggestion
	MarkUsed(topic string)
}

// ControllerConfig wires the controller's collaborators. Zero-valued
// tuning fields fall back to defaults.
type ControllerConfig struct {
	Generator Generator
	Profiles  ProfileSource
	Directory Directory
	Sink      MemorySink
	Topics    TopicSource
	Logger    *slog.Logger

	MaxActiveGroups int
	MaxParticipants int
	TurnCooldown    time.Duration
	RequestTimeout  time.Duration
}

type streamState struct {
	Speaker   string
	RequestID uuid.UUID
	Chunks    []string
}

type pendingRequest struct {
	Speaker  string
	GroupID  uuid.UUID
	IssuedAt time.Time
}

// Controller orchestrates every active conversation: group lifecycle,
// the global participant index (at most one group per actor), per-tick
// turn scheduling, and the asynchronous dialogue pipeline. All state
// is guarded by one mutex; generation callbacks re-enter through it on
// arbitrary goroutines.
type Controller struct {
	mu sync.Mutex

	groups         map[uuid.UUID]*Group
	participantIdx map[string]uuid.UUID
	cooldowns      map[uuid.UUID]time.Time
	streaming      map[uuid.UUID]*streamState
	pending        map[uuid.UUID]*pendingRequest

	gen       Generator
	packer    *ContextPacker
	dir       Directory
	sink      MemorySink
	topics    TopicSource
	log       *slog.Logger
	eventHint func(topic string) string

	maxGroups       int
	maxParticipants int
	turnCooldown    time.Duration
	requestTimeout  time.Duration

	now    func() time.Time
	events *emitter
}

func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		groups:          make(map[uuid.UUID]*Group),
		participantIdx:  make(map[string]uuid.UUID),
		cooldowns:       make(map[uuid.UUID]time.Time),
		streaming:       make(map[uuid.UUID]*streamState),
		pending:         make(map[uuid.UUID]*pendingRequest),
		gen:             cfg.Generator,
		dir:             cfg.Directory,
		sink:            cfg.Sink,
		topics:          cfg.Topics,
		log:             cfg.Logger,
		maxGroups:       cfg.MaxActiveGroups,
		maxParticipants: cfg.MaxParticipants,
		turnCooldown:    cfg.TurnCooldown,
		requestTimeout:  cfg.RequestTimeout,
		now:             time.Now,
	}
	if cfg.Profiles != nil {
		c.packer = NewContextPacker(cfg.Profiles)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.maxGroups <= 0 {
		c.maxGroups = DefaultMaxActiveGroups
	}
	if c.maxParticipants <= 0 {
		c.maxParticipants = DefaultMaxParticipants
	}
	if c.turnCooldown <= 0 {
		c.turnCooldown = DefaultTurnCooldown
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = DefaultRequestTimeout
	}
	c.events = newEmitter(func() time.Time { return c.now() })
	return c
}

// Subscribe registers an observer for all conversation events,
// including those of every group. Handlers run on the controller's
// goroutines and must not call back into the controller.
func (c *Controller) Subscribe(fn EventFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events.subscribe(fn)
}

// SetEventHint installs a callback supplying a world-event hint for
// prompt assembly, keyed by the group's current topic.
func (c *Controller) SetEventHint(fn func(topic string) string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventHint = fn
}

// GroupOf returns the group an actor currently belongs to.
func (c *Controller) GroupOf(actor string) (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.participantIdx[actor]
	return id, ok
}

// group returns an active group by ID. Groups are only safe to touch
// under c.mu; external readers go through Snapshot instead.
func (c *Controller) group(id uuid.UUID) (*Group, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.groups[id]
	return g, ok
}

// GroupSnapshot is a copy of a group's observable state, taken under
// the controller lock and safe to read from any goroutine.
type GroupSnapshot struct {
	ID             uuid.UUID
	Participants   []string
	Topic          string
	CurrentSpeaker string
	Mood           Mood
	Age            time.Duration
	TopicElapsed   time.Duration
	Dialogue       []DialogueEntry
}

// Snapshot copies one active group's state. dialogueLimit bounds the
// copied transcript; zero omits it entirely.
func (c *Controller) Snapshot(id uuid.UUID, dialogueLimit int) (GroupSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.groups[id]
	if !ok {
		return GroupSnapshot{}, false
	}
	return snapshotLocked(g, dialogueLimit), true
}

// Snapshots copies the state of every active group, without dialogue.
func (c *Controller) Snapshots() []GroupSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]GroupSnapshot, 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, snapshotLocked(g, 0))
	}
	return out
}

func snapshotLocked(g *Group, dialogueLimit int) GroupSnapshot {
	s := GroupSnapshot{
		ID:             g.ID,
		Participants:   g.Participants(),
		Topic:          g.CurrentTopic(),
		CurrentSpeaker: g.Floor().CurrentSpeaker(),
		Mood:           g.Mood(),
		Age:            g.Age(),
		TopicElapsed:   g.TopicElapsed(),
	}
	if dialogueLimit > 0 {
		s.Dialogue = g.RecentDialogue(dialogueLimit)
	}
	return s
}

// StartConversation creates a group for the given actors and topic.
// Actors already in a conversation, and actors who decline the invite
// (too fatigued or too withdrawn), are filtered out; at least two must
// remain. On any failure no state is left behind.
func (c *Controller) StartConversation(actors []string, topic string) (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(actors) > c.maxParticipants {
		return uuid.Nil, fmt.Errorf("requested %d participants: %w", len(actors), ErrGroupFull)
	}

	available := make([]string, 0, len(actors))
	for _, a := range actors {
		if _, busy := c.participantIdx[a]; busy {
			continue
		}
		if !c.wouldAccept(a) {
			continue
		}
		available = append(available, a)
	}
	if len(available) < 2 {
		return uuid.Nil, ErrInsufficientActors
	}

	g, err := c.createGroupLocked(available, topic)
	if err != nil {
		return uuid.Nil, err
	}
	c.log.Info("Conversation started",
		"group_id", g.ID.String(),
		"participants", available,
		"topic", topic)
	return g.ID, nil
}

// wouldAccept decides auto-accept/decline from the actor query
// surface. Without a directory everyone accepts.
func (c *Controller) wouldAccept(actor string) bool {
	if c.dir == nil {
		return true
	}
	if c.dir.SocialFatigue(actor) > fatigueCeiling {
		return false
	}
	if c.dir.SocialDrive(actor) < 0.05 && c.dir.Extroversion(actor) < 0.3 {
		return false
	}
	return true
}

// createGroupLocked allocates a group, indexes its participants, and
// registers it. Rolls back completely on failure.
func (c *Controller) createGroupLocked(actors []string, topic string) (*Group, error) {
	if len(c.groups) >= c.maxGroups {
		return nil, ErrTooManyGroups
	}

	g := NewGroup(topic)
	g.now = func() time.Time { return c.now() }
	g.started = g.now()
	g.topicStarted = g.started
	g.lastActivity = g.started
	g.maxParticipants = c.maxParticipants
	g.Subscribe(c.events.emit)

	added := make([]string, 0, len(actors))
	for _, a := range actors {
		if !g.AddParticipant(a, nil) {
			for _, undo := range added {
				delete(c.participantIdx, undo)
			}
			return nil, fmt.Errorf("adding %q: %w", a, ErrActorBusy)
		}
		c.participantIdx[a] = g.ID
		added = append(added, a)
	}

	c.groups[g.ID] = g
	c.cooldowns[g.ID] = time.Time{} // eligible for a turn immediately
	c.events.emit(Event{
		Type:    EventConversationStarted,
		GroupID: g.ID,
		Data:    map[string]any{"participants": g.Participants(), "topic": topic},
	})
	return g, nil
}

// AddParticipant admits an actor into an existing group, maintaining
// the one-conversation-per-actor invariant atomically with the
// group's own membership update.
func (c *Controller) AddParticipant(groupID uuid.UUID, actor string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.groups[groupID]
	if !ok {
		return ErrGroupNotFound
	}
	if _, busy := c.participantIdx[actor]; busy {
		return ErrActorBusy
	}
	if !g.AddParticipant(actor, nil) {
		return ErrGroupFull
	}
	c.participantIdx[actor] = groupID
	return nil
}

// RemoveParticipant drops an actor from a group and clears their
// index entry. A group left below two participants ends itself.
func (c *Controller) RemoveParticipant(groupID uuid.UUID, actor, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.groups[groupID]
	if !ok {
		return ErrGroupNotFound
	}
	if !g.RemoveParticipant(actor, reason) {
		return ErrNotParticipant
	}
	delete(c.participantIdx, actor)

	// The group may have ended itself when the removal left it below
	// two participants; finish that end like any other.
	if !g.IsActive() {
		c.recordEndMemoriesLocked(g, g.EndReason())
		c.cleanupEndedLocked(g)
		c.log.Info("Conversation ended",
			"group_id", g.ID.String(),
			"reason", g.EndReason(),
			"duration_s", g.Age().Seconds())
	}
	return nil
}

// MergeGroups ends both source groups and starts a brand-new group
// with the union of their participants. Fails without touching either
// source when the union exceeds the participant limit.
func (c *Controller) MergeGroups(aID, bID uuid.UUID) (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ga, ok := c.groups[aID]
	if !ok {
		return uuid.Nil, ErrGroupNotFound
	}
	gb, ok := c.groups[bID]
	if !ok || aID == bID {
		return uuid.Nil, ErrGroupNotFound
	}

	union := ga.Participants()
	for _, p := range gb.Participants() {
		if !ga.HasParticipant(p) {
			union = append(union, p)
		}
	}
	if len(union) > c.maxParticipants {
		return uuid.Nil, fmt.Errorf("merged size %d: %w", len(union), ErrGroupFull)
	}

	// The larger source's topic carries over.
	topic := ga.CurrentTopic()
	if gb.Size() > ga.Size() {
		topic = gb.CurrentTopic()
	}

	c.endGroupLocked(ga, EndMerged)
	c.endGroupLocked(gb, EndMerged)

	g, err := c.createGroupLocked(union, topic)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating merged group: %w", err)
	}
	c.events.emit(Event{
		Type:    EventConversationsMerged,
		GroupID: g.ID,
		Data:    map[string]any{"sources": []string{aID.String(), bID.String()}},
	})
	c.log.Info("Conversations merged",
		"group_id", g.ID.String(),
		"source_a", aID.String(),
		"source_b", bID.String(),
		"participants", union)
	return g.ID, nil
}

// EndConversation force-ends a group. Outstanding dialogue requests
// become orphaned; their callbacks will find no group and do nothing.
func (c *Controller) EndConversation(groupID uuid.UUID, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.groups[groupID]
	if !ok {
		return ErrGroupNotFound
	}
	c.endGroupLocked(g, reason)
	return nil
}

// endGroupLocked terminates a group, records a final memory for every
// participant, and removes all controller state for it.
func (c *Controller) endGroupLocked(g *Group, reason string) {
	g.End(reason)
	c.recordEndMemoriesLocked(g, reason)
	c.cleanupEndedLocked(g)
	c.log.Info("Conversation ended",
		"group_id", g.ID.String(),
		"reason", reason,
		"duration_s", g.Age().Seconds())
}

// recordEndMemoriesLocked gives every remaining participant a final
// memory of the conversation.
func (c *Controller) recordEndMemoriesLocked(g *Group, reason string) {
	if c.sink == nil {
		return
	}
	summary := g.Summary()
	for _, p := range g.Participants() {
		c.sink.AddMemory(p, MemoryRecord{
			Type:       "conversation_end",
			Content:    summary,
			Importance: 0.5,
			GroupID:    g.ID,
			Topic:      g.CurrentTopic(),
			Source:     reason,
		})
	}
}

// cleanupEndedLocked clears index and scheduling state for a group
// that is already terminal.
func (c *Controller) cleanupEndedLocked(g *Group) {
	for actor, id := range c.participantIdx {
		if id == g.ID {
			delete(c.participantIdx, actor)
		}
	}
	delete(c.groups, g.ID)
	delete(c.cooldowns, g.ID)
	delete(c.streaming, g.ID)
}

// Tick drives one scheduling pass over all active groups: viability
// checks, turn timeouts and interrupts, and dialogue issuance once a
// group's cooldown has elapsed. A group with a generation in flight
// is never ended here; streaming completion takes precedence.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, g := range c.groups {
		_, inFlight := c.streaming[id]

		if !inFlight {
			if ok, reason := c.groupViableLocked(g); !ok {
				c.endGroupLocked(g, reason)
				continue
			}
			if c.topics != nil && g.TopicElapsed() >= topicRotateAfter {
				c.rotateTopicLocked(g)
			}
		}

		if interrupter := g.Floor().Tick(); interrupter != "" && !inFlight {
			c.requestDialogueLocked(g, interrupter)
			c.cooldowns[id] = c.now()
			continue
		}

		if inFlight {
			continue
		}
		if c.now().Sub(c.cooldowns[id]) < c.turnCooldown {
			continue
		}

		speaker := g.Floor().CurrentSpeaker()
		if speaker == "" {
			speaker = g.Floor().NextSpeaker()
			if speaker == "" {
				continue
			}
			if !g.Floor().StartTurn(speaker) {
				continue
			}
		}
		c.requestDialogueLocked(g, speaker)
		c.cooldowns[id] = c.now()
	}
}

// rotateTopicLocked moves a stale group onto the best suggestion the
// topic source has for it. No suggestion, no change.
func (c *Controller) rotateTopicLocked(g *Group) {
	for _, s := range c.topics.SuggestForGroup(g.CurrentTopic(), g.Size()) {
		if s.Topic == g.CurrentTopic() {
			continue
		}
		if g.ChangeTopic(s.Topic, "topic_drift") {
			c.topics.MarkUsed(s.Topic)
			c.log.Debug("Topic rotated",
				"group_id", g.ID.String(),
				"topic", s.Topic)
		}
		return
	}
}

func (c *Controller) groupViableLocked(g *Group) (bool, string) {
	var fatigueOf func(string) float64
	if c.dir != nil {
		fatigueOf = c.dir.SocialFatigue
	}
	if ok, reason := g.Viability(fatigueOf); !ok {
		return false, reason
	}
	if !g.ShouldContinue() {
		return false, EndNatural
	}
	return true, ""
}

// requestDialogueLocked issues an asynchronous generation request for
// a speaker. The goroutine reports back through handleChunk and
// handleCompletion keyed by request id; by the time it does, the
// group may be long gone.
func (c *Controller) requestDialogueLocked(g *Group, speaker string) {
	if c.gen == nil || c.packer == nil {
		return
	}

	var hint string
	if c.eventHint != nil {
		hint = c.eventHint(g.CurrentTopic())
	}
	nc := c.packer.BuildContext(speaker, g, hint)
	messages := c.packer.BuildMessages(nc)

	requestID := uuid.New()
	c.pending[requestID] = &pendingRequest{
		Speaker:  speaker,
		GroupID:  g.ID,
		IssuedAt: c.now(),
	}
	c.streaming[g.ID] = &streamState{Speaker: speaker, RequestID: requestID}

	c.log.Debug("Dialogue requested",
		"request_id", requestID.String(),
		"group_id", g.ID.String(),
		"speaker", speaker)

	go c.generate(requestID, messages)
}

// generate runs outside the lock and may outlive the group.
func (c *Controller) generate(requestID uuid.UUID, messages []chat.ChatMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
	defer cancel()

	stream, err := c.gen.ChatStream(ctx, messages)
	if err == nil && stream != nil {
		var full string
		for chunk := range stream {
			if chunk.Error != nil {
				c.handleCompletion(requestID, "", chunk.Error)
				return
			}
			if chunk.Content != "" {
				full += chunk.Content
				c.handleChunk(requestID, chunk.Content)
			}
			if chunk.Done {
				break
			}
		}
		c.handleCompletion(requestID, full, nil)
		return
	}

	// Provider does not stream; fall back to a single completion.
	resp, err := c.gen.Chat(ctx, messages)
	if err != nil {
		c.handleCompletion(requestID, "", err)
		return
	}
	c.handleCompletion(requestID, resp.Message, nil)
}

// handleChunk forwards a streamed fragment to observers. Chunks for
// unknown or superseded requests are discarded without effect.
func (c *Controller) handleChunk(requestID uuid.UUID, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[requestID]
	if !ok {
		return
	}
	st, ok := c.streaming[p.GroupID]
	if !ok || st.RequestID != requestID {
		return
	}
	st.Chunks = append(st.Chunks, content)
	c.events.emit(Event{
		Type:    EventDialogueChunk,
		GroupID: p.GroupID,
		Actor:   p.Speaker,
		Data:    map[string]any{"content": content},
	})
}

// handleCompletion finishes a generation request: on success the text
// becomes dialogue with memory side effects; on failure nothing is
// recorded. Either way all request state is cleared exactly once, and
// a completion whose group has since ended is a no-op.
func (c *Controller) handleCompletion(requestID uuid.UUID, text string, genErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[requestID]
	if !ok {
		return
	}
	delete(c.pending, requestID)
	if st, ok := c.streaming[p.GroupID]; ok && st.RequestID == requestID {
		delete(c.streaming, p.GroupID)
	}

	g, ok := c.groups[p.GroupID]
	if !ok {
		// Orphaned: the group ended while the request was in flight.
		c.log.Debug("Discarding orphaned dialogue completion",
			"request_id", requestID.String(),
			"group_id", p.GroupID.String())
		return
	}

	if genErr != nil || text == "" {
		if genErr == nil {
			genErr = errors.New("empty generation")
		}
		c.log.Warn("Dialogue generation failed",
			"error", genErr,
			"request_id", requestID.String(),
			"group_id", p.GroupID.String(),
			"speaker", p.Speaker)
		c.events.emit(Event{
			Type:    EventDialogueFailed,
			GroupID: p.GroupID,
			Actor:   p.Speaker,
			Data:    map[string]any{"error": genErr.Error()},
		})
		return
	}

	g.AddDialogue(p.Speaker, text, "llm")
	if g.Floor().CurrentSpeaker() == p.Speaker {
		// Natural end: the floor passes straight to the next speaker
		// in the round-robin order, who talks after the cooldown.
		g.Floor().EndTurn(TurnEndNatural)
	}
	c.recordDialogueMemoriesLocked(g, p.Speaker, text)

	c.log.Debug("Dialogue completed",
		"request_id", requestID.String(),
		"group_id", p.GroupID.String(),
		"speaker", p.Speaker,
		"chars", len(text))
}

// recordDialogueMemoriesLocked records the line for the speaker and
// every listener through the external memory sink.
func (c *Controller) recordDialogueMemoriesLocked(g *Group, speaker, text string) {
	if c.sink == nil {
		return
	}
	for _, p := range g.Participants() {
		rec := MemoryRecord{
			Type:       "dialogue",
			GroupID:    g.ID,
			Topic:      g.CurrentTopic(),
			Source:     "conversation",
			Importance: 0.2,
		}
		if p == speaker {
			rec.Content = fmt.Sprintf("I said: %s", text)
			rec.Importance = 0.25
		} else {
			rec.Content = fmt.Sprintf("%s said: %s", speaker, text)
		}
		c.sink.AddMemory(p, rec)
	}
}

// RequestInterrupt queues an interrupt on a participant's behalf. The
// floor's timing and cooldown rules still decide whether the request
// is accepted; a queued interrupt is granted on a later Tick.
func (c *Controller) RequestInterrupt(groupID uuid.UUID, actor, reason string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.groups[groupID]
	if !ok {
		return false, ErrGroupNotFound
	}
	if !g.HasParticipant(actor) {
		return false, ErrNotParticipant
	}
	return g.Floor().RequestInterrupt(actor, reason), nil
}

// InFlight reports whether a group has a dialogue generation pending.
func (c *Controller) InFlight(groupID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.streaming[groupID]
	return ok
}

// PendingRequests reports the number of outstanding generation requests.
func (c *Controller) PendingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
