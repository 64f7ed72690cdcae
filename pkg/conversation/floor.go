package conversation

import (
	"math/rand"
	"sort"
	"time"
)

// Turn end reasons.
const (
	TurnEndNatural         = "natural_end"
	TurnEndNewSpeaker      = "new_speaker"
	TurnEndTimeout         = "timeout"
	TurnEndInterrupted     = "interrupted"
	TurnEndParticipantLeft = "participant_left"
	TurnEndConversationEnd = "conversation_ended"
)

const (
	DefaultMaxTurnDuration   = 30 * time.Second
	DefaultMinTurnDuration   = 3 * time.Second
	DefaultInterruptCooldown = 5 * time.Second
)

// Interrupt base priorities. Urgent reasons are granted after the
// minimum turn duration; natural reasons only after twice that.
// Unlisted reasons are never appropriate.
var interruptPriorities = map[string]int{
	"emergency":            10,
	"important_news":       9,
	"clarification_needed": 8,
	"agreement":            7,
	"disagreement":         6,
	"related_story":        5,
	"question":             4,
}

var urgentInterrupts = map[string]bool{
	"emergency":            true,
	"important_news":       true,
	"clarification_needed": true,
}

// InterruptRequest is a queued request to take the floor.
type InterruptRequest struct {
	Interrupter string    `json:"interrupter"`
	Reason      string    `json:"reason"`
	Priority    float64   `json:"priority"`
	Requested   time.Time `json:"requested"`
	seq         int       // arrival order; FIFO among equal priorities
}

// FloorManager owns turn-taking for a single conversation group:
// who holds the floor, for how long, the round-robin speaking order,
// and the interrupt queue. One instance per group, same lifetime.
type FloorManager struct {
	currentSpeaker string
	turnStarted    time.Time
	lastDuration   time.Duration

	speakingOrder []string
	orderCursor   int
	roundRobin    bool

	interrupts    []InterruptRequest
	lastInterrupt time.Time
	nextSeq       int

	maxTurnDuration   time.Duration
	minTurnDuration   time.Duration
	interruptCooldown time.Duration

	// Supplied by the owning group.
	isParticipant func(string) bool
	participants  func() []string
	relStrength   func(interrupter, speaker string) float64

	rng    *rand.Rand
	now    func() time.Time
	events *emitter
}

func newFloorManager(g *Group) *FloorManager {
	fm := &FloorManager{
		roundRobin:        true,
		maxTurnDuration:   DefaultMaxTurnDuration,
		minTurnDuration:   DefaultMinTurnDuration,
		interruptCooldown: DefaultInterruptCooldown,
		isParticipant:     g.HasParticipant,
		participants:      g.Participants,
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
		now:               func() time.Time { return g.now() },
		events:            g.events,
	}
	return fm
}

// CurrentSpeaker returns the actor holding the floor, empty when none.
func (fm *FloorManager) CurrentSpeaker() string {
	return fm.currentSpeaker
}

// IsSpeaking reports whether the actor currently holds the floor.
func (fm *FloorManager) IsSpeaking(actor string) bool {
	return fm.currentSpeaker != "" && fm.currentSpeaker == actor
}

// TurnElapsed is the time the current speaker has held the floor.
func (fm *FloorManager) TurnElapsed() time.Duration {
	if fm.currentSpeaker == "" {
		return 0
	}
	return fm.now().Sub(fm.turnStarted)
}

// StartTurn gives the floor to a speaker. A turn already in progress
// is force-ended first.
func (fm *FloorManager) StartTurn(speaker string) bool {
	if !fm.isParticipant(speaker) {
		return false
	}
	if fm.currentSpeaker != "" {
		fm.EndTurn(TurnEndNewSpeaker)
	}
	fm.currentSpeaker = speaker
	fm.turnStarted = fm.now()
	fm.lastDuration = 0
	fm.events.emit(Event{Type: EventTurnStarted, Actor: speaker})
	return true
}

// EndTurn releases the floor. No-op when nobody is speaking. A
// natural end advances the round-robin order to the next speaker.
func (fm *FloorManager) EndTurn(reason string) {
	if fm.currentSpeaker == "" {
		return
	}
	speaker := fm.currentSpeaker
	fm.lastDuration = fm.now().Sub(fm.turnStarted)
	fm.currentSpeaker = ""
	fm.events.emit(Event{
		Type:  EventTurnEnded,
		Actor: speaker,
		Data:  map[string]any{"reason": reason, "duration_s": fm.lastDuration.Seconds()},
	})

	if reason == TurnEndNatural && fm.roundRobin {
		if next := fm.NextSpeaker(); next != "" {
			fm.StartTurn(next)
		}
	}
}

// NextSpeaker consumes the round-robin order. When the cursor wraps,
// the order is rebuilt and reshuffled; this reshuffle is the only
// place randomness enters turn order.
func (fm *FloorManager) NextSpeaker() string {
	if fm.orderCursor >= len(fm.speakingOrder) {
		fm.rebuildOrder()
	}
	if len(fm.speakingOrder) == 0 {
		return ""
	}
	next := fm.speakingOrder[fm.orderCursor]
	fm.orderCursor++
	return next
}

func (fm *FloorManager) rebuildOrder() {
	fm.speakingOrder = fm.participants()
	fm.rng.Shuffle(len(fm.speakingOrder), func(i, j int) {
		fm.speakingOrder[i], fm.speakingOrder[j] = fm.speakingOrder[j], fm.speakingOrder[i]
	})
	fm.orderCursor = 0
}

// RequestInterrupt queues a request to take the floor. The request is
// rejected when the interrupter is not a participant, already holds
// the floor, no turn is active, a previous interrupt was granted too
// recently, or the reason is not yet appropriate for the turn's age.
func (fm *FloorManager) RequestInterrupt(interrupter, reason string) bool {
	if !fm.isParticipant(interrupter) || interrupter == fm.currentSpeaker {
		return false
	}
	if fm.currentSpeaker == "" {
		return false
	}
	if !fm.lastInterrupt.IsZero() && fm.now().Sub(fm.lastInterrupt) < fm.interruptCooldown {
		return false
	}
	if !fm.interruptAppropriate(reason) {
		return false
	}

	priority := float64(interruptPriorities[reason])
	if fm.relStrength != nil {
		priority += fm.relStrength(interrupter, fm.currentSpeaker)
	}

	req := InterruptRequest{
		Interrupter: interrupter,
		Reason:      reason,
		Priority:    priority,
		Requested:   fm.now(),
		seq:         fm.nextSeq,
	}
	fm.nextSeq++
	fm.interrupts = append(fm.interrupts, req)
	sort.SliceStable(fm.interrupts, func(i, j int) bool {
		if fm.interrupts[i].Priority != fm.interrupts[j].Priority {
			return fm.interrupts[i].Priority > fm.interrupts[j].Priority
		}
		return fm.interrupts[i].seq < fm.interrupts[j].seq
	})
	fm.events.emit(Event{
		Type:  EventInterruptQueued,
		Actor: interrupter,
		Data:  map[string]any{"reason": reason, "priority": priority},
	})
	return true
}

func (fm *FloorManager) interruptAppropriate(reason string) bool {
	elapsed := fm.TurnElapsed()
	if elapsed < fm.minTurnDuration {
		return false
	}
	if urgentInterrupts[reason] {
		return true
	}
	if _, natural := interruptPriorities[reason]; natural {
		return elapsed >= 2*fm.minTurnDuration
	}
	return false
}

// PendingInterrupts returns a snapshot of the queue, highest first.
func (fm *FloorManager) PendingInterrupts() []InterruptRequest {
	out := make([]InterruptRequest, len(fm.interrupts))
	copy(out, fm.interrupts)
	return out
}

// ForceSpeakerChange hands the floor to a speaker, bypassing the
// interrupt appropriateness checks. The target must be a participant.
func (fm *FloorManager) ForceSpeakerChange(speaker, reason string) bool {
	if !fm.isParticipant(speaker) {
		return false
	}
	if fm.currentSpeaker != "" {
		fm.EndTurn(reason)
	}
	return fm.StartTurn(speaker)
}

// Tick evaluates the turn timeout and grants at most one queued
// interrupt. Returns the actor who gained the floor via interrupt,
// if any.
func (fm *FloorManager) Tick() string {
	if fm.currentSpeaker != "" && fm.TurnElapsed() > fm.maxTurnDuration {
		speaker := fm.currentSpeaker
		fm.EndTurn(TurnEndTimeout)
		fm.events.emit(Event{Type: EventTurnTimeout, Actor: speaker})
	}

	if len(fm.interrupts) == 0 {
		return ""
	}

	req := fm.interrupts[0]
	fm.interrupts = fm.interrupts[1:]
	if !fm.isParticipant(req.Interrupter) {
		return ""
	}
	fm.EndTurn(TurnEndInterrupted)
	if !fm.StartTurn(req.Interrupter) {
		return ""
	}
	fm.lastInterrupt = fm.now()
	fm.events.emit(Event{
		Type:  EventInterruptGranted,
		Actor: req.Interrupter,
		Data:  map[string]any{"reason": req.Reason, "priority": req.Priority},
	})
	return req.Interrupter
}

// HandleParticipantRemoved cleans up after a membership change: ends
// the leaver's turn, purges them from the interrupt queue, and
// rebuilds the speaking order from the current participant list.
func (fm *FloorManager) HandleParticipantRemoved(actor string) {
	if fm.currentSpeaker == actor {
		fm.EndTurn(TurnEndParticipantLeft)
	}
	kept := fm.interrupts[:0]
	for _, req := range fm.interrupts {
		if req.Interrupter != actor {
			kept = append(kept, req)
		}
	}
	fm.interrupts = kept
	fm.rebuildOrder()
}

// HandleParticipantAdded rebuilds the speaking order to include the
// new participant.
func (fm *FloorManager) HandleParticipantAdded() {
	fm.rebuildOrder()
}
