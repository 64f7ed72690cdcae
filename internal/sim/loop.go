package sim

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/jwebster45206/npc-engine/pkg/actor"
	"github.com/jwebster45206/npc-engine/pkg/conversation"
)

const (
	// initiationScale converts an actor's social pull into a
	// per-second chance of approaching someone.
	initiationScale = 0.05

	// approachFatigueCeiling mirrors the controller's acceptance
	// check so we don't pester actors who will refuse anyway.
	approachFatigueCeiling = 0.8

	// interruptScale converts a listener's engagement into a
	// per-second chance of trying to take the floor.
	interruptScale = 0.01
)

// Reasons a listener might break in; the floor decides if and when.
var listenerInterruptReasons = []string{
	"question", "agreement", "disagreement", "related_story",
}

// Config wires the loop to the rest of the simulation.
type Config struct {
	Registry   *actor.Registry
	Controller *conversation.Controller
	Topics     *conversation.TopicManager
	Interval   time.Duration
	Logger     *slog.Logger
	Seed       int64
}

// Loop advances the whole simulation at a fixed rate: actor needs and
// solo actions, topic relevance decay, conversation turns, and new
// conversation starts driven by social need.
type Loop struct {
	registry   *actor.Registry
	controller *conversation.Controller
	topics     *conversation.TopicManager
	interval   time.Duration
	logger     *slog.Logger
	rng        *rand.Rand

	mu         sync.Mutex
	eventNotes map[string]string
}

func New(cfg Config) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	l := &Loop{
		registry:   cfg.Registry,
		controller: cfg.Controller,
		topics:     cfg.Topics,
		interval:   cfg.Interval,
		logger:     cfg.Logger,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		eventNotes: make(map[string]string),
	}
	l.controller.SetEventHint(l.eventHint)
	return l
}

// Run steps the simulation until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("Simulation loop started", "interval", l.interval, "actors", l.registry.Len())
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Simulation loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.Step(l.interval)
		}
	}
}

// Step advances the simulation by dt. Exported so tests and offline
// tools can drive the loop without wall-clock waits.
func (l *Loop) Step(dt time.Duration) {
	for _, id := range l.registry.IDs() {
		npc, ok := l.registry.Get(id)
		if !ok {
			continue
		}
		_, busy := l.controller.GroupOf(id)
		npc.Tick(dt, busy)
	}

	l.topics.Decay(dt)
	l.maybeInterrupt(dt)
	l.controller.Tick()
	l.maybeStartConversation(dt)
}

// maybeInterrupt gives each listener in an active turn an
// extroversion-weighted chance of requesting the floor. The floor's
// own timing rules filter out premature requests.
func (l *Loop) maybeInterrupt(dt time.Duration) {
	dtSec := dt.Seconds()
	for _, snap := range l.controller.Snapshots() {
		if snap.CurrentSpeaker == "" {
			continue
		}
		for _, p := range snap.Participants {
			if p == snap.CurrentSpeaker {
				continue
			}
			chance := l.registry.Extroversion(p) * interruptScale * dtSec
			if l.rng.Float64() >= chance {
				continue
			}
			reason := listenerInterruptReasons[l.rng.Intn(len(listenerInterruptReasons))]
			queued, err := l.controller.RequestInterrupt(snap.ID, p, reason)
			if err != nil {
				continue
			}
			if queued {
				l.logger.Debug("Interrupt queued",
					"group_id", snap.ID.String(),
					"actor", p,
					"reason", reason,
				)
			}
		}
	}
}

// ProcessWorldEvent feeds an external event to the topic manager and
// remembers a short note per surfaced topic so dialogue prompts can
// reference the event.
func (l *Loop) ProcessWorldEvent(eventType string, data map[string]any) []conversation.TopicSuggestion {
	suggestions := l.topics.ProcessWorldEvent(eventType, data)

	l.mu.Lock()
	for _, s := range suggestions {
		l.eventNotes[s.Topic] = "There is fresh news: " + eventType
	}
	l.mu.Unlock()

	l.logger.Info("World event processed", "event_type", eventType, "topics", len(suggestions))
	return suggestions
}

func (l *Loop) eventHint(topic string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eventNotes[topic]
}

// maybeStartConversation gives each idle actor a need-weighted chance
// to approach another idle actor at the same location. At most one
// conversation starts per step.
func (l *Loop) maybeStartConversation(dt time.Duration) {
	idle := l.idleActors()
	if len(idle) < 2 {
		return
	}

	dtSec := dt.Seconds()
	for _, id := range idle {
		drive := l.registry.SocialDrive(id)
		extro := l.registry.Extroversion(id)
		chance := drive * extro * initiationScale * dtSec
		if l.rng.Float64() >= chance {
			continue
		}

		partner := l.pickPartner(id, idle)
		if partner == "" {
			continue
		}

		topic := l.pickTopic()
		gid, err := l.controller.StartConversation([]string{id, partner}, topic)
		if err != nil {
			if !errors.Is(err, conversation.ErrInsufficientActors) &&
				!errors.Is(err, conversation.ErrTooManyGroups) {
				l.logger.Warn("Failed to start conversation", "error", err, "initiator", id)
			}
			return
		}
		l.topics.MarkUsed(topic)
		l.logger.Debug("Conversation initiated",
			"group_id", gid.String(),
			"initiator", id,
			"partner", partner,
			"topic", topic,
		)
		return
	}
}

func (l *Loop) idleActors() []string {
	var idle []string
	for _, id := range l.registry.IDs() {
		if _, busy := l.controller.GroupOf(id); busy {
			continue
		}
		if l.registry.SocialFatigue(id) > approachFatigueCeiling {
			continue
		}
		idle = append(idle, id)
	}
	return idle
}

// pickPartner prefers the strongest relationship among idle actors at
// the initiator's location.
func (l *Loop) pickPartner(initiator string, idle []string) string {
	self, ok := l.registry.Get(initiator)
	if !ok {
		return ""
	}

	best := ""
	bestStrength := -1.0
	for _, id := range idle {
		if id == initiator {
			continue
		}
		other, ok := l.registry.Get(id)
		if !ok {
			continue
		}
		if self.Spec.Location != "" && other.Spec.Location != self.Spec.Location {
			continue
		}
		strength := l.registry.RelationshipStrength(initiator, id)
		if strength > bestStrength {
			best = id
			bestStrength = strength
		}
	}
	return best
}

func (l *Loop) pickTopic() string {
	suggestions := l.topics.SuggestForGroup("", 2)
	if len(suggestions) > 0 {
		return suggestions[0].Topic
	}
	return "small_talk"
}
