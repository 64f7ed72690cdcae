package actor

import (
	"fmt"
	"math/rand"
	"time"
)

// ExecState is the executor's state machine position.
type ExecState int

const (
	ExecIdle ExecState = iota
	ExecActing
)

// Executor runs one action at a time for a single NPC: pick via the
// planner, wait out the duration, roll for the outcome, record a
// memory. Each NPC has its own executor; they never interact.
type Executor struct {
	npc     *NPC
	planner *Planner
	state   ExecState
	current Action
	started time.Time
	elapsed time.Duration
	rng     *rand.Rand
	now     func() time.Time
}

func NewExecutor(npc *NPC, planner *Planner) *Executor {
	return &Executor{
		npc:     npc,
		planner: planner,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

// State returns the current state machine position.
func (e *Executor) State() ExecState {
	return e.state
}

// Current returns the in-progress action name, empty when idle.
func (e *Executor) Current() string {
	if e.state != ExecActing {
		return ""
	}
	return e.current.Name
}

// Busy reports whether an action is in progress.
func (e *Executor) Busy() bool {
	return e.state == ExecActing
}

// Interrupt abandons the in-progress action without resolving it.
// Used when the actor is pulled into a conversation.
func (e *Executor) Interrupt() {
	e.state = ExecIdle
	e.elapsed = 0
}

// Tick advances the executor by elapsed time. When idle it consults
// the planner; when an action's duration has run out it resolves the
// outcome roll and records a memory of the result.
func (e *Executor) Tick(dt time.Duration) {
	switch e.state {
	case ExecIdle:
		action, ok := e.planner.Plan(&e.npc.Needs)
		if !ok {
			return
		}
		e.current = action
		e.started = e.now()
		e.elapsed = 0
		e.state = ExecActing

	case ExecActing:
		e.elapsed += dt
		if e.elapsed.Seconds() < e.current.Duration {
			return
		}
		e.resolve()
		e.state = ExecIdle
		e.elapsed = 0
	}
}

// resolve rolls d20 + trait modifier against the action's difficulty.
func (e *Executor) resolve() {
	roll := e.rng.Intn(20) + 1
	mod := (e.npc.Trait(e.current.Attribute) - 10) / 2
	success := roll+mod >= e.current.Difficulty

	gain := e.current.Gain
	importance := 0.3
	outcome := "succeeded"
	if !success {
		// A botched action still helps a little.
		gain = e.current.Gain * 0.25
		importance = 0.4
		outcome = "failed"
	}
	e.npc.Needs.Satisfy(e.current.Satisfies, gain)

	e.npc.Memory.Add(Memory{
		Type:       "action",
		Content:    fmt.Sprintf("%s %s", e.current.Name, outcome),
		Importance: importance,
		Source:     "executor",
	})
}

// Tick advances all per-actor systems for one simulation step.
// Conversation membership is supplied by the caller; the NPC does not
// know about conversation state itself.
func (n *NPC) Tick(dt time.Duration, inConversation bool) {
	n.Needs.Decay(dt)
	n.Status.Tick(dt, inConversation)
	n.Memory.Decay(dt)

	if n.executor == nil {
		n.executor = NewExecutor(n, NewPlanner(nil))
	}
	if inConversation {
		// Conversation satisfies the social need directly and
		// preempts any solo action.
		n.Needs.Satisfy(NeedSocial, 0.008*dt.Seconds())
		if n.executor.Busy() {
			n.executor.Interrupt()
		}
		return
	}
	n.executor.Tick(dt)
}

// Executor exposes the NPC's action executor, creating it on first use.
func (n *NPC) Executor() *Executor {
	if n.executor == nil {
		n.executor = NewExecutor(n, NewPlanner(nil))
	}
	return n.executor
}

// WithPlanner replaces the NPC's executor with one using the given planner.
func (n *NPC) WithPlanner(p *Planner) *NPC {
	n.executor = NewExecutor(n, p)
	return n
}
