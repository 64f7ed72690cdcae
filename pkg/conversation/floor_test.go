package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloor_TurnExclusivity(t *testing.T) {
	clock := newFakeClock()
	g := newTestGroup(clock, "weather", "alice", "bob", "carol")
	fm := g.Floor()

	require.True(t, fm.StartTurn("alice"))
	assert.True(t, fm.IsSpeaking("alice"))

	// A second start force-ends the first turn; only one speaker holds
	// the floor at a time.
	require.True(t, fm.StartTurn("bob"))
	assert.True(t, fm.IsSpeaking("bob"))
	assert.False(t, fm.IsSpeaking("alice"))
}

func TestFloor_StartTurnRejectsNonParticipant(t *testing.T) {
	clock := newFakeClock()
	g := newTestGroup(clock, "weather", "alice", "bob")

	assert.False(t, g.Floor().StartTurn("mallory"))
	assert.Empty(t, g.Floor().CurrentSpeaker())
}

func TestFloor_TurnElapsed(t *testing.T) {
	clock := newFakeClock()
	g := newTestGroup(clock, "weather", "alice", "bob")
	fm := g.Floor()

	assert.Zero(t, fm.TurnElapsed())
	fm.StartTurn("alice")
	clock.Advance(12 * time.Second)
	assert.Equal(t, 12*time.Second, fm.TurnElapsed())
}

func TestFloor_NaturalEndAdvancesRoundRobin(t *testing.T) {
	clock := newFakeClock()
	g := newTestGroup(clock, "weather", "alice", "bob", "carol")
	fm := g.Floor()

	fm.StartTurn("alice")
	fm.EndTurn(TurnEndNatural)

	next := fm.CurrentSpeaker()
	assert.NotEmpty(t, next, "a natural end hands the floor to the next speaker")
	assert.True(t, g.HasParticipant(next))
}

func TestFloor_RoundRobinCoversEveryone(t *testing.T) {
	clock := newFakeClock()
	g := newTestGroup(clock, "weather", "alice", "bob", "carol")
	fm := g.Floor()

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		seen[fm.NextSpeaker()] = true
	}
	assert.Len(t, seen, 3, "one full rotation visits each participant once")
}

func TestFloor_InterruptTiming(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		reason  string
		want    bool
	}{
		{name: "urgent too early", elapsed: 1 * time.Second, reason: "important_news", want: false},
		{name: "urgent after minimum", elapsed: 3500 * time.Millisecond, reason: "important_news", want: true},
		{name: "emergency after minimum", elapsed: 4 * time.Second, reason: "emergency", want: true},
		{name: "natural needs twice the minimum", elapsed: 4 * time.Second, reason: "question", want: false},
		{name: "natural after twice the minimum", elapsed: 7 * time.Second, reason: "question", want: true},
		{name: "unknown reason never", elapsed: 60 * time.Second, reason: "boredom", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			g := newTestGroup(clock, "weather", "alice", "bob")
			fm := g.Floor()
			fm.StartTurn("alice")
			clock.Advance(tt.elapsed)

			assert.Equal(t, tt.want, fm.RequestInterrupt("bob", tt.reason))
		})
	}
}

func TestFloor_InterruptRejectedWithoutActiveTurn(t *testing.T) {
	clock := newFakeClock()
	g := newTestGroup(clock, "weather", "alice", "bob")

	assert.False(t, g.Floor().RequestInterrupt("bob", "emergency"))
}

func TestFloor_SpeakerCannotInterruptSelf(t *testing.T) {
	clock := newFakeClock()
	g := newTestGroup(clock, "weather", "alice", "bob")
	fm := g.Floor()
	fm.StartTurn("alice")
	clock.Advance(10 * time.Second)

	assert.False(t, fm.RequestInterrupt("alice", "emergency"))
}

func TestFloor_InterruptPriorityOrder(t *testing.T) {
	clock := newFakeClock()
	g := newTestGroup(clock, "weather", "alice", "bob", "carol", "dave")
	fm := g.Floor()
	fm.StartTurn("alice")
	clock.Advance(10 * time.Second)

	// Base priorities: related_story 5, important_news 9, question 4.
	require.True(t, fm.RequestInterrupt("bob", "related_story"))
	require.True(t, fm.RequestInterrupt("carol", "important_news"))
	require.True(t, fm.RequestInterrupt("dave", "question"))

	pending := fm.PendingInterrupts()
	require.Len(t, pending, 3)
	assert.Equal(t, "carol", pending[0].Interrupter)
	assert.Equal(t, "bob", pending[1].Interrupter)
	assert.Equal(t, "dave", pending[2].Interrupter)

	granted := fm.Tick()
	assert.Equal(t, "carol", granted)
	assert.True(t, fm.IsSpeaking("carol"))
	assert.Len(t, fm.PendingInterrupts(), 2)
}

func TestFloor_EqualPriorityIsFIFO(t *testing.T) {
	clock := newFakeClock()
	g := newTestGroup(clock, "weather", "alice", "bob", "carol")
	fm := g.Floor()
	fm.StartTurn("alice")
	clock.Advance(10 * time.Second)

	require.True(t, fm.RequestInterrupt("bob", "question"))
	require.True(t, fm.RequestInterrupt("carol", "question"))

	assert.Equal(t, "bob", fm.Tick())
}

func TestFloor_RelationshipBreaksTies(t *testing.T) {
	clock := newFakeClock()
	g := newTestGroup(clock, "weather", "alice", "bob", "carol")
	fm := g.Floor()
	fm.relStrength = func(interrupter, speaker string) float64 {
		if interrupter == "carol" {
			return 0.5
		}
		return 0.0
	}
	fm.StartTurn("alice")
	clock.Advance(10 * time.Second)

	require.True(t, fm.RequestInterrupt("bob", "question"))
	require.True(t, fm.RequestInterrupt("carol", "question"))

	assert.Equal(t, "carol", fm.Tick(), "the closer friend wins the tie")
}

func TestFloor_InterruptCooldown(t *testing.T) {
	clock := newFakeClock()
	g := newTestGroup(clock, "weather", "alice", "bob", "carol")
	fm := g.Floor()
	fm.StartTurn("alice")
	clock.Advance(10 * time.Second)

	require.True(t, fm.RequestInterrupt("bob", "emergency"))
	require.Equal(t, "bob", fm.Tick())

	// Within the cooldown window new requests are rejected outright.
	clock.Advance(4 * time.Second)
	assert.False(t, fm.RequestInterrupt("carol", "emergency"))

	clock.Advance(2 * time.Second)
	assert.True(t, fm.RequestInterrupt("carol", "emergency"))
}

func TestFloor_TimeoutForcesTurnEnd(t *testing.T) {
	clock := newFakeClock()
	g := newTestGroup(clock, "weather", "alice", "bob")
	fm := g.Floor()
	fm.StartTurn("alice")

	var timedOut bool
	g.Subscribe(func(evt Event) {
		if evt.Type == EventTurnTimeout {
			timedOut = true
		}
	})

	clock.Advance(31 * time.Second)
	fm.Tick()

	assert.True(t, timedOut)
	assert.Empty(t, fm.CurrentSpeaker())
}

func TestFloor_ParticipantRemovalCleansUp(t *testing.T) {
	clock := newFakeClock()
	g := newTestGroup(clock, "weather", "alice", "bob", "carol", "dave")
	fm := g.Floor()
	fm.StartTurn("alice")
	clock.Advance(10 * time.Second)
	require.True(t, fm.RequestInterrupt("bob", "question"))

	g.RemoveParticipant("bob", "walked away")

	assert.Empty(t, fm.PendingInterrupts(), "the leaver's interrupts are purged")

	g.RemoveParticipant("alice", "walked away")
	assert.Empty(t, fm.CurrentSpeaker(), "the leaving speaker's turn ends")
}
