package sim

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/internal/services"
	"github.com/jwebster45206/npc-engine/pkg/actor"
	"github.com/jwebster45206/npc-engine/pkg/conversation"
)

func testNPC(t *testing.T, id, location string) *actor.NPC {
	t.Helper()
	npc, err := actor.NewNPCFromSpec(&actor.NPCSpec{
		ID:       id,
		Location: location,
		Traits:   map[string]int{actor.TraitExtroversion: 20},
	})
	require.NoError(t, err)
	npc.Needs.Social = 0 // maximum social drive
	return npc
}

func testLoop(t *testing.T, npcs ...*actor.NPC) (*Loop, *actor.Registry, *conversation.Controller) {
	t.Helper()
	registry := actor.NewRegistry()
	for _, n := range npcs {
		registry.Add(n)
	}
	topics := conversation.NewTopicManager()
	ctrl := conversation.NewController(conversation.ControllerConfig{
		Generator: services.NewMockLLM(),
		Profiles:  registry,
		Directory: registry,
		Sink:      registry,
		Topics:    topics,
		Logger:    slog.Default(),
	})
	loop := New(Config{
		Registry:   registry,
		Controller: ctrl,
		Topics:     topics,
		Interval:   500 * time.Millisecond,
		Logger:     slog.Default(),
		Seed:       1,
	})
	return loop, registry, ctrl
}

func TestLoop_StartsConversationBetweenColocatedActors(t *testing.T) {
	loop, _, ctrl := testLoop(t,
		testNPC(t, "alice", "market"),
		testNPC(t, "bob", "market"),
	)

	// A large step makes the need-weighted initiation chance certain.
	loop.maybeStartConversation(time.Hour)

	groups := ctrl.Snapshots()
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, []string{"alice", "bob"}, groups[0].Participants)
	assert.Equal(t, "small_talk", groups[0].Topic)
}

func TestLoop_NoInitiationAcrossLocations(t *testing.T) {
	loop, _, ctrl := testLoop(t,
		testNPC(t, "alice", "market"),
		testNPC(t, "bob", "tavern"),
	)

	loop.maybeStartConversation(time.Hour)

	assert.Empty(t, ctrl.Snapshots())
}

func TestLoop_FatiguedActorsStayIdle(t *testing.T) {
	alice := testNPC(t, "alice", "market")
	bob := testNPC(t, "bob", "market")
	bob.Status.SocialFatigue = 0.95

	loop, _, ctrl := testLoop(t, alice, bob)
	loop.maybeStartConversation(time.Hour)

	assert.Empty(t, ctrl.Snapshots())
}

func TestLoop_BusyActorsDoNotInitiate(t *testing.T) {
	loop, _, ctrl := testLoop(t,
		testNPC(t, "alice", "market"),
		testNPC(t, "bob", "market"),
	)

	_, err := ctrl.StartConversation([]string{"alice", "bob"}, "weather")
	require.NoError(t, err)

	loop.maybeStartConversation(time.Hour)

	assert.Len(t, ctrl.Snapshots(), 1)
}

func TestLoop_StepAdvancesActors(t *testing.T) {
	alice := testNPC(t, "alice", "market")
	alice.Needs.Social = 1 // no drive, keep the step quiet
	bob := testNPC(t, "bob", "market")
	bob.Needs.Social = 1
	energyBefore := alice.Needs.Energy

	loop, _, _ := testLoop(t, alice, bob)
	loop.Step(10 * time.Minute)

	assert.Less(t, alice.Needs.Energy, energyBefore, "needs should decay over a step")
}

func TestLoop_WorldEventFeedsTopicsAndHints(t *testing.T) {
	loop, _, _ := testLoop(t,
		testNPC(t, "alice", "market"),
		testNPC(t, "bob", "market"),
	)

	suggestions := loop.ProcessWorldEvent("weather", map[string]any{"subtype": "storm"})
	require.NotEmpty(t, suggestions)

	hint := loop.eventHint(suggestions[0].Topic)
	assert.Contains(t, hint, "weather")

	assert.Empty(t, loop.eventHint("unrelated_topic"))
}

func TestLoop_PicksSuggestedTopicWhenAvailable(t *testing.T) {
	loop, _, ctrl := testLoop(t,
		testNPC(t, "alice", "market"),
		testNPC(t, "bob", "market"),
	)

	loop.ProcessWorldEvent("social", map[string]any{"subtype": "festival"})
	loop.maybeStartConversation(time.Hour)

	groups := ctrl.Snapshots()
	require.Len(t, groups, 1)
	assert.NotEqual(t, "small_talk", groups[0].Topic)
}

func TestLoop_ListenerInterruptsRespectFloorTiming(t *testing.T) {
	loop, _, ctrl := testLoop(t,
		testNPC(t, "alice", "market"),
		testNPC(t, "bob", "market"),
	)
	id, err := ctrl.StartConversation([]string{"alice", "bob"}, "weather")
	require.NoError(t, err)

	// One tick seats a speaker and completes their line; the floor
	// passes to the other participant, who now holds a fresh turn.
	ctrl.Tick()
	require.Eventually(t, func() bool { return ctrl.PendingRequests() == 0 }, 2*time.Second, 10*time.Millisecond)

	snap, ok := ctrl.Snapshot(id, 0)
	require.True(t, ok)
	require.NotEmpty(t, snap.CurrentSpeaker)

	// A huge step makes every listener try to break in, but a turn
	// this young refuses them all and the speaker keeps the floor.
	loop.maybeInterrupt(time.Hour)
	ctrl.Tick()

	after, ok := ctrl.Snapshot(id, 0)
	require.True(t, ok)
	assert.Equal(t, snap.CurrentSpeaker, after.CurrentSpeaker)
}
