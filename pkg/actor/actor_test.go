package actor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNPCFromSpec(t *testing.T) {
	npc, err := NewNPCFromSpec(&NPCSpec{
		ID:      "mara",
		Name:    "Mara",
		Stamina: 12,
		Traits:  map[string]int{TraitExtroversion: 16},
	})
	require.NoError(t, err)

	assert.Equal(t, 12, npc.Actor.HP())
	assert.Equal(t, 16, npc.Trait(TraitExtroversion))
	assert.Equal(t, 10, npc.Trait(TraitWits), "unstated traits default to average")
	assert.InDelta(t, 0.8, npc.Extroversion(), 0.001)
	assert.Equal(t, DefaultNeeds(), npc.Needs)
}

func TestNewNPCFromSpec_Validation(t *testing.T) {
	_, err := NewNPCFromSpec(nil)
	assert.Error(t, err)

	_, err = NewNPCFromSpec(&NPCSpec{})
	assert.Error(t, err)
}

func TestLoadNPC_FilenameOverridesID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edda.json")
	payload := `{"id":"someone_else","name":"Edda","traits":{"charisma":15}}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	npc, err := LoadNPC(path)
	require.NoError(t, err)
	assert.Equal(t, "edda", npc.Spec.ID)
	assert.Equal(t, "Edda", npc.Spec.Name)
	assert.Equal(t, 15, npc.Trait(TraitCharisma))
}

func TestRelationshipStrength(t *testing.T) {
	npc, err := NewNPCFromSpec(&NPCSpec{
		ID:            "mara",
		Relationships: map[string]float64{"tomas": 0.6, "finn": -0.2},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.6, npc.RelationshipStrength("tomas"), 0.001)
	assert.InDelta(t, -0.2, npc.RelationshipStrength("finn"), 0.001)
	assert.Zero(t, npc.RelationshipStrength("stranger"))
}

func TestRegistry_Queries(t *testing.T) {
	r := NewRegistry()
	npc, err := NewNPCFromSpec(&NPCSpec{
		ID:            "mara",
		Traits:        map[string]int{TraitExtroversion: 16},
		Relationships: map[string]float64{"tomas": 0.6},
	})
	require.NoError(t, err)
	npc.Status.SocialFatigue = 0.4
	npc.Needs.Social = 0.3
	r.Add(npc)

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"mara"}, r.IDs())

	assert.InDelta(t, 0.4, r.SocialFatigue("mara"), 0.001)
	assert.InDelta(t, 0.8, r.Extroversion("mara"), 0.001)
	assert.InDelta(t, 0.7, r.SocialDrive("mara"), 0.001)
	assert.InDelta(t, 0.6, r.RelationshipStrength("mara", "tomas"), 0.001)

	// Unknown actors get quiet defaults.
	assert.Zero(t, r.SocialFatigue("ghost"))
	assert.InDelta(t, 0.5, r.Extroversion("ghost"), 0.001)
	assert.Zero(t, r.SocialDrive("ghost"))
}

func TestStatus_MoodDriftsToNeutral(t *testing.T) {
	s := Status{Mood: 0.5}
	s.Tick(100*time.Second, false)
	assert.InDelta(t, 0.4, s.Mood, 0.001)

	s.Mood = -0.05
	s.Tick(100*time.Second, false)
	assert.Zero(t, s.Mood)
}

func TestStatus_AdjustMoodClamps(t *testing.T) {
	s := Status{}
	s.AdjustMood(1.5)
	assert.Equal(t, 1.0, s.Mood)
	s.AdjustMood(-3)
	assert.Equal(t, -1.0, s.Mood)
}
