package actor

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CapEvictsWeakest(t *testing.T) {
	s := NewMemoryStore(3)
	s.Add(Memory{Content: "strong", Importance: 0.9})
	s.Add(Memory{Content: "weak", Importance: 0.1})
	s.Add(Memory{Content: "medium", Importance: 0.5})

	s.Add(Memory{Content: "new", Importance: 0.4})
	require.Equal(t, 3, s.Len())

	for _, m := range s.Recent(0) {
		assert.NotEqual(t, "weak", m.Content, "the weakest memory is evicted first")
	}
}

func TestMemoryStore_DecayDropsFaded(t *testing.T) {
	s := NewMemoryStore(10)
	s.Add(Memory{Content: "fleeting", Importance: 0.01})
	s.Add(Memory{Content: "lasting", Importance: 0.9})

	// 0.00012/s * 100s = 0.012 of importance lost.
	s.Decay(100 * time.Second)

	require.Equal(t, 1, s.Len())
	assert.Equal(t, "lasting", s.Recent(1)[0].Content)
}

func TestMemoryStore_RecentOrdersByCreation(t *testing.T) {
	s := NewMemoryStore(10)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	for i := 0; i < 5; i++ {
		created := base.Add(time.Duration(i) * time.Minute)
		s.Add(Memory{Content: fmt.Sprintf("m%d", i), Importance: 0.5, Created: created})
	}

	recent := s.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "m4", recent[0].Content)
	assert.Equal(t, "m3", recent[1].Content)
	assert.Equal(t, "m2", recent[2].Content)
}

func TestMemoryStore_StrongestOrdersByImportance(t *testing.T) {
	s := NewMemoryStore(10)
	s.Add(Memory{Content: "minor", Importance: 0.2})
	s.Add(Memory{Content: "major", Importance: 0.9})
	s.Add(Memory{Content: "middling", Importance: 0.5})

	strongest := s.Strongest(2)
	require.Len(t, strongest, 2)
	assert.Equal(t, "major", strongest[0].Content)
	assert.Equal(t, "middling", strongest[1].Content)
}

func TestMemoryStore_AddAssignsIDAndClamps(t *testing.T) {
	s := NewMemoryStore(10)
	s.Add(Memory{Content: "overweighted", Importance: 3.5})

	m := s.Recent(1)[0]
	assert.NotZero(t, m.ID)
	assert.Equal(t, 1.0, m.Importance)
	assert.False(t, m.Created.IsZero())
}
