package actor

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMemoryCap = 50
	// Importance lost per second. At this rate a 0.5-importance
	// memory fades completely in about 70 minutes.
	defaultMemoryDecayRate = 0.00012
)

// Memory is a single remembered event.
type Memory struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"` // e.g. "conversation", "action", "mood_shift"
	Content    string    `json:"content"`
	Importance float64   `json:"importance"` // 0..1, decays over time
	Source     string    `json:"source,omitempty"`
	Created    time.Time `json:"created"`
}

// MemoryStore is a capped, decaying per-actor memory component.
// When the cap is exceeded the weakest memory is evicted first.
type MemoryStore struct {
	mu        sync.Mutex
	entries   []Memory
	cap       int
	decayRate float64
	now       func() time.Time
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCap
	}
	return &MemoryStore{
		cap:       capacity,
		decayRate: defaultMemoryDecayRate,
		now:       time.Now,
	}
}

// Add records a memory, evicting the weakest entry if at capacity.
func (s *MemoryStore) Add(m Memory) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Created.IsZero() {
		m.Created = s.now()
	}
	m.Importance = clamp01(m.Importance)

	if len(s.entries) >= s.cap {
		weakest := 0
		for i := 1; i < len(s.entries); i++ {
			if s.entries[i].Importance < s.entries[weakest].Importance {
				weakest = i
			}
		}
		s.entries = append(s.entries[:weakest], s.entries[weakest+1:]...)
	}
	s.entries = append(s.entries, m)
}

// Decay fades all memories by elapsed time and drops the ones
// whose importance reaches zero.
func (s *MemoryStore) Decay(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loss := s.decayRate * dt.Seconds()
	kept := s.entries[:0]
	for _, m := range s.entries {
		m.Importance -= loss
		if m.Importance > 0 {
			kept = append(kept, m)
		}
	}
	s.entries = kept
}

// Recent returns up to n memories, newest first.
func (s *MemoryStore) Recent(n int) []Memory {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Memory, len(s.entries))
	copy(out, s.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Created.After(out[j].Created)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Strongest returns up to n memories ordered by importance.
func (s *MemoryStore) Strongest(n int) []Memory {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Memory, len(s.entries))
	copy(out, s.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Len reports the number of stored memories.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
