package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/jwebster45206/npc-engine/pkg/chat"
)

// fakeClock drives the package's injected time functions in tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeGen is a Generator with injectable behavior per test.
type fakeGen struct {
	chatFunc   func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)
	streamFunc func(ctx context.Context, messages []chat.ChatMessage) (<-chan chat.StreamChunk, error)
}

func (f *fakeGen) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	if f.chatFunc != nil {
		return f.chatFunc(ctx, messages)
	}
	return &chat.ChatResponse{Message: "Quite a day we're having.", Model: "fake"}, nil
}

func (f *fakeGen) ChatStream(ctx context.Context, messages []chat.ChatMessage) (<-chan chat.StreamChunk, error) {
	if f.streamFunc != nil {
		return f.streamFunc(ctx, messages)
	}
	return nil, context.Canceled
}

// fakeDirectory serves per-actor numbers from plain maps.
type fakeDirectory struct {
	fatigue map[string]float64
	extro   map[string]float64
	drive   map[string]float64
	rel     map[[2]string]float64
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		fatigue: make(map[string]float64),
		extro:   make(map[string]float64),
		drive:   make(map[string]float64),
		rel:     make(map[[2]string]float64),
	}
}

func (d *fakeDirectory) SocialFatigue(id string) float64 { return d.fatigue[id] }

func (d *fakeDirectory) Extroversion(id string) float64 {
	if v, ok := d.extro[id]; ok {
		return v
	}
	return 0.5
}

func (d *fakeDirectory) SocialDrive(id string) float64 {
	if v, ok := d.drive[id]; ok {
		return v
	}
	return 0.5
}

func (d *fakeDirectory) RelationshipStrength(a, b string) float64 { return d.rel[[2]string{a, b}] }

// recordSink captures memory records per actor.
type recordSink struct {
	mu      sync.Mutex
	records map[string][]MemoryRecord
}

func newRecordSink() *recordSink {
	return &recordSink{records: make(map[string][]MemoryRecord)}
}

func (s *recordSink) AddMemory(actor string, mem MemoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[actor] = append(s.records[actor], mem)
}

func (s *recordSink) forActor(actor string) []MemoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MemoryRecord, len(s.records[actor]))
	copy(out, s.records[actor])
	return out
}

// staticProfiles resolves every actor to a minimal profile.
type staticProfiles struct{}

func (staticProfiles) Profile(id string) (Profile, bool) {
	return Profile{Name: id, Persona: id + " is a townsperson."}, true
}

// newTestGroup builds an active group on a fake clock.
func newTestGroup(clock *fakeClock, topic string, actors ...string) *Group {
	g := NewGroup(topic)
	g.now = clock.Now
	g.started = clock.Now()
	g.topicStarted = g.started
	g.lastActivity = g.started
	for _, a := range actors {
		g.AddParticipant(a, nil)
	}
	return g
}

// newTestController builds a controller on a fake clock with the
// given collaborators; nil collaborators get quiet defaults.
func newTestController(clock *fakeClock, gen Generator, dir Directory, sink MemorySink) *Controller {
	if gen == nil {
		gen = &fakeGen{}
	}
	c := NewController(ControllerConfig{
		Generator: gen,
		Profiles:  staticProfiles{},
		Directory: dir,
		Sink:      sink,
	})
	c.now = clock.Now
	return c
}
