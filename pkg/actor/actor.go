package actor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jwebster45206/d20"
)

// Trait names used for attribute lookups and action rolls.
const (
	TraitExtroversion = "extroversion"
	TraitEmpathy      = "empathy"
	TraitCharisma     = "charisma"
	TraitWits         = "wits"
)

// NPCSpec is the serializable specification for an NPC.
// Traits use a 1-20 scale; 10 is average.
type NPCSpec struct {
	ID            string             `json:"id"`
	Name          string             `json:"name,omitempty"`
	Persona       string             `json:"persona,omitempty"`
	Pronouns      string             `json:"pronouns,omitempty"`
	Location      string             `json:"location,omitempty"`
	Goals         []string           `json:"goals,omitempty"`
	Stamina       int                `json:"stamina,omitempty"` // endurance pool, defaults to 10
	Traits        map[string]int     `json:"traits,omitempty"`
	Relationships map[string]float64 `json:"relationships,omitempty"` // actor id -> strength, -1..1
}

// NPC is the runtime representation of an autonomous character.
type NPC struct {
	Spec   *NPCSpec
	Actor  *d20.Actor // attribute and stamina bookkeeping
	Needs  Needs
	Status Status
	Memory *MemoryStore

	executor *Executor
}

// NewNPCFromSpec builds a runtime NPC from its spec.
func NewNPCFromSpec(spec *NPCSpec) (*NPC, error) {
	if spec == nil {
		return nil, fmt.Errorf("spec cannot be nil")
	}
	if spec.ID == "" {
		return nil, fmt.Errorf("spec id cannot be empty")
	}

	stamina := spec.Stamina
	if stamina <= 0 {
		stamina = 10
	}

	attrs := map[string]int{
		TraitExtroversion: 10,
		TraitEmpathy:      10,
		TraitCharisma:     10,
		TraitWits:         10,
	}
	for k, v := range spec.Traits {
		attrs[k] = v
	}

	a, err := d20.NewActor(spec.ID).
		WithHP(stamina).
		WithAttributes(attrs).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build actor: %w", err)
	}

	return &NPC{
		Spec:   spec,
		Actor:  a,
		Needs:  DefaultNeeds(),
		Status: Status{},
		Memory: NewMemoryStore(DefaultMemoryCap),
	}, nil
}

// LoadNPC loads an NPC spec from a JSON file. The filename
// (without .json extension) overrides any ID in the JSON.
func LoadNPC(path string) (*NPC, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read NPC file: %w", err)
	}

	var spec NPCSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal NPC spec: %w", err)
	}
	spec.ID = strings.TrimSuffix(filepath.Base(path), ".json")

	return NewNPCFromSpec(&spec)
}

// Trait returns an attribute score, defaulting to 10 when absent.
func (n *NPC) Trait(name string) int {
	if v, ok := n.Actor.Attribute(name); ok {
		return v
	}
	return 10
}

// Extroversion is the trait normalized to [0,1].
func (n *NPC) Extroversion() float64 {
	return float64(n.Trait(TraitExtroversion)) / 20
}

// RelationshipStrength returns the tie to another actor, 0 if unknown.
func (n *NPC) RelationshipStrength(other string) float64 {
	return n.Spec.Relationships[other]
}

// Registry is the shared directory of live NPCs. It is passed by
// reference to the systems that need actor lookups; there is no
// package-level instance.
type Registry struct {
	mu   sync.RWMutex
	npcs map[string]*NPC
}

func NewRegistry() *Registry {
	return &Registry{npcs: make(map[string]*NPC)}
}

// Add registers an NPC, replacing any previous entry with the same ID.
func (r *Registry) Add(n *NPC) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.npcs[n.Spec.ID] = n
}

// Get returns the NPC with the given ID.
func (r *Registry) Get(id string) (*NPC, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.npcs[id]
	return n, ok
}

// IDs returns all registered actor IDs.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.npcs))
	for id := range r.npcs {
		out = append(out, id)
	}
	return out
}

// Len reports the number of registered NPCs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.npcs)
}

// SocialFatigue implements the read-only query surface consumed by
// the conversation controller.
func (r *Registry) SocialFatigue(id string) float64 {
	if n, ok := r.Get(id); ok {
		return n.Status.SocialFatigue
	}
	return 0
}

// Extroversion returns the actor's extroversion in [0,1].
func (r *Registry) Extroversion(id string) float64 {
	if n, ok := r.Get(id); ok {
		return n.Extroversion()
	}
	return 0.5
}

// SocialDrive returns how much the actor wants conversation in [0,1].
func (r *Registry) SocialDrive(id string) float64 {
	if n, ok := r.Get(id); ok {
		return n.Needs.SocialDrive()
	}
	return 0
}

// RelationshipStrength returns the directed tie from a to b.
func (r *Registry) RelationshipStrength(a, b string) float64 {
	if n, ok := r.Get(a); ok {
		return n.RelationshipStrength(b)
	}
	return 0
}
