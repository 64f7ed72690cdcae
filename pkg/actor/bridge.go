package actor

import (
	"fmt"

	"github.com/jwebster45206/npc-engine/pkg/conversation"
)

// The registry doubles as the conversation subsystem's actor
// directory, profile source, and memory sink.
var (
	_ conversation.Directory     = (*Registry)(nil)
	_ conversation.ProfileSource = (*Registry)(nil)
	_ conversation.MemorySink    = (*Registry)(nil)
)

// Profile assembles the prompt-facing view of an actor.
func (r *Registry) Profile(id string) (conversation.Profile, bool) {
	n, ok := r.Get(id)
	if !ok {
		return conversation.Profile{}, false
	}

	name := n.Spec.Name
	if name == "" {
		name = n.Spec.ID
	}
	p := conversation.Profile{
		Name:     name,
		Persona:  n.Spec.Persona,
		Pronouns: n.Spec.Pronouns,
		Location: n.Spec.Location,
		Goals:    n.Spec.Goals,
		Mood:     n.Status.Mood,
	}

	need, level := n.Needs.Lowest()
	if level < 0.4 {
		p.NeedsNote = fmt.Sprintf("your %s need is running low", need)
	}
	for _, m := range n.Memory.Strongest(3) {
		p.Memories = append(p.Memories, m.Content)
	}
	return p, true
}

// AddMemory routes a conversation memory record into the actor's own
// memory component.
func (r *Registry) AddMemory(actorID string, rec conversation.MemoryRecord) {
	n, ok := r.Get(actorID)
	if !ok {
		return
	}
	n.Memory.Add(Memory{
		Type:       rec.Type,
		Content:    rec.Content,
		Importance: rec.Importance,
		Source:     rec.Source,
	})
}
