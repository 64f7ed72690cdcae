package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/npc-engine/pkg/chat"
)

// Generator is the opaque text-generation collaborator. The
// controller prefers ChatStream and falls back to Chat when a
// provider does not stream.
type Generator interface {
	Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)
	ChatStream(ctx context.Context, messages []chat.ChatMessage) (<-chan chat.StreamChunk, error)
}

// Directory is the read-only per-actor query surface the controller
// uses for scheduling decisions. It is a capability interface, not a
// concrete actor type.
type Directory interface {
	SocialFatigue(id string) float64
	Extroversion(id string) float64
	SocialDrive(id string) float64
	RelationshipStrength(a, b string) float64
}

// MemoryRecord is a memory side-effect emitted by the conversation
// pipeline for an external memory sink.
type MemoryRecord struct {
	Type       string    `json:"type"` // "dialogue", "conversation_end"
	Content    string    `json:"content"`
	Importance float64   `json:"importance"`
	GroupID    uuid.UUID `json:"group_id"`
	Topic      string    `json:"topic,omitempty"`
	Source     string    `json:"source,omitempty"`
}

// MemorySink receives memory records for individual actors.
type MemorySink interface {
	AddMemory(actor string, mem MemoryRecord)
}

// Profile is the slice of an actor's state the context packer embeds
// in generation requests.
type Profile struct {
	Name      string
	Persona   string
	Pronouns  string
	Location  string
	Goals     []string
	Mood      float64
	NeedsNote string
	Memories  []string
}

// ProfileSource resolves actor profiles for prompt assembly.
type ProfileSource interface {
	Profile(id string) (Profile, bool)
}

// NPCContext is the assembled payload for one generation request.
type NPCContext struct {
	Speaker   Profile
	Targets   []Profile
	Topic     string
	GroupMood Mood
	EventHint string
	History   []DialogueEntry
}

// ContextPacker assembles generation payloads from the actor, memory,
// and environment collaborators. The controller treats it as a black
// box that turns (speaker, group) into chat messages.
type ContextPacker struct {
	profiles     ProfileSource
	historyLimit int
}

func NewContextPacker(profiles ProfileSource) *ContextPacker {
	return &ContextPacker{
		profiles:     profiles,
		historyLimit: 8,
	}
}

// BuildContext gathers everything needed to generate the speaker's
// next line. The speaker is excluded from the target list.
func (cp *ContextPacker) BuildContext(speaker string, g *Group, eventHint string) NPCContext {
	nc := NPCContext{
		Topic:     g.CurrentTopic(),
		GroupMood: g.Mood(),
		EventHint: eventHint,
		History:   g.RecentDialogue(cp.historyLimit),
	}
	if p, ok := cp.profiles.Profile(speaker); ok {
		nc.Speaker = p
	} else {
		nc.Speaker = Profile{Name: speaker}
	}
	for _, id := range g.Participants() {
		if id == speaker {
			continue
		}
		if p, ok := cp.profiles.Profile(id); ok {
			nc.Targets = append(nc.Targets, p)
		} else {
			nc.Targets = append(nc.Targets, Profile{Name: id})
		}
	}
	return nc
}

// BuildMessages renders the context as chat messages: a system prompt
// describing the speaker and scene, followed by the recent dialogue
// with other speakers as user turns and the speaker's own lines as
// assistant turns.
func (cp *ContextPacker) BuildMessages(nc NPCContext) []chat.ChatMessage {
	var sb strings.Builder
	name := nc.Speaker.Name
	fmt.Fprintf(&sb, "You are %s, a character in a living world. Respond with a single short line of spoken dialogue, in character. Do not narrate or describe actions.\n", name)
	if nc.Speaker.Persona != "" {
		fmt.Fprintf(&sb, "Persona: %s\n", nc.Speaker.Persona)
	}
	if nc.Speaker.Pronouns != "" {
		fmt.Fprintf(&sb, "Pronouns: %s\n", nc.Speaker.Pronouns)
	}
	if nc.Speaker.Location != "" {
		fmt.Fprintf(&sb, "Location: %s\n", nc.Speaker.Location)
	}
	if len(nc.Speaker.Goals) > 0 {
		fmt.Fprintf(&sb, "Goals: %s\n", strings.Join(nc.Speaker.Goals, "; "))
	}
	fmt.Fprintf(&sb, "Your mood: %s\n", moodWord(nc.Speaker.Mood))
	if nc.Speaker.NeedsNote != "" {
		fmt.Fprintf(&sb, "State: %s\n", nc.Speaker.NeedsNote)
	}
	if len(nc.Speaker.Memories) > 0 {
		fmt.Fprintf(&sb, "You remember: %s\n", strings.Join(nc.Speaker.Memories, "; "))
	}

	if len(nc.Targets) > 0 {
		names := make([]string, 0, len(nc.Targets))
		for _, t := range nc.Targets {
			d := t.Name
			if t.Persona != "" {
				d = fmt.Sprintf("%s (%s)", t.Name, t.Persona)
			}
			names = append(names, d)
		}
		fmt.Fprintf(&sb, "You are talking with: %s\n", strings.Join(names, ", "))
	}
	if nc.Topic != "" {
		fmt.Fprintf(&sb, "Current topic: %s\n", nc.Topic)
	}
	fmt.Fprintf(&sb, "Group mood: %s\n", moodWord(nc.GroupMood.Valence))
	if nc.EventHint != "" {
		fmt.Fprintf(&sb, "Recent happening worth mentioning: %s\n", nc.EventHint)
	}

	messages := []chat.ChatMessage{{Role: chat.ChatRoleSystem, Content: sb.String()}}
	for _, line := range nc.History {
		role := chat.ChatRoleUser
		content := chat.FormatWithSpeaker(line.Text, line.Speaker)
		if line.Speaker == name {
			role = chat.ChatRoleAgent
			content = line.Text
		}
		messages = append(messages, chat.ChatMessage{Role: role, Content: content})
	}

	// Anthropic-style APIs require the transcript to end on a user
	// turn before the assistant speaks.
	if len(messages) == 1 || messages[len(messages)-1].Role == chat.ChatRoleAgent {
		messages = append(messages, chat.ChatMessage{
			Role:    chat.ChatRoleUser,
			Content: fmt.Sprintf("(%s, say your next line.)", name),
		})
	}
	return messages
}

func moodWord(valence float64) string {
	switch {
	case valence > 0.5:
		return "cheerful"
	case valence > 0.1:
		return "content"
	case valence > -0.1:
		return "neutral"
	case valence > -0.5:
		return "irritable"
	default:
		return "miserable"
	}
}
