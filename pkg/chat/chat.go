package chat

import "fmt"

const (
	ChatRoleUser   = "user"      // Another speaker, from the generating NPC's point of view
	ChatRoleAgent  = "assistant" // The NPC whose line is being generated
	ChatRoleSystem = "system"    // Persona and scene framing
)

// ChatMessage represents a single message sent to the LLM.
// This shape follows the OpenAI-style chat API and is shared by all providers.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatResponse is a completed generation returned by an LLM provider.
type ChatResponse struct {
	Message string `json:"message,omitempty"`
	Model   string `json:"model,omitempty"`
}

// StreamChunk is a single increment of a streaming generation.
// The final chunk has Done set; a failed stream carries Error.
type StreamChunk struct {
	Content string
	Done    bool
	Error   error
}

// FormatWithSpeaker prefixes a dialogue line with its speaker's name,
// unless the line already carries a "Name:" prefix.
func FormatWithSpeaker(line, speaker string) string {
	if speaker == "" || line == "" {
		return line
	}
	for i, r := range line {
		if r == ':' {
			if i > 0 && i < 40 {
				return line
			}
			break
		}
		if r == ' ' || r == '\n' {
			break
		}
	}
	return fmt.Sprintf("%s: %s", speaker, line)
}
