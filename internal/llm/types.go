package llm

import (
	"log/slog"
	"strings"
	"time"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultMaxTokens caps completions when Options.MaxTokens is unset.
const DefaultMaxTokens = 2048

// Message represents a chat message for the LLM.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are per-request sampling parameters. Zero values leave the
// provider default in place, except MaxTokens which falls back to
// DefaultMaxTokens where the provider requires a value.
type Options struct {
	Temperature float64
	MaxTokens   int
}

func (o Options) maxTokens() int {
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return DefaultMaxTokens
}

// ChatResponse is the unified response from any LLM provider.
// Wire format conversion happens at provider boundaries.
type ChatResponse struct {
	Model     string
	CreatedAt time.Time
	Message   Message

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int

	// Timing (populated when available)
	TotalDuration time.Duration
}

// Text returns the trimmed assistant content.
func (r *ChatResponse) Text() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.Message.Content)
}

// splitSystem separates system messages from the conversation. Some
// providers take the system prompt as a top-level field.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
