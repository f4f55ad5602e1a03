package prompts

import (
	"fmt"

	"github.com/jwebster45206/story-coach/pkg/chat"
)

// Builder assembles the message array sent to an LLM for one call.
type Builder struct {
	system       string
	history      []chat.ChatMessage
	userMessage  string
	historyLimit int
	pinned       int
	messages     []chat.ChatMessage
}

// New creates a new prompt builder with default settings.
func New() *Builder {
	return &Builder{
		historyLimit: 0, // unlimited
		messages:     make([]chat.ChatMessage, 0),
	}
}

// WithSystem sets the system instruction fixed for the conversation.
func (b *Builder) WithSystem(system string) *Builder {
	b.system = system
	return b
}

// WithHistory sets the prior exchanges of the conversation.
func (b *Builder) WithHistory(history []chat.ChatMessage) *Builder {
	b.history = history
	return b
}

// WithUserMessage sets the new user message.
func (b *Builder) WithUserMessage(message string) *Builder {
	b.userMessage = message
	return b
}

// WithHistoryLimit caps the number of history messages included. Zero keeps everything.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// WithPinned keeps the first n history messages regardless of the limit.
func (b *Builder) WithPinned(n int) *Builder {
	b.pinned = n
	return b
}

// Build constructs and returns the final message array for LLM consumption.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if b.system == "" {
		return nil, fmt.Errorf("system instruction is required")
	}
	if b.userMessage == "" {
		return nil, fmt.Errorf("user message is required")
	}

	b.messages = make([]chat.ChatMessage, 0, len(b.history)+2)
	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleSystem,
		Content: b.system,
	})
	b.addHistory()
	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleUser,
		Content: b.userMessage,
	})
	return b.messages, nil
}

// addHistory adds the pinned opening messages followed by windowed history.
// A window never starts on an assistant turn so every exchange keeps its question.
func (b *Builder) addHistory() {
	if len(b.history) == 0 {
		return
	}
	pinned := min(max(b.pinned, 0), len(b.history))
	b.messages = append(b.messages, b.history[:pinned]...)

	rest := b.history[pinned:]
	start := 0
	if b.historyLimit > 0 && len(rest) > b.historyLimit {
		start = len(rest) - b.historyLimit
		for start < len(rest) && rest[start].Role != chat.ChatRoleUser {
			start++
		}
	}
	b.messages = append(b.messages, rest[start:]...)
}

// BuildMessages is a convenience function for the common case. A positive
// limit windows the history after its first pinned messages.
func BuildMessages(system string, history []chat.ChatMessage, message string, pinned, limit int) ([]chat.ChatMessage, error) {
	return New().
		WithSystem(system).
		WithHistory(history).
		WithPinned(pinned).
		WithHistoryLimit(limit).
		WithUserMessage(message).
		Build()
}
