package services

import (
	"context"

	"github.com/jwebster45206/story-coach/pkg/chat"
)

// Provider names accepted in configuration.
const (
	ProviderAnthropic = "anthropic"
	ProviderVenice    = "venice"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// LLMService defines the interface for interacting with the LLM API
type LLMService interface {
	// InitModel prepares the model on startup
	InitModel(ctx context.Context, modelName string) error

	// Chat generates a complete chat response
	Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)

	// ChatStream generates a response incrementally. The channel is closed
	// after a chunk with Done set or a chunk carrying an Error.
	ChatStream(ctx context.Context, messages []chat.ChatMessage) (<-chan StreamChunk, error)
}

// StreamChunk is one fragment of a streamed reply.
type StreamChunk struct {
	Content string
	Done    bool
	Error   error
}

// streamFromChat adapts a non-streaming call into a one-fragment stream for
// backends without native streaming.
func streamFromChat(ctx context.Context, messages []chat.ChatMessage, call func(context.Context, []chat.ChatMessage) (*chat.ChatResponse, error)) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 2)
	go func() {
		defer close(ch)
		resp, err := call(ctx, messages)
		if err != nil {
			ch <- StreamChunk{Error: err}
			return
		}
		ch <- StreamChunk{Content: resp.Message}
		ch <- StreamChunk{Done: true}
	}()
	return ch, nil
}

// sendChunk delivers a chunk unless ctx is cancelled first.
func sendChunk(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
