package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/story-coach/pkg/chat"
)

// MockLLMAPI is a mock implementation of LLMService for testing
type MockLLMAPI struct {
	InitModelFunc  func(ctx context.Context, modelName string) error
	ChatFunc       func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)
	ChatStreamFunc func(ctx context.Context, messages []chat.ChatMessage) (<-chan StreamChunk, error)

	// Track calls for testing
	InitModelCalls  []string
	ChatCalls       []ChatCall
	ChatStreamCalls []ChatCall

	mu sync.Mutex // protects all fields above
}

// ChatCall records the messages passed to one Chat or ChatStream call.
type ChatCall struct {
	Messages []chat.ChatMessage
}

// NewMockLLMAPI creates a new mock LLM service
func NewMockLLMAPI() *MockLLMAPI {
	return &MockLLMAPI{
		InitModelCalls:  make([]string, 0),
		ChatCalls:       make([]ChatCall, 0),
		ChatStreamCalls: make([]ChatCall, 0),
	}
}

// InitModel mocks model initialization
func (m *MockLLMAPI) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	m.InitModelCalls = append(m.InitModelCalls, modelName)
	fn := m.InitModelFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, modelName)
	}
	return nil
}

// Chat mocks a complete response
func (m *MockLLMAPI) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, ChatCall{Messages: cloneMessages(messages)})
	fn := m.ChatFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages)
	}
	return &chat.ChatResponse{
		Message: "Mock response",
	}, nil
}

// ChatStream mocks a streamed response. By default it streams "Mock response" in two fragments.
func (m *MockLLMAPI) ChatStream(ctx context.Context, messages []chat.ChatMessage) (<-chan StreamChunk, error) {
	m.mu.Lock()
	m.ChatStreamCalls = append(m.ChatStreamCalls, ChatCall{Messages: cloneMessages(messages)})
	fn := m.ChatStreamFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages)
	}
	return scriptedStream(ctx, []string{"Mock ", "response"}, nil), nil
}

// Reset clears all call tracking
func (m *MockLLMAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelCalls = make([]string, 0)
	m.ChatCalls = make([]ChatCall, 0)
	m.ChatStreamCalls = make([]ChatCall, 0)
}

// SetInitModelError sets up the mock to return an error on InitModel
func (m *MockLLMAPI) SetInitModelError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelFunc = func(ctx context.Context, modelName string) error {
		return err
	}
}

// SetChatResponse sets up the mock to return text from Chat
func (m *MockLLMAPI) SetChatResponse(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
		return &chat.ChatResponse{Message: text}, nil
	}
}

// SetChatError sets up the mock to return an error on Chat
func (m *MockLLMAPI) SetChatError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
		return nil, err
	}
}

// SetStreamResponse sets up the mock to stream the given fragments
func (m *MockLLMAPI) SetStreamResponse(fragments ...string) {
	m.SetStreamError(fragments, nil)
}

// SetStreamError sets up the mock to stream fragments and then fail with err
func (m *MockLLMAPI) SetStreamError(fragments []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatStreamFunc = func(ctx context.Context, messages []chat.ChatMessage) (<-chan StreamChunk, error) {
		return scriptedStream(ctx, fragments, err), nil
	}
}

// SetStreamStartError sets up the mock to fail before any fragment is produced
func (m *MockLLMAPI) SetStreamStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatStreamFunc = func(ctx context.Context, messages []chat.ChatMessage) (<-chan StreamChunk, error) {
		return nil, err
	}
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockLLMAPI) GetCalls() ([]ChatCall, []ChatCall) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chatCalls := make([]ChatCall, len(m.ChatCalls))
	copy(chatCalls, m.ChatCalls)

	streamCalls := make([]ChatCall, len(m.ChatStreamCalls))
	copy(streamCalls, m.ChatStreamCalls)

	return chatCalls, streamCalls
}

func scriptedStream(ctx context.Context, fragments []string, err error) <-chan StreamChunk {
	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		for _, f := range fragments {
			if !sendChunk(ctx, ch, StreamChunk{Content: f}) {
				return
			}
		}
		if err != nil {
			sendChunk(ctx, ch, StreamChunk{Error: err})
			return
		}
		sendChunk(ctx, ch, StreamChunk{Done: true})
	}()
	return ch
}

func cloneMessages(messages []chat.ChatMessage) []chat.ChatMessage {
	out := make([]chat.ChatMessage, len(messages))
	copy(out, messages)
	return out
}
