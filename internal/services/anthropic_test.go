package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jwebster45206/story-coach/pkg/chat"
)

func TestNewAnthropicService(t *testing.T) {
	apiKey := "test-api-key"
	modelName := "claude-3-sonnet-20240229"
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := NewAnthropicService(apiKey, modelName, log)

	if service.apiKey != apiKey {
		t.Errorf("Expected API key %s, got %s", apiKey, service.apiKey)
	}

	if service.modelName != modelName {
		t.Errorf("Expected model name %s, got %s", modelName, service.modelName)
	}

	if service.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
}

func TestAnthropicService_InitModel(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewAnthropicService("test-key", "claude-3-sonnet-20240229", log)

	err := service.InitModel(context.Background(), "test-model")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestAnthropicService_ExtractSystemMessage(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewAnthropicService("test-key", "claude-3-sonnet-20240229", log)

	tests := []struct {
		name                   string
		messages               []chat.ChatMessage
		expectedSystem         string
		expectedNonSystemCount int
	}{
		{
			name: "single system message",
			messages: []chat.ChatMessage{
				{Role: chat.ChatRoleSystem, Content: "You are a helpful assistant."},
				{Role: chat.ChatRoleUser, Content: "Hello"},
				{Role: chat.ChatRoleAgent, Content: "Hi there!"},
			},
			expectedSystem:         "You are a helpful assistant.",
			expectedNonSystemCount: 2,
		},
		{
			name: "multiple system messages",
			messages: []chat.ChatMessage{
				{Role: chat.ChatRoleSystem, Content: "You are a helpful assistant."},
				{Role: chat.ChatRoleUser, Content: "Hello"},
				{Role: chat.ChatRoleSystem, Content: "Be concise."},
				{Role: chat.ChatRoleAgent, Content: "Hi there!"},
			},
			expectedSystem:         "You are a helpful assistant.\n\nBe concise.",
			expectedNonSystemCount: 2,
		},
		{
			name: "no system messages",
			messages: []chat.ChatMessage{
				{Role: chat.ChatRoleUser, Content: "Hello"},
				{Role: chat.ChatRoleAgent, Content: "Hi there!"},
			},
			expectedSystem:         "",
			expectedNonSystemCount: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			systemPrompt, nonSystemMessages := service.splitChatMessages(tt.messages)

			if systemPrompt != tt.expectedSystem {
				t.Errorf("Expected system prompt '%s', got '%s'", tt.expectedSystem, systemPrompt)
			}

			if len(nonSystemMessages) != tt.expectedNonSystemCount {
				t.Errorf("Expected %d non-system messages, got %d", tt.expectedNonSystemCount, len(nonSystemMessages))
			}

			// Verify no system messages remain
			for _, msg := range nonSystemMessages {
				if msg.Role == chat.ChatRoleSystem {
					t.Error("Found system message in non-system messages")
				}
			}
		})
	}
}

func TestAnthropicChatRequestStructure(t *testing.T) {
	// Test that the request structure can be marshaled properly
	temp := 0.7
	req := AnthropicChatRequest{
		Model:       "claude-3-sonnet-20240229",
		MaxTokens:   1024,
		Temperature: &temp,
		Messages: []chat.ChatMessage{
			{Role: "user", Content: "Hello"},
		},
		System: "You are a helpful assistant.",
		Stream: false,
	}

	_, err := json.Marshal(req)
	if err != nil {
		t.Errorf("Failed to marshal request: %v", err)
	}
}

func TestAnthropicChatResponseStructure(t *testing.T) {
	// Test that we can unmarshal a typical Anthropic response
	responseJSON := `{
		"id": "msg_01ABC123",
		"type": "message",
		"role": "assistant",
		"content": [
			{
				"type": "text",
				"text": "Hello! How can I help you today?"
			}
		],
		"model": "claude-3-sonnet-20240229",
		"stop_reason": "end_turn",
		"stop_sequence": null,
		"usage": {
			"input_tokens": 10,
			"output_tokens": 20
		}
	}`

	var resp AnthropicChatResponse
	err := json.Unmarshal([]byte(responseJSON), &resp)
	if err != nil {
		t.Errorf("Failed to unmarshal response: %v", err)
	}

	if resp.ID != "msg_01ABC123" {
		t.Errorf("Expected ID 'msg_01ABC123', got '%s'", resp.ID)
	}

	if len(resp.Content) != 1 {
		t.Errorf("Expected 1 content block, got %d", len(resp.Content))
	}

	if resp.Content[0].Text != "Hello! How can I help you today?" {
		t.Errorf("Expected text 'Hello! How can I help you today?', got '%s'", resp.Content[0].Text)
	}
}

func newTestAnthropicService(t *testing.T, handler http.HandlerFunc) *AnthropicService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewAnthropicService("test-key", "claude-test", log)
	service.baseURL = server.URL
	return service
}

func TestAnthropicService_Chat(t *testing.T) {
	service := newTestAnthropicService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected api key header, got %q", r.Header.Get("x-api-key"))
		}
		var req AnthropicChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.System != "rules" {
			t.Errorf("Expected system 'rules', got %q", req.System)
		}
		if req.Stream {
			t.Error("Expected non-streaming request")
		}
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"Hello "},{"type":"text","text":"there"}]}`)
	})

	resp, err := service.Chat(context.Background(), []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: "rules"},
		{Role: chat.ChatRoleUser, Content: "Hi"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Message != "Hello there" {
		t.Errorf("Expected 'Hello there', got %q", resp.Message)
	}
}

func TestAnthropicService_Chat_ErrorStatus(t *testing.T) {
	service := newTestAnthropicService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"type":"rate_limit_error","message":"slow down"}}`)
	})

	_, err := service.Chat(context.Background(), []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "Hi"}})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("Expected status error, got %v", err)
	}
}

func TestAnthropicService_ChatStream(t *testing.T) {
	tests := []struct {
		name        string
		events      []string
		wantContent string
		wantErr     bool
	}{
		{
			name: "text deltas then stop",
			events: []string{
				`{"type":"message_start"}`,
				`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Once "}}`,
				`{"type":"content_block_delta","delta":{"type":"text_delta","text":"upon"}}`,
				`{"type":"message_stop"}`,
			},
			wantContent: "Once upon",
		},
		{
			name: "error event",
			events: []string{
				`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Once"}}`,
				`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			},
			wantContent: "Once",
			wantErr:     true,
		},
		{
			name: "truncated stream",
			events: []string{
				`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Once"}}`,
			},
			wantContent: "Once",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newTestAnthropicService(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				for _, e := range tt.events {
					_, _ = fmt.Fprintf(w, "event: x\ndata: %s\n\n", e)
				}
			})

			ch, err := service.ChatStream(context.Background(), []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "Hi"}})
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			var content strings.Builder
			var streamErr error
			done := false
			for chunk := range ch {
				if chunk.Error != nil {
					streamErr = chunk.Error
					continue
				}
				if chunk.Done {
					done = true
				}
				content.WriteString(chunk.Content)
			}

			if content.String() != tt.wantContent {
				t.Errorf("Expected content %q, got %q", tt.wantContent, content.String())
			}
			if tt.wantErr && streamErr == nil {
				t.Error("Expected stream error, got none")
			}
			if !tt.wantErr && (streamErr != nil || !done) {
				t.Errorf("Expected clean completion, err=%v done=%v", streamErr, done)
			}
		})
	}
}
