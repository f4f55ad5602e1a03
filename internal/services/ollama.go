package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/story-coach/pkg/chat"
)

const (
	ollamaReadyAttempts = 5
	ollamaReadyDelay    = 2 * time.Second
)

// OllamaChatRequest is the body of POST /api/chat.
type OllamaChatRequest struct {
	Model    string             `json:"model"`
	Messages []chat.ChatMessage `json:"messages"`
	Stream   bool               `json:"stream"`
	Options  *OllamaOptions     `json:"options,omitempty"`
}

// OllamaOptions carries the sampling settings Ollama accepts per request.
type OllamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// OllamaChatResponse is one NDJSON line of a streamed reply, or the whole
// reply when streaming is off.
type OllamaChatResponse struct {
	Model   string           `json:"model"`
	Message chat.ChatMessage `json:"message"`
	Done    bool             `json:"done"`
	Error   string           `json:"error,omitempty"`
}

// OllamaService talks to a local Ollama server.
type OllamaService struct {
	baseURL    string
	modelName  string
	options    OllamaOptions
	httpClient *http.Client
	pullClient *http.Client
	readyDelay time.Duration
	logger     *slog.Logger
}

// NewOllamaService creates a new Ollama service instance
func NewOllamaService(baseURL string, modelName string, logger *slog.Logger) *OllamaService {
	return &OllamaService{
		baseURL:   strings.TrimRight(baseURL, "/"),
		modelName: modelName,
		options:   OllamaOptions{Temperature: 1.0, NumPredict: 2048},
		// Streamed replies are bounded by the caller's context, not the client.
		httpClient: &http.Client{},
		pullClient: &http.Client{Timeout: 10 * time.Minute},
		readyDelay: ollamaReadyDelay,
		logger:     logger,
	}
}

// InitModel waits for the server and pulls the model when it is missing.
func (s *OllamaService) InitModel(ctx context.Context, modelName string) error {
	s.logger.Info("Initializing LLM model", "model", modelName)

	models, err := s.waitForReady(ctx)
	if err != nil {
		return fmt.Errorf("ollama service is not ready: %w", err)
	}

	if hasModel(models, modelName) {
		s.logger.Info("Model already available", "model", modelName)
		return nil
	}

	s.logger.Info("Model not found, pulling it", "model", modelName)
	if err := s.pullModel(ctx, modelName); err != nil {
		return fmt.Errorf("failed to pull model: %w", err)
	}
	s.logger.Info("Model pulled successfully", "model", modelName)
	return nil
}

// Chat returns the complete reply in one response.
func (s *OllamaService) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	resp, err := s.postChat(ctx, messages, false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out OllamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", out.Error)
	}
	return &chat.ChatResponse{Message: out.Message.Content}, nil
}

// ChatStream streams the reply. Ollama answers with one JSON object per line
// and marks the last one with done.
func (s *OllamaService) ChatStream(ctx context.Context, messages []chat.ChatMessage) (<-chan StreamChunk, error) {
	resp, err := s.postChat(ctx, messages, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer func() { _ = resp.Body.Close() }()

		dec := json.NewDecoder(resp.Body)
		for {
			var line OllamaChatResponse
			if err := dec.Decode(&line); err != nil {
				if errors.Is(err, io.EOF) {
					err = errors.New("stream ended before done")
				}
				sendChunk(ctx, ch, StreamChunk{Error: fmt.Errorf("failed to read stream: %w", err)})
				return
			}
			if line.Error != "" {
				sendChunk(ctx, ch, StreamChunk{Error: fmt.Errorf("ollama error: %s", line.Error)})
				return
			}
			if line.Message.Content != "" {
				if !sendChunk(ctx, ch, StreamChunk{Content: line.Message.Content}) {
					return
				}
			}
			if line.Done {
				sendChunk(ctx, ch, StreamChunk{Done: true})
				return
			}
		}
	}()

	return ch, nil
}

func (s *OllamaService) postChat(ctx context.Context, messages []chat.ChatMessage, stream bool) (*http.Response, error) {
	body, err := json.Marshal(OllamaChatRequest{
		Model:    s.modelName,
		Messages: messages,
		Stream:   stream,
		Options:  &s.options,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	s.logger.Debug("Making Ollama chat request",
		"model", s.modelName,
		"stream", stream,
		"message_count", len(messages))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		data, _ := io.ReadAll(resp.Body)
		s.logger.Error("Ollama API returned error",
			"status_code", resp.StatusCode,
			"response_body", string(data))
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return resp, nil
}

// listModels returns the names of the models the server has locally.
func (s *OllamaService) listModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// hasModel matches name against the local models. An untagged name matches its ":latest" tag.
func hasModel(models []string, name string) bool {
	if !strings.Contains(name, ":") {
		name += ":latest"
	}
	for _, m := range models {
		if m == name {
			return true
		}
	}
	return false
}

func (s *OllamaService) pullModel(ctx context.Context, modelName string) error {
	body, err := json.Marshal(map[string]interface{}{
		"model":  modelName,
		"stream": false,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.pullClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}
	return nil
}

// waitForReady polls the model list until the server answers or ctx ends.
func (s *OllamaService) waitForReady(ctx context.Context) ([]string, error) {
	var lastErr error
	for attempt := 1; attempt <= ollamaReadyAttempts; attempt++ {
		models, err := s.listModels(ctx)
		if err == nil {
			s.logger.Info("Ollama service is ready")
			return models, nil
		}
		lastErr = err
		s.logger.Debug("Ollama not ready yet", "error", err, "attempt", attempt)

		if attempt == ollamaReadyAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.readyDelay):
		}
	}
	return nil, fmt.Errorf("no answer after %d attempts: %w", ollamaReadyAttempts, lastErr)
}
