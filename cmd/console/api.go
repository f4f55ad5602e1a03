package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jwebster45206/story-coach/internal/handlers"
	"github.com/jwebster45206/story-coach/internal/workflow"
	"github.com/jwebster45206/story-coach/pkg/brief"
	"github.com/jwebster45206/story-coach/pkg/chat"
)

// errLocked is returned when the API refuses an outline action until the brief is accepted.
var errLocked = errors.New("outline is locked")

// briefError carries the field problems of a rejected brief.
type briefError struct {
	resp handlers.BriefErrorResponse
}

func (e *briefError) Error() string {
	return e.resp.Error
}

// apiClient talks to the story-coach HTTP API.
type apiClient struct {
	client  *http.Client
	baseURL string
}

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// do sends body as JSON and decodes a successful response into out.
// Statuses listed in accept are treated as success.
func (c *apiClient) do(ctx context.Context, method, path string, body, out interface{}, accept ...int) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	ok := resp.StatusCode == http.StatusOK
	for _, code := range accept {
		ok = ok || resp.StatusCode == code
	}
	if !ok {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, body []byte) error {
	if status == http.StatusBadRequest {
		var berr handlers.BriefErrorResponse
		if err := json.Unmarshal(body, &berr); err == nil && len(berr.Fields) > 0 {
			return &briefError{resp: berr}
		}
	}

	var errorResp handlers.ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("API returned status %d: %s", status, string(body))
	}
	if status == http.StatusLocked {
		return fmt.Errorf("%w: %s", errLocked, errorResp.Error)
	}
	return errors.New(errorResp.Error)
}

func (c *apiClient) getSession(ctx context.Context) (*workflow.Snapshot, error) {
	var snap workflow.Snapshot
	if err := c.do(ctx, http.MethodGet, "/v1/session", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *apiClient) submitBrief(ctx context.Context, b brief.Brief) (*workflow.Snapshot, error) {
	var snap workflow.Snapshot
	if err := c.do(ctx, http.MethodPost, "/v1/brief", b, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *apiClient) modifyBrief(ctx context.Context) (*workflow.Snapshot, error) {
	var snap workflow.Snapshot
	if err := c.do(ctx, http.MethodPost, "/v1/brief/modify", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *apiClient) resetSession(ctx context.Context) (*workflow.Snapshot, error) {
	var snap workflow.Snapshot
	if err := c.do(ctx, http.MethodPost, "/v1/session/reset", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *apiClient) activateStage(ctx context.Context) (*workflow.StageView, error) {
	var view workflow.StageView
	if err := c.do(ctx, http.MethodGet, "/v1/stage", nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// completeStage returns the result for both accepted and rejected completions.
func (c *apiClient) completeStage(ctx context.Context, stage string) (*workflow.CompletionResult, error) {
	var result workflow.CompletionResult
	req := handlers.CompleteStageRequest{Stage: stage}
	if err := c.do(ctx, http.MethodPost, "/v1/stage/complete", req, &result, http.StatusUnprocessableEntity); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *apiClient) getOutline(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/outline?format=markdown", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp.StatusCode, body)
	}
	return string(body), nil
}

// SSEEvent represents an event from the SSE stream
type SSEEvent struct {
	Type string
	Data string
}

// streamChat posts message and delivers the reply's SSE events to onEvent
// until the stream ends.
func (c *apiClient) streamChat(ctx context.Context, message string, onEvent func(SSEEvent)) error {
	jsonData, err := json.Marshal(chat.ChatRequest{Message: message})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return decodeAPIError(resp.StatusCode, body)
	}
	return readSSE(resp.Body, onEvent)
}

// readSSE parses a text/event-stream body. Comment lines are ignored.
func readSSE(r io.Reader, onEvent func(SSEEvent)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var current SSEEvent

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			// Empty line signals end of event
			if current.Type != "" {
				onEvent(current)
				current = SSEEvent{}
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "event: "):
			current.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}
