package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/story-coach/internal/conversation"
	"github.com/jwebster45206/story-coach/internal/workflow"
	"github.com/jwebster45206/story-coach/pkg/brief"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// BriefErrorResponse lists the brief fields that need attention.
type BriefErrorResponse struct {
	Error    string        `json:"error"`
	Fields   []brief.Field `json:"fields"`
	Problems []string      `json:"problems"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err, "status", status)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, logger *slog.Logger, allowed string) {
	logger.Warn("Method not allowed",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)
	w.Header().Set("Allow", allowed)
	writeError(w, logger, http.StatusMethodNotAllowed,
		fmt.Sprintf("Method not allowed. Only %s is supported at %s.", allowed, r.URL.Path))
}

// writeWorkflowError maps session errors to status codes. The locked gate is
// flow control and is not logged as a failure.
func writeWorkflowError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *brief.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, logger, http.StatusBadRequest, BriefErrorResponse{
			Error:    verr.Error(),
			Fields:   verr.Fields,
			Problems: verr.Problems,
		})
	case errors.Is(err, workflow.ErrLocked):
		writeError(w, logger, http.StatusLocked, err.Error())
	case errors.Is(err, workflow.ErrInvalidStage), errors.Is(err, workflow.ErrInvalidMessage):
		logger.Warn("Invalid workflow request", "error", err)
		writeError(w, logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, workflow.ErrStageNotReached),
		errors.Is(err, conversation.ErrReplyInFlight),
		errors.Is(err, conversation.ErrHandleClosed):
		logger.Warn("Workflow conflict", "error", err)
		writeError(w, logger, http.StatusConflict, err.Error())
	default:
		logger.Error("Workflow request failed", "error", err)
		writeError(w, logger, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// sendSSE writes one Server-Sent Event and flushes it.
func sendSSE(w http.ResponseWriter, eventType string, data interface{}) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE data: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, dataJSON); err != nil {
		return fmt.Errorf("failed to write SSE event: %w", err)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}
