package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/story-coach/internal/services/events"
	"github.com/jwebster45206/story-coach/internal/workflow"
	"github.com/redis/go-redis/v9"
)

const keepaliveInterval = 30 * time.Second

// Subscriber opens a subscription to a workflow's event channel.
type Subscriber interface {
	Subscribe(ctx context.Context, workflowID uuid.UUID) *redis.PubSub
}

// EventsHandler handles Server-Sent Events (SSE) for workflow observers
type EventsHandler struct {
	subscriber Subscriber
	session    *workflow.Session
	logger     *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(subscriber Subscriber, session *workflow.Session, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		subscriber: subscriber,
		session:    session,
		logger:     logger,
	}
}

// ServeHTTP handles SSE requests for workflow events
// GET /v1/events              - events of the current workflow
// GET /v1/events/{workflowID} - events of a specific workflow
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, h.logger, http.MethodGet)
		return
	}

	workflowID := h.session.WorkflowID()
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(pathParts) == 2 && pathParts[0] == "v1" && pathParts[1] == "events":
	case len(pathParts) == 3 && pathParts[0] == "v1" && pathParts[1] == "events":
		id, err := uuid.Parse(pathParts[2])
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid workflow ID format.")
			return
		}
		workflowID = id
	default:
		writeError(w, h.logger, http.StatusBadRequest, "Invalid path. Expected /v1/events or /v1/events/{workflowID}")
		return
	}

	pubsub := h.subscriber.Subscribe(r.Context(), workflowID)
	defer func() {
		if err := pubsub.Close(); err != nil {
			h.logger.Error("Failed to close pubsub", "error", err)
		}
	}()

	// Wait for the subscription to be confirmed so no event is missed after "connected".
	if _, err := pubsub.Receive(r.Context()); err != nil {
		h.logger.Error("Failed to subscribe to workflow events", "error", err, "workflow_id", workflowID)
		writeError(w, h.logger, http.StatusServiceUnavailable, "Event stream unavailable.")
		return
	}

	h.logger.Info("SSE connection established",
		"workflow_id", workflowID.String(),
		"remote_addr", r.RemoteAddr)

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := sendSSE(w, "connected", map[string]interface{}{
		"workflow_id": workflowID.String(),
		"message":     "Connected to event stream",
	}); err != nil {
		h.logger.Warn("Failed to send connected event", "error", err)
		return
	}

	msgChan := pubsub.Channel()

	keepaliveTicker := time.NewTicker(keepaliveInterval)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected", "workflow_id", workflowID.String())
			return

		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			var event events.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.logger.Error("Failed to unmarshal event", "error", err, "payload", msg.Payload)
				continue
			}
			if err := sendSSE(w, string(event.Type), event); err != nil {
				h.logger.Warn("Failed to forward event", "error", err)
				return
			}

		case <-keepaliveTicker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				h.logger.Error("Failed to write keepalive", "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}
