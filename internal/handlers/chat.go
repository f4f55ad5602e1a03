package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/story-coach/internal/logger"
	"github.com/jwebster45206/story-coach/internal/middleware"
	"github.com/jwebster45206/story-coach/internal/services/events"
	"github.com/jwebster45206/story-coach/internal/workflow"
	"github.com/jwebster45206/story-coach/pkg/chat"
)

// ChunkEvent is the payload of a chat.chunk Server-Sent Event.
type ChunkEvent struct {
	Content string `json:"content"`
}

// ChatHandler streams coach replies as Server-Sent Events.
type ChatHandler struct {
	session *workflow.Session
	logger  *slog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(session *workflow.Session, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		session: session,
		logger:  logger,
	}
}

// ServeHTTP handles POST /v1/chat. Fragments are sent as chat.chunk events;
// a final chat.done event carries the recorded assistant turn and the transcript.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, h.logger, http.MethodPost)
		return
	}

	requestID := middleware.RequestID(r.Context())
	log := logger.WithRequestID(h.logger, requestID)
	log.Info("Chat endpoint accessed", "remote_addr", r.RemoteAddr)

	var request chat.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		log.Warn("Invalid request body", "error", err)
		writeError(w, log, http.StatusBadRequest, "Invalid request body. Expected JSON with 'message' field.")
		return
	}

	reply, err := h.session.SendMessage(r.Context(), request.Message)
	if err != nil {
		writeWorkflowError(w, log, err)
		return
	}

	// Publishing continues even if the client goes away mid-reply. Events stay
	// on the workflow the message was sent in, even across a reset.
	pubCtx := context.WithoutCancel(r.Context())
	workflowID := reply.WorkflowID.String()

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	for fragment := range reply.Fragments() {
		h.session.Publish(pubCtx, events.Event{
			Type:       events.EventTypeChatChunk,
			WorkflowID: workflowID,
			RequestID:  requestID,
			Data:       map[string]interface{}{"content": fragment},
		})
		if err := sendSSE(w, string(events.EventTypeChatChunk), ChunkEvent{Content: fragment}); err != nil {
			log.Warn("Client stopped receiving reply", "error", err)
			break
		}
	}
	<-reply.Done()

	done := chat.ChatResponse{
		Message:     reply.Turn(),
		ChatHistory: h.session.Snapshot().Transcript,
	}
	if err := reply.Err(); err != nil {
		logger.WithError(log, err).Warn("Reply ended with an error")
		done.Error = err.Error()
	}

	h.session.Publish(pubCtx, events.Event{
		Type:       events.EventTypeChatDone,
		WorkflowID: workflowID,
		RequestID:  requestID,
		Data:       map[string]interface{}{"message": done.Message, "error": done.Error},
	})
	if err := sendSSE(w, string(events.EventTypeChatDone), done); err != nil {
		log.Warn("Failed to send chat.done", "error", err)
	}
}
