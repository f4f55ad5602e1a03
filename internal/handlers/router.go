package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/story-coach/internal/workflow"
)

// NewRouter registers the API routes for session. The events stream is
// only served when subscriber is non-nil.
func NewRouter(session *workflow.Session, health *HealthHandler, subscriber Subscriber, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/health", health)

	sessionHandler := NewSessionHandler(session, logger)
	mux.Handle("/v1/session", sessionHandler)
	mux.Handle("/v1/session/", sessionHandler)

	briefHandler := NewBriefHandler(session, logger)
	mux.Handle("/v1/brief", briefHandler)
	mux.Handle("/v1/brief/", briefHandler)

	stageHandler := NewStageHandler(session, logger)
	mux.Handle("/v1/stage", stageHandler)
	mux.Handle("/v1/stage/", stageHandler)

	mux.Handle("/v1/chat", NewChatHandler(session, logger))
	mux.Handle("/v1/outline", NewOutlineHandler(session, logger))

	if subscriber != nil {
		eventsHandler := NewEventsHandler(subscriber, session, logger)
		mux.Handle("/v1/events", eventsHandler)
		mux.Handle("/v1/events/", eventsHandler)
	}

	return mux
}
