package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/story-coach/internal/workflow"
)

// SessionHandler serves the session snapshot and the clear-history intent.
type SessionHandler struct {
	session *workflow.Session
	logger  *slog.Logger
}

func NewSessionHandler(session *workflow.Session, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		session: session,
		logger:  logger,
	}
}

// ServeHTTP handles session requests
// Routes:
// GET  /v1/session       - Snapshot of workflow, transcript and brief
// POST /v1/session/reset - Clear history and start over
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimSuffix(r.URL.Path, "/") {
	case "/v1/session":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, h.logger, http.MethodGet)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, h.session.Snapshot())

	case "/v1/session/reset":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, h.logger, http.MethodPost)
			return
		}
		h.logger.Info("Session reset requested", "remote_addr", r.RemoteAddr)
		h.session.ResetSession(r.Context())
		writeJSON(w, h.logger, http.StatusOK, h.session.Snapshot())

	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}
