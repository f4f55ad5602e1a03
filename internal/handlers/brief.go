package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/story-coach/internal/workflow"
	"github.com/jwebster45206/story-coach/pkg/brief"
)

// BriefHandler accepts the intake form.
type BriefHandler struct {
	session *workflow.Session
	logger  *slog.Logger
}

func NewBriefHandler(session *workflow.Session, logger *slog.Logger) *BriefHandler {
	return &BriefHandler{
		session: session,
		logger:  logger,
	}
}

// ServeHTTP handles brief requests
// Routes:
// GET  /v1/brief        - Current form values
// POST /v1/brief        - Submit the form
// POST /v1/brief/modify - Restart the workflow keeping the form values
func (h *BriefHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimSuffix(r.URL.Path, "/") {
	case "/v1/brief":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, h.logger, http.StatusOK, h.session.Snapshot().Brief)
		case http.MethodPost:
			h.handleSubmit(w, r)
		default:
			methodNotAllowed(w, r, h.logger, "GET, POST")
		}

	case "/v1/brief/modify":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, h.logger, http.MethodPost)
			return
		}
		h.session.ModifyBrief(r.Context())
		writeJSON(w, h.logger, http.StatusOK, h.session.Snapshot())

	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *BriefHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var b brief.Brief
	if err := decodeJSON(r, &b); err != nil {
		h.logger.Warn("Invalid brief body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON brief.")
		return
	}

	if err := h.session.SubmitBrief(r.Context(), b); err != nil {
		writeWorkflowError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, h.session.Snapshot())
}
