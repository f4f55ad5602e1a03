package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/story-coach/internal/workflow"
	"github.com/jwebster45206/story-coach/pkg/state"
)

// CompleteStageRequest names the stage to complete. Empty means the active stage.
type CompleteStageRequest struct {
	Stage string `json:"stage,omitempty"`
}

// StageHandler activates and completes outline stages.
type StageHandler struct {
	session *workflow.Session
	logger  *slog.Logger
}

func NewStageHandler(session *workflow.Session, logger *slog.Logger) *StageHandler {
	return &StageHandler{
		session: session,
		logger:  logger,
	}
}

// ServeHTTP handles stage requests
// Routes:
// GET  /v1/stage          - Activate and describe the active stage
// POST /v1/stage/complete - Consolidate and complete a stage
func (h *StageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimSuffix(r.URL.Path, "/") {
	case "/v1/stage":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, h.logger, http.MethodGet)
			return
		}
		view, err := h.session.Activate(r.Context())
		if err != nil {
			writeWorkflowError(w, h.logger, err)
			return
		}
		writeJSON(w, h.logger, http.StatusOK, view)

	case "/v1/stage/complete":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, h.logger, http.MethodPost)
			return
		}
		h.handleComplete(w, r)

	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *StageHandler) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req CompleteStageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.Warn("Invalid stage completion body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with optional 'stage' field.")
		return
	}

	var stage state.Stage
	if req.Stage != "" {
		parsed, err := state.ParseStage(req.Stage)
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		stage = parsed
	}

	result, err := h.session.CompleteStage(r.Context(), stage)
	if err != nil {
		writeWorkflowError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if !result.Accepted {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, h.logger, status, result)
}
