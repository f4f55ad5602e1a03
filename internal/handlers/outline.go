package handlers

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/story-coach/internal/workflow"
	"github.com/yuin/goldmark"
)

// OutlineHandler renders the consolidated outline.
// GET /v1/outline?format=markdown|html
type OutlineHandler struct {
	session *workflow.Session
	md      goldmark.Markdown
	logger  *slog.Logger
}

func NewOutlineHandler(session *workflow.Session, logger *slog.Logger) *OutlineHandler {
	return &OutlineHandler{
		session: session,
		md:      goldmark.New(),
		logger:  logger,
	}
}

func (h *OutlineHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, h.logger, http.MethodGet)
		return
	}

	outline := h.session.Outline()

	switch format := r.URL.Query().Get("format"); format {
	case "", "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(outline)); err != nil {
			h.logger.Error("Failed to write outline", "error", err)
		}

	case "html":
		var buf bytes.Buffer
		if err := h.md.Convert([]byte(outline), &buf); err != nil {
			h.logger.Error("Failed to render outline", "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to render outline")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			h.logger.Error("Failed to write outline", "error", err)
		}

	default:
		writeError(w, h.logger, http.StatusBadRequest, "Unsupported format. Use markdown or html.")
	}
}
