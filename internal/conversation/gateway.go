package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/story-coach/internal/services"
	"github.com/jwebster45206/story-coach/pkg/chat"
	"github.com/jwebster45206/story-coach/pkg/prompts"
)

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 2 * time.Minute

// openingExchange is the first hidden exchange of a conversation, the brief
// priming. It is always sent, whatever the history limit.
const openingExchange = 2

var (
	// ErrReplyInFlight is returned when a visible send starts while another
	// reply on the same conversation is still streaming.
	ErrReplyInFlight = errors.New("a reply is already in progress for this conversation")

	// ErrHandleClosed is returned for handles invalidated by Reset.
	ErrHandleClosed = errors.New("conversation handle has been reset")
)

// Handle is one live backend conversation. Its system instruction is fixed at
// creation; its history holds every exchange the backend has seen, hidden
// steering messages included.
type Handle struct {
	ID uuid.UUID

	system   string
	mu       sync.Mutex
	history  []chat.ChatMessage
	inFlight bool
	closed   bool
}

// SystemInstruction returns the instruction fixed when the conversation was opened.
func (h *Handle) SystemInstruction() string {
	return h.system
}

// History returns a copy of the exchanges sent to the backend so far.
func (h *Handle) History() []chat.ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]chat.ChatMessage, len(h.history))
	copy(out, h.history)
	return out
}

// snapshot returns the history for a new call, or an error if the handle is unusable.
func (h *Handle) snapshot() ([]chat.ChatMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHandleClosed
	}
	out := make([]chat.ChatMessage, len(h.history))
	copy(out, h.history)
	return out, nil
}

func (h *Handle) remember(user, assistant string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.history = append(h.history,
		chat.ChatMessage{Role: chat.ChatRoleUser, Content: user},
		chat.ChatMessage{Role: chat.ChatRoleAgent, Content: assistant},
	)
}

// Gateway owns the single live conversation with the LLM backend.
type Gateway struct {
	llm          services.LLMService
	logger       *slog.Logger
	timeout      time.Duration
	historyLimit int

	mu     sync.Mutex
	handle *Handle
}

// NewGateway creates a gateway. A non-positive timeout selects DefaultTimeout.
func NewGateway(llm services.LLMService, logger *slog.Logger, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{
		llm:     llm,
		logger:  logger,
		timeout: timeout,
	}
}

// WithHistoryLimit caps the history messages sent per call after the opening
// exchange. Zero sends everything.
func (g *Gateway) WithHistoryLimit(limit int) *Gateway {
	g.historyLimit = limit
	return g
}

// Open returns the live conversation, creating it with systemInstruction if
// none exists. An existing conversation is reused and keeps its original instruction.
func (g *Gateway) Open(systemInstruction string) *Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.handle != nil {
		return g.handle
	}
	if strings.TrimSpace(systemInstruction) == "" {
		systemInstruction = prompts.DefaultRules
	}
	g.handle = &Handle{
		ID:      uuid.New(),
		system:  systemInstruction,
		history: make([]chat.ChatMessage, 0),
	}
	g.logger.Debug("Conversation opened", "conversation_id", g.handle.ID)
	return g.handle
}

// Current returns the live conversation, or nil.
func (g *Gateway) Current() *Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.handle
}

// Reset invalidates the live conversation. The next Open starts a fresh one.
func (g *Gateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.handle == nil {
		return
	}
	g.handle.mu.Lock()
	g.handle.closed = true
	g.handle.mu.Unlock()
	g.logger.Debug("Conversation reset", "conversation_id", g.handle.ID)
	g.handle = nil
}

// SendVisible appends text to the transcript as a user turn and starts
// streaming the backend's reply. The caller must consume the returned Reply
// once, through Fragments or Collect; when it ends exactly one assistant turn
// is appended to the transcript. Backend failures surface as that assistant turn.
func (g *Gateway) SendVisible(ctx context.Context, h *Handle, transcript *chat.Transcript, text string) (*Reply, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHandleClosed
	}
	if h.inFlight {
		h.mu.Unlock()
		return nil, ErrReplyInFlight
	}
	h.inFlight = true
	history := make([]chat.ChatMessage, len(h.history))
	copy(history, h.history)
	h.mu.Unlock()

	if err := transcript.Append(chat.ChatMessage{Role: chat.ChatRoleUser, Content: text}); err != nil {
		h.release()
		return nil, fmt.Errorf("failed to record user turn: %w", err)
	}

	// The stream runs to completion or failure even if the caller goes away.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	reply := &Reply{
		gateway:    g,
		handle:     h,
		transcript: transcript,
		userText:   text,
		ctx:        callCtx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	messages, err := prompts.BuildMessages(h.system, history, text, openingExchange, g.historyLimit)
	if err != nil {
		reply.startErr = err
		return reply, nil
	}

	stream, err := g.llm.ChatStream(callCtx, messages)
	if err != nil {
		reply.startErr = err
		return reply, nil
	}
	reply.stream = stream
	return reply, nil
}

func (h *Handle) release() {
	h.mu.Lock()
	h.inFlight = false
	h.mu.Unlock()
}

// SendHidden steers the backend without touching the transcript. Failures are
// logged and dropped.
func (g *Gateway) SendHidden(ctx context.Context, h *Handle, text string) {
	reply, err := g.complete(ctx, h, text)
	if err != nil {
		g.logger.Warn("Hidden message was not delivered", "conversation_id", h.ID, "error", err)
		return
	}
	h.remember(text, reply)
}

// RequestOneShot returns the backend's complete reply to instruction given the
// conversation so far. Neither the transcript nor the conversation history is
// changed. Failures return "".
func (g *Gateway) RequestOneShot(ctx context.Context, h *Handle, instruction string) string {
	reply, err := g.complete(ctx, h, instruction)
	if err != nil {
		g.logger.Warn("One-shot request failed", "conversation_id", h.ID, "error", err)
		return ""
	}
	return strings.TrimSpace(reply)
}

func (g *Gateway) complete(ctx context.Context, h *Handle, text string) (string, error) {
	history, err := h.snapshot()
	if err != nil {
		return "", err
	}
	messages, err := prompts.BuildMessages(h.system, history, text, openingExchange, g.historyLimit)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.llm.Chat(callCtx, messages)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}
