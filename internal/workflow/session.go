package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/story-coach/internal/conversation"
	"github.com/jwebster45206/story-coach/internal/services/events"
	"github.com/jwebster45206/story-coach/pkg/brief"
	"github.com/jwebster45206/story-coach/pkg/chat"
	"github.com/jwebster45206/story-coach/pkg/prompts"
	"github.com/jwebster45206/story-coach/pkg/state"
	"github.com/jwebster45206/story-coach/pkg/textfilter"
)

var (
	// ErrStageNotReached is returned when completing a stage the workflow has not arrived at.
	ErrStageNotReached = errors.New("stage has not been reached yet")

	// ErrInvalidStage is returned for unknown stages and for the terminal stage.
	ErrInvalidStage = errors.New("invalid stage")

	// ErrInvalidMessage is returned for empty or oversized student messages.
	ErrInvalidMessage = errors.New("invalid message")
)

// Session is one student's guided exercise. It exclusively owns the workflow
// state, the visible transcript and the brief. Every intent runs under the
// session lock.
type Session struct {
	mu sync.Mutex

	gateway   *conversation.Gateway
	rules     string
	publisher events.Publisher
	profanity *textfilter.ProfanityFilter
	logger    *slog.Logger

	state      *state.WorkflowState
	transcript *chat.Transcript
	brief      brief.Brief // accepted brief; zero until one passes validation
	draft      brief.Brief // last submitted values, kept for editing
}

// NewSession creates a session whose conversations are opened with rules as
// the system instruction. A nil publisher discards events.
func NewSession(gateway *conversation.Gateway, rules string, publisher events.Publisher, logger *slog.Logger) *Session {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Session{
		gateway:    gateway,
		rules:      rules,
		publisher:  publisher,
		profanity:  textfilter.NewProfanityFilter(),
		logger:     logger,
		state:      state.NewWorkflowState(),
		transcript: chat.NewTranscript(),
	}
}

// SubmitBrief validates and stores the intake brief. The first accepted brief
// is folded into the conversation once; later submissions only overwrite it.
// A rejected brief returns a *brief.ValidationError and changes nothing but the draft.
func (s *Session) SubmitBrief(ctx context.Context, b brief.Brief) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b = b.Normalize()
	s.draft = b

	if err := b.Validate(); err != nil {
		s.state.Feedback = state.Feedback{Kind: state.FeedbackError, Message: err.Error()}
		s.publish(ctx, events.Event{
			Type: events.EventTypeBriefRejected,
			Data: map[string]interface{}{"problems": err.Error()},
		})
		return err
	}

	s.brief = b
	s.state.BriefValid = true
	s.state.Feedback = state.Feedback{Kind: state.FeedbackSuccess, Message: prompts.BriefSavedNotice}

	if !s.state.BriefPrimed {
		s.state.BriefPrimed = true
		h := s.gateway.Open(s.rules)
		s.gateway.SendHidden(ctx, h, brief.BuildContext(b))
	}

	s.logger.Info("Brief accepted", "workflow_id", s.state.ID, "level", b.Level)
	s.publish(ctx, events.Event{Type: events.EventTypeBriefAccepted})
	return nil
}

// ModifyBrief restarts the workflow so the brief can be edited. The previous
// values stay available as the draft.
func (s *Session) ModifyBrief(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.restart(ctx, "modify")
	s.state.Feedback = state.Feedback{Kind: state.FeedbackInfo, Message: prompts.BriefModifyNotice}
}

// ResetSession discards the transcript, the workflow and the brief, and
// invalidates the backend conversation.
func (s *Session) ResetSession(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draft = brief.Brief{}
	s.restart(ctx, "reset")
	s.state.Feedback = state.Feedback{Kind: state.FeedbackInfo, Message: prompts.SessionResetNotice}
}

// restart replaces the workflow. The reset event goes out on the old
// workflow's channel so its observers learn the new ID.
func (s *Session) restart(ctx context.Context, reason string) {
	next := state.NewWorkflowState()
	s.publish(ctx, events.Event{
		Type: events.EventTypeSessionReset,
		Data: map[string]interface{}{"reason": reason, "new_workflow_id": next.ID.String()},
	})

	// The handle is closed before the transcript is cleared so a reply still
	// streaming on it cannot land in the new workflow.
	old := s.state.ID
	s.gateway.Reset()
	s.transcript.Reset()
	s.brief = brief.Brief{}
	s.state = next

	s.logger.Info("Workflow restarted", "reason", reason, "previous_workflow_id", old, "workflow_id", s.state.ID)
}

// WorkflowID identifies the current workflow.
func (s *Session) WorkflowID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ID
}

// Publish forwards event to the session's publisher, stamping it with the
// current workflow unless it already names one. Failures are logged, not returned.
func (s *Session) Publish(ctx context.Context, event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(ctx, event)
}

// Activate starts the active stage if it has not started yet and returns
// what to display for it.
func (s *Session) Activate(ctx context.Context) (StageView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureUnlocked(); err != nil {
		return StageView{}, err
	}
	s.activate(ctx)
	return viewOf(s.state.ActiveStage), nil
}

// activate sends the active stage's kickoff once and pins its cursor to the
// current end of the transcript.
func (s *Session) activate(ctx context.Context) {
	stage := s.state.ActiveStage
	if !stage.IsWorking() {
		return
	}
	if !s.state.Start(stage, s.transcript.Len()) {
		return
	}

	h := s.gateway.Open(s.rules)
	s.gateway.SendHidden(ctx, h, prompts.Kickoff(stage))

	s.logger.Debug("Stage activated", "stage", stage, "cursor", s.state.Record(stage).Cursor)
	s.publish(ctx, events.Event{Type: events.EventTypeStageActivated, Stage: string(stage)})
}

// Reply is a streaming coach reply tagged with the workflow it was sent in.
type Reply struct {
	*conversation.Reply
	WorkflowID uuid.UUID
}

// SendMessage forwards a student message within the active stage. The reply
// must be consumed by the caller; it records the assistant turn when it ends.
func (s *Session) SendMessage(ctx context.Context, text string) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureUnlocked(); err != nil {
		return nil, err
	}
	req := chat.ChatRequest{Message: text}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	s.activate(ctx)
	h := s.gateway.Open(s.rules)
	reply, err := s.gateway.SendVisible(ctx, h, s.transcript, text)
	if err != nil {
		return nil, err
	}
	return &Reply{Reply: reply, WorkflowID: s.state.ID}, nil
}

// LatestUserInputSince returns the most recent student turn recorded during
// stage, or "" if there is none.
func (s *Session) LatestUserInputSince(stage state.Stage) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestUserInputSince(stage)
}

func (s *Session) latestUserInputSince(stage state.Stage) string {
	rec := s.state.Record(stage)
	if rec == nil || !rec.Started {
		return ""
	}

	turns := s.transcript.SliceFrom(rec.Cursor)
	// Turns after the next stage began belong to that stage.
	if next := s.state.Record(stage.Next()); next != nil && next.Started && next.Cursor >= rec.Cursor {
		if limit := next.Cursor - rec.Cursor; limit < len(turns) {
			turns = turns[:limit]
		}
	}

	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == chat.ChatRoleUser {
			return turns[i].Content
		}
	}
	return ""
}

// CompletionResult describes the outcome of a completion request.
type CompletionResult struct {
	Stage    state.Stage    `json:"stage"`
	Accepted bool           `json:"accepted"`
	Summary  string         `json:"summary,omitempty"`
	Active   state.Stage    `json:"active_stage"`
	Feedback state.Feedback `json:"feedback"`
}

// CompleteStage consolidates the student's latest input for stage and, if it
// is acceptable, saves the summary and advances the workflow. An empty stage
// selects the active one. Gibberish input is reported through the result,
// not as an error. Completing a stage that is already complete refreshes its
// summary without moving the workflow.
func (s *Session) CompleteStage(ctx context.Context, stage state.Stage) (*CompletionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureUnlocked(); err != nil {
		return nil, err
	}
	if stage == "" {
		stage = s.state.ActiveStage
	}
	if !stage.IsWorking() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}
	if !s.state.Reached(stage) {
		return nil, fmt.Errorf("%w: %s", ErrStageNotReached, stage)
	}
	if stage == s.state.ActiveStage {
		s.activate(ctx)
	}

	latest := s.latestUserInputSince(stage)
	if textfilter.IsGibberish(latest) {
		s.state.Feedback = state.Feedback{Kind: state.FeedbackError, Message: prompts.StageRejected(stage)}
		s.logger.Info("Stage completion rejected", "stage", stage)
		s.publish(ctx, events.Event{Type: events.EventTypeStageRejected, Stage: string(stage)})
		return s.result(stage, false), nil
	}

	recompleted := s.state.Record(stage).Completed
	summary := s.consolidate(ctx, stage, latest)
	s.state.Complete(stage, summary)

	msg := prompts.StageCompleted(stage)
	if recompleted {
		msg = prompts.StageUpdated(stage)
	}
	s.state.Feedback = state.Feedback{Kind: state.FeedbackSuccess, Message: msg}

	s.logger.Info("Stage completed", "stage", stage, "active_stage", s.state.ActiveStage, "recompleted", recompleted)
	s.publish(ctx, events.Event{
		Type:  events.EventTypeStageCompleted,
		Stage: string(stage),
		Data: map[string]interface{}{
			"summary":      summary,
			"active_stage": string(s.state.ActiveStage),
		},
	})
	return s.result(stage, true), nil
}

func (s *Session) result(stage state.Stage, accepted bool) *CompletionResult {
	return &CompletionResult{
		Stage:    stage,
		Accepted: accepted,
		Summary:  s.state.Record(stage).Summary,
		Active:   s.state.ActiveStage,
		Feedback: s.state.Feedback,
	}
}

// publish hands the event to the publisher. Events without a workflow get the current one.
func (s *Session) publish(ctx context.Context, event events.Event) {
	if event.WorkflowID == "" {
		event.WorkflowID = s.state.ID.String()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish workflow event", "event_type", event.Type, "error", err)
	}
}
