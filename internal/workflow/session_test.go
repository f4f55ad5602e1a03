package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-coach/internal/conversation"
	"github.com/jwebster45206/story-coach/internal/services"
	"github.com/jwebster45206/story-coach/internal/services/events"
	"github.com/jwebster45206/story-coach/pkg/brief"
	"github.com/jwebster45206/story-coach/pkg/chat"
	"github.com/jwebster45206/story-coach/pkg/prompts"
	"github.com/jwebster45206/story-coach/pkg/state"
)

const miraText = "A brave girl named Mira and a talking fox named Whisk"

type testSession struct {
	*Session
	llm      *services.MockLLMAPI
	gateway  *conversation.Gateway
	recorder *events.Recorder
}

func newTestSession(t *testing.T) *testSession {
	t.Helper()
	llm := services.NewMockLLMAPI()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := conversation.NewGateway(llm, log, time.Second)
	rec := &events.Recorder{}
	return &testSession{
		Session:  NewSession(gw, "rules", rec, log),
		llm:      llm,
		gateway:  gw,
		recorder: rec,
	}
}

// consolidateWith answers consolidation instructions with summary and every
// other one-shot or hidden message with an acknowledgement.
func consolidateWith(summary string) func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	return func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
		last := messages[len(messages)-1].Content
		if strings.HasPrefix(last, "Reframe the student's ideas") {
			return &chat.ChatResponse{Message: summary}, nil
		}
		return &chat.ChatResponse{Message: "Okay."}, nil
	}
}

func validBrief() brief.Brief {
	return brief.Brief{
		Level:   "Elementary school",
		Concept: "Photosynthesis",
		Genre:   "Fantasy",
		Setting: "Imaginary world",
		Goals:   "Connect to SDG 7",
	}
}

func (ts *testSession) unlock(t *testing.T) {
	t.Helper()
	require.NoError(t, ts.SubmitBrief(context.Background(), validBrief()))
}

func (ts *testSession) say(t *testing.T, text string) string {
	t.Helper()
	reply, err := ts.SendMessage(context.Background(), text)
	require.NoError(t, err)
	return reply.Collect()
}

func hiddenMessages(llm *services.MockLLMAPI) []string {
	chatCalls, _ := llm.GetCalls()
	var out []string
	for _, c := range chatCalls {
		out = append(out, c.Messages[len(c.Messages)-1].Content)
	}
	return out
}

func TestSession_Gate(t *testing.T) {
	ts := newTestSession(t)
	ctx := context.Background()

	assert.ErrorIs(t, ts.EnsureUnlocked(), ErrLocked)
	assert.Equal(t, prompts.GateNotice, ErrLocked.Error())

	_, err := ts.Activate(ctx)
	assert.ErrorIs(t, err, ErrLocked)

	_, err = ts.SendMessage(ctx, "hello")
	assert.ErrorIs(t, err, ErrLocked)

	_, err = ts.CompleteStage(ctx, "")
	assert.ErrorIs(t, err, ErrLocked)

	chatCalls, streamCalls := ts.llm.GetCalls()
	assert.Empty(t, chatCalls)
	assert.Empty(t, streamCalls)
	assert.Equal(t, 0, ts.Snapshot().Workflow.Records[state.StageCharacters].Cursor)
}

func TestSession_SubmitBrief_Invalid(t *testing.T) {
	ts := newTestSession(t)

	b := validBrief()
	b.Genre = "asdasdasd"
	err := ts.SubmitBrief(context.Background(), b)

	var verr *brief.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []brief.Field{brief.FieldGenre}, verr.Fields)

	snap := ts.Snapshot()
	assert.False(t, snap.Workflow.BriefValid)
	assert.False(t, snap.Workflow.BriefPrimed)
	assert.Equal(t, state.FeedbackError, snap.Workflow.Feedback.Kind)
	assert.Equal(t, "asdasdasd", snap.Brief.Genre, "draft keeps submitted values")
	assert.Empty(t, hiddenMessages(ts.llm), "no backend call on validation failure")
	assert.ErrorIs(t, ts.EnsureUnlocked(), ErrLocked)
	assert.Equal(t, []events.EventType{events.EventTypeBriefRejected}, ts.recorder.Types())
}

func TestSession_SubmitBrief_PrimesOnce(t *testing.T) {
	ts := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, ts.SubmitBrief(ctx, validBrief()))

	snap := ts.Snapshot()
	assert.True(t, snap.Workflow.BriefValid)
	assert.True(t, snap.Workflow.BriefPrimed)
	assert.Equal(t, prompts.BriefSavedNotice, snap.Workflow.Feedback.Message)
	assert.Equal(t, []string{brief.BuildContext(validBrief())}, hiddenMessages(ts.llm))
	assert.Empty(t, snap.Transcript, "priming is hidden")

	b := validBrief()
	b.Genre = "Science fiction"
	require.NoError(t, ts.SubmitBrief(ctx, b))

	assert.Len(t, hiddenMessages(ts.llm), 1, "resubmission must not re-prime")
	assert.Equal(t, "Science fiction", ts.Snapshot().Brief.Genre)
}

func TestSession_SubmitBrief_NormalizesFields(t *testing.T) {
	ts := newTestSession(t)

	b := validBrief()
	b.Level = "  Elementary school \n"
	require.NoError(t, ts.SubmitBrief(context.Background(), b))

	assert.Equal(t, "Elementary school", ts.Snapshot().Brief.Level)
}

func TestSession_Activate_CursorSetOnce(t *testing.T) {
	ts := newTestSession(t)
	ts.unlock(t)
	ctx := context.Background()

	view, err := ts.Activate(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.StageCharacters, view.Stage)
	assert.Equal(t, prompts.StagePrompt(state.StageCharacters), view.Prompt)
	assert.Equal(t, prompts.Footer, view.Footer)

	ts.say(t, "Hello there")

	_, err = ts.Activate(ctx)
	require.NoError(t, err)

	rec := ts.Snapshot().Workflow.Records[state.StageCharacters]
	assert.True(t, rec.Started)
	assert.Equal(t, 0, rec.Cursor, "cursor must not move on re-activation")

	kickoffs := 0
	for _, m := range hiddenMessages(ts.llm) {
		if m == prompts.Kickoff(state.StageCharacters) {
			kickoffs++
		}
	}
	assert.Equal(t, 1, kickoffs)
}

func TestSession_SendMessage(t *testing.T) {
	ts := newTestSession(t)
	ts.unlock(t)
	ts.llm.SetStreamResponse("Tell me ", "about Mira.")

	turn := ts.say(t, "I want a hero")

	assert.Equal(t, "Tell me about Mira.", turn)
	assert.Equal(t, []chat.ChatMessage{
		{Role: chat.ChatRoleUser, Content: "I want a hero"},
		{Role: chat.ChatRoleAgent, Content: "Tell me about Mira."},
	}, ts.Snapshot().Transcript)
	assert.True(t, ts.Snapshot().Workflow.Records[state.StageCharacters].Started, "sending activates the stage")

	_, err := ts.SendMessage(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Len(t, ts.Snapshot().Transcript, 2)
}

func TestSession_CompleteStage_Gibberish(t *testing.T) {
	ts := newTestSession(t)
	ts.unlock(t)
	ctx := context.Background()

	ts.say(t, "asdasdasd")
	res, err := ts.CompleteStage(ctx, "")
	require.NoError(t, err)

	assert.False(t, res.Accepted)
	assert.Equal(t, state.StageCharacters, res.Active)
	assert.Equal(t, prompts.StageRejected(state.StageCharacters), res.Feedback.Message)

	snap := ts.Snapshot()
	assert.False(t, snap.Workflow.Records[state.StageCharacters].Completed)
	assert.Equal(t, state.StageCharacters, snap.Workflow.ActiveStage)
	assert.Equal(t, state.FeedbackError, snap.Workflow.Feedback.Kind)
}

func TestSession_CompleteStage_NoInput(t *testing.T) {
	ts := newTestSession(t)
	ts.unlock(t)

	res, err := ts.CompleteStage(context.Background(), state.StageCharacters)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, state.StageCharacters, ts.Snapshot().Workflow.ActiveStage)
}

func TestSession_CompleteStage_FallbackSummary(t *testing.T) {
	ts := newTestSession(t)
	ts.unlock(t)
	ts.llm.ChatFunc = consolidateWith("")

	ts.say(t, miraText)
	res, err := ts.CompleteStage(context.Background(), "")
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.Equal(t, miraText, res.Summary)
	rec := ts.Snapshot().Workflow.Records[state.StageCharacters]
	assert.True(t, rec.Completed)
	assert.Equal(t, miraText, rec.Summary)
	assert.Equal(t, state.StageScenario, res.Active)
}

func TestSession_CompleteStage_BackendFailureFallsBack(t *testing.T) {
	ts := newTestSession(t)
	ts.unlock(t)

	ts.say(t, "  Mira   and\nWhisk the fox  ")
	ts.llm.SetChatError(errors.New("quota exceeded"))

	res, err := ts.CompleteStage(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, "Mira and Whisk the fox", res.Summary)
}

func TestSession_CompleteStage_UsesConsolidation(t *testing.T) {
	ts := newTestSession(t)
	ts.unlock(t)
	ts.llm.ChatFunc = consolidateWith("  Mira: a brave girl.\nWhisk: a talking fox.  ")

	ts.say(t, miraText)
	res, err := ts.CompleteStage(context.Background(), state.StageCharacters)
	require.NoError(t, err)

	assert.Equal(t, "Mira: a brave girl.\nWhisk: a talking fox.", res.Summary)
	assert.Equal(t, prompts.StageCompleted(state.StageCharacters), res.Feedback.Message)

	chatCalls, _ := ts.llm.GetCalls()
	last := chatCalls[len(chatCalls)-1].Messages
	assert.Equal(t, prompts.ConsolidationInstruction(state.StageCharacters, miraText), last[len(last)-1].Content)

	// Consolidation leaves the transcript alone.
	assert.Len(t, ts.Snapshot().Transcript, 2)
}

func TestSession_CompleteStage_FiltersSchoolLevelSummaries(t *testing.T) {
	ts := newTestSession(t)
	ts.unlock(t)
	ts.llm.ChatFunc = consolidateWith("The dragon says damn a lot.")

	ts.say(t, "A grumpy dragon who swears at the sun")
	res, err := ts.CompleteStage(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "The dragon says dang a lot.", res.Summary)
}

func TestSession_CompleteStage_InvalidTargets(t *testing.T) {
	ts := newTestSession(t)
	ts.unlock(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		stage state.Stage
		want  error
	}{
		{"not reached", state.StageConflict, ErrStageNotReached},
		{"terminal stage", state.StageDone, ErrInvalidStage},
		{"unknown stage", state.Stage("epilogue"), ErrInvalidStage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.CompleteStage(ctx, tt.stage)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, state.StageCharacters, ts.Snapshot().Workflow.ActiveStage)
		})
	}
}

func TestSession_StageOrder(t *testing.T) {
	ts := newTestSession(t)
	ts.unlock(t)
	ctx := context.Background()

	inputs := []string{
		miraText,
		"A glowing forest where plants power the village",
		"The sun disappears and the plants cannot make food",
	}

	visited := []state.Stage{ts.Snapshot().Workflow.ActiveStage}
	for _, in := range inputs {
		ts.say(t, in)
		res, err := ts.CompleteStage(ctx, "")
		require.NoError(t, err)
		require.True(t, res.Accepted)
		visited = append(visited, res.Active)
	}

	assert.Equal(t, []state.Stage{state.StageCharacters, state.StageScenario, state.StageConflict, state.StageDone}, visited)
	assert.True(t, ts.Snapshot().Workflow.Done())
	assert.Equal(t, prompts.StageCompleted(state.StageConflict), ts.Snapshot().Workflow.Feedback.Message)

	// Done is terminal.
	_, err := ts.CompleteStage(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidStage)
	view, err := ts.Activate(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.StageDone, view.Stage)
	assert.Equal(t, prompts.OutlineDoneNotice, view.Prompt)
}

func TestSession_Reconsolidate(t *testing.T) {
	ts := newTestSession(t)
	ts.unlock(t)
	ts.llm.ChatFunc = consolidateWith("")
	ctx := context.Background()

	ts.say(t, miraText)
	_, err := ts.CompleteStage(ctx, "")
	require.NoError(t, err)

	ts.say(t, "A glowing forest where plants power the village")

	// Re-completing Characters still reads Characters input, not Scenario input.
	assert.Equal(t, miraText, ts.LatestUserInputSince(state.StageCharacters))

	res, err := ts.CompleteStage(ctx, state.StageCharacters)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, miraText, res.Summary)
	assert.Equal(t, state.StageScenario, res.Active, "re-consolidation never moves the workflow")
	assert.Equal(t, prompts.StageUpdated(state.StageCharacters), res.Feedback.Message)
}

func TestSession_LatestUserInputSince(t *testing.T) {
	ts := newTestSession(t)
	ts.unlock(t)

	assert.Equal(t, "", ts.LatestUserInputSince(state.StageCharacters), "not started")

	_, err := ts.Activate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", ts.LatestUserInputSince(state.StageCharacters), "no input yet")

	ts.say(t, "first idea")
	ts.say(t, "second idea")
	assert.Equal(t, "second idea", ts.LatestUserInputSince(state.StageCharacters))
	assert.Equal(t, "", ts.LatestUserInputSince(state.StageScenario))
	assert.Equal(t, "", ts.LatestUserInputSince(state.StageDone))
}

func TestSession_ResetSession(t *testing.T) {
	ts := newTestSession(t)
	ts.unlock(t)
	ctx := context.Background()

	ts.say(t, miraText)
	before := ts.gateway.Current()
	require.NotNil(t, before)
	oldID := ts.Snapshot().Workflow.ID

	ts.ResetSession(ctx)

	snap := ts.Snapshot()
	assert.Empty(t, snap.Transcript)
	assert.False(t, snap.Workflow.BriefValid)
	assert.NotEqual(t, oldID, snap.Workflow.ID)
	assert.True(t, snap.Brief.IsZero())
	assert.Nil(t, ts.gateway.Current())
	assert.ErrorIs(t, ts.EnsureUnlocked(), ErrLocked)

	ts.unlock(t)
	after := ts.gateway.Current()
	require.NotNil(t, after)
	assert.NotEqual(t, before.ID, after.ID)
	assert.Contains(t, ts.recorder.Types(), events.EventTypeSessionReset)

	for _, e := range ts.recorder.Events() {
		if e.Type == events.EventTypeSessionReset {
			assert.Equal(t, oldID.String(), e.WorkflowID)
			assert.Equal(t, snap.Workflow.ID.String(), e.Data["new_workflow_id"])
		}
	}
	assert.Equal(t, snap.Workflow.ID, ts.WorkflowID())
}

func TestSession_ResetDuringReply(t *testing.T) {
	ts := newTestSession(t)
	ts.unlock(t)
	ctx := context.Background()

	release := make(chan struct{})
	ts.llm.ChatStreamFunc = func(ctx context.Context, _ []chat.ChatMessage) (<-chan services.StreamChunk, error) {
		ch := make(chan services.StreamChunk, 2)
		go func() {
			defer close(ch)
			<-release
			ch <- services.StreamChunk{Content: "Late reply"}
			ch <- services.StreamChunk{Done: true}
		}()
		return ch, nil
	}

	reply, err := ts.SendMessage(ctx, miraText)
	require.NoError(t, err)
	collected := make(chan string, 1)
	go func() { collected <- reply.Collect() }()

	ts.ResetSession(ctx)
	close(release)

	assert.Equal(t, "Late reply", <-collected)
	assert.Empty(t, ts.Snapshot().Transcript)

	ts.unlock(t)
	for _, m := range ts.gateway.Current().History() {
		assert.NotEqual(t, "Late reply", m.Content)
	}
}

func TestSession_ModifyBrief(t *testing.T) {
	ts := newTestSession(t)
	ts.unlock(t)
	ctx := context.Background()

	ts.say(t, miraText)
	_, err := ts.CompleteStage(ctx, "")
	require.NoError(t, err)

	ts.ModifyBrief(ctx)

	snap := ts.Snapshot()
	assert.Equal(t, validBrief(), snap.Brief, "previous values stay as the draft")
	assert.False(t, snap.Workflow.BriefValid)
	assert.False(t, snap.Workflow.BriefPrimed)
	assert.Equal(t, state.StageCharacters, snap.Workflow.ActiveStage)
	assert.Empty(t, snap.Transcript)
	assert.Equal(t, prompts.BriefModifyNotice, snap.Workflow.Feedback.Message)

	// Resubmitting primes the new conversation.
	ts.unlock(t)
	history := ts.gateway.Current().History()
	require.NotEmpty(t, history)
	assert.Equal(t, brief.BuildContext(validBrief()), history[0].Content)
}

func TestSession_Outline(t *testing.T) {
	ts := newTestSession(t)
	ts.unlock(t)
	ts.llm.ChatFunc = consolidateWith("")

	ts.say(t, miraText)
	_, err := ts.CompleteStage(context.Background(), "")
	require.NoError(t, err)

	out := ts.Outline()
	assert.True(t, strings.HasPrefix(out, "# Story Outline\n"))
	assert.Contains(t, out, "- **Genre:** Fantasy\n")
	assert.Contains(t, out, "## Characters\n\n"+miraText+"\n")
	assert.Contains(t, out, "## Scenario\n\n_Not completed yet._\n")
}

func TestSession_EndToEnd(t *testing.T) {
	ts := newTestSession(t)
	ctx := context.Background()

	// Unset brief halts the workflow.
	assert.ErrorIs(t, ts.EnsureUnlocked(), ErrLocked)

	// A valid brief unlocks it and primes the conversation exactly once.
	require.NoError(t, ts.SubmitBrief(ctx, validBrief()))
	assert.True(t, ts.Snapshot().Workflow.BriefValid)
	assert.Equal(t, []string{brief.BuildContext(validBrief())}, hiddenMessages(ts.llm))

	// One message adds one user turn and one assistant turn.
	ts.say(t, "Hi! I want to start.")
	assert.Len(t, ts.Snapshot().Transcript, 2)

	// Gibberish keeps the workflow in Characters.
	ts.say(t, "asdasdasd")
	res, err := ts.CompleteStage(ctx, "")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, state.StageCharacters, ts.Snapshot().Workflow.ActiveStage)

	// Real text advances to Scenario with a summary.
	ts.say(t, miraText)
	res, err = ts.CompleteStage(ctx, "")
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	snap := ts.Snapshot()
	assert.Equal(t, state.StageScenario, snap.Workflow.ActiveStage)
	assert.NotEmpty(t, snap.Workflow.Records[state.StageCharacters].Summary)

	assert.Equal(t, []events.EventType{
		events.EventTypeBriefAccepted,
		events.EventTypeStageActivated,
		events.EventTypeStageRejected,
		events.EventTypeStageCompleted,
	}, ts.recorder.Types())
}
