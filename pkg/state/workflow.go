package state

import (
	"github.com/google/uuid"
)

// StageRecord tracks one stage's progress.
// Cursor is the transcript length when the stage's kickoff was sent;
// only turns at index >= Cursor count as input for the stage.
type StageRecord struct {
	Started   bool   `json:"started"`
	Completed bool   `json:"completed"`
	Summary   string `json:"summary,omitempty"`
	Cursor    int    `json:"cursor"`
}

// FeedbackKind classifies a user-visible notice.
type FeedbackKind string

const (
	FeedbackSuccess FeedbackKind = "success"
	FeedbackError   FeedbackKind = "error"
	FeedbackInfo    FeedbackKind = "info"
)

// Feedback is the latest notice shown next to the workflow.
type Feedback struct {
	Kind    FeedbackKind `json:"kind,omitempty"`
	Message string       `json:"message,omitempty"`
}

// WorkflowState is the progress of one guided exercise.
type WorkflowState struct {
	ID          uuid.UUID              `json:"id"`
	ActiveStage Stage                  `json:"active_stage"`
	Records     map[Stage]*StageRecord `json:"records"`
	BriefValid  bool                   `json:"brief_valid"`
	BriefPrimed bool                   `json:"brief_primed"` // brief context already folded into the conversation
	Feedback    Feedback               `json:"feedback,omitempty"`
}

// NewWorkflowState returns a fresh workflow positioned at the first stage.
func NewWorkflowState() *WorkflowState {
	ws := &WorkflowState{
		ID:          uuid.New(),
		ActiveStage: Stages[0],
		Records:     make(map[Stage]*StageRecord, len(Stages)),
	}
	for _, s := range Stages {
		ws.Records[s] = &StageRecord{}
	}
	return ws
}

// Record returns the record for s, or nil for Done and unknown stages.
func (ws *WorkflowState) Record(s Stage) *StageRecord {
	return ws.Records[s]
}

// Start marks s as started at cursor. It reports false, leaving the record
// untouched, if s was already started or is not a working stage.
func (ws *WorkflowState) Start(s Stage, cursor int) bool {
	rec := ws.Record(s)
	if rec == nil || rec.Started {
		return false
	}
	rec.Started = true
	rec.Cursor = cursor
	return true
}

// Complete stores the summary for s and marks it completed. When s is the
// active stage the workflow advances; re-completing an earlier stage never moves it.
func (ws *WorkflowState) Complete(s Stage, summary string) {
	rec := ws.Record(s)
	if rec == nil {
		return
	}
	rec.Started = true
	rec.Completed = true
	rec.Summary = summary
	if s == ws.ActiveStage {
		ws.ActiveStage = s.Next()
	}
}

// Reached reports whether the workflow has arrived at s.
func (ws *WorkflowState) Reached(s Stage) bool {
	return s == ws.ActiveStage || s.Before(ws.ActiveStage)
}

// Done reports whether every stage is complete.
func (ws *WorkflowState) Done() bool {
	return ws.ActiveStage == StageDone
}

// Summaries returns the non-empty summaries keyed by stage.
func (ws *WorkflowState) Summaries() map[Stage]string {
	out := make(map[Stage]string)
	for _, s := range Stages {
		if rec := ws.Record(s); rec != nil && rec.Summary != "" {
			out[s] = rec.Summary
		}
	}
	return out
}

// DeepCopy returns a copy that shares no records with ws.
func (ws *WorkflowState) DeepCopy() *WorkflowState {
	cp := *ws
	cp.Records = make(map[Stage]*StageRecord, len(ws.Records))
	for s, rec := range ws.Records {
		r := *rec
		cp.Records[s] = &r
	}
	return &cp
}
