package workflow

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/story-coach/pkg/brief"
	"github.com/jwebster45206/story-coach/pkg/chat"
	"github.com/jwebster45206/story-coach/pkg/prompts"
	"github.com/jwebster45206/story-coach/pkg/state"
)

// Snapshot is a read-only copy of the session for display surfaces.
type Snapshot struct {
	Workflow   *state.WorkflowState `json:"workflow"`
	Transcript []chat.ChatMessage   `json:"transcript"`
	Brief      brief.Brief          `json:"brief"`
	Stage      StageView            `json:"stage"`
}

// StageView is what a display surface renders for the active stage.
type StageView struct {
	Stage  state.Stage `json:"stage"`
	Title  string      `json:"title"`
	Prompt string      `json:"prompt"`
	Footer string      `json:"footer"`
}

// Snapshot returns a deep copy of the session state. Brief holds the latest
// submitted values, accepted or not.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Workflow:   s.state.DeepCopy(),
		Transcript: s.transcript.All(),
		Brief:      s.draft,
		Stage:      viewOf(s.state.ActiveStage),
	}
}

func viewOf(stage state.Stage) StageView {
	return StageView{
		Stage:  stage,
		Title:  stage.Title(),
		Prompt: prompts.StagePrompt(stage),
		Footer: prompts.Footer,
	}
}

// Outline renders the accepted brief and the stage summaries as Markdown.
func (s *Session) Outline() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("# Story Outline\n\n")

	sb.WriteString("## Key Pieces\n\n")
	for _, f := range brief.Fields {
		v := s.brief.Value(f)
		if v == "" {
			v = "_(empty)_"
		}
		fmt.Fprintf(&sb, "- **%s:** %s\n", f, v)
	}

	for _, stage := range state.Stages {
		fmt.Fprintf(&sb, "\n## %s\n\n", stage.Title())
		rec := s.state.Record(stage)
		if rec == nil || rec.Summary == "" {
			sb.WriteString("_Not completed yet._\n")
			continue
		}
		sb.WriteString(rec.Summary)
		sb.WriteString("\n")
	}
	return sb.String()
}
