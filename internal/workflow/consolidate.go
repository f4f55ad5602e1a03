package workflow

import (
	"context"
	"strings"

	"github.com/jwebster45206/story-coach/pkg/prompts"
	"github.com/jwebster45206/story-coach/pkg/state"
	"github.com/jwebster45206/story-coach/pkg/textfilter"
)

// consolidate asks the backend to restate latest as a short summary for stage.
// It never returns an empty summary for non-empty input: if the backend
// fails or answers with nothing, the student's own words are used.
func (s *Session) consolidate(ctx context.Context, stage state.Stage, latest string) string {
	h := s.gateway.Open(s.rules)
	summary := s.gateway.RequestOneShot(ctx, h, prompts.ConsolidationInstruction(stage, latest))
	if summary == "" {
		s.logger.Info("Using student input as summary", "stage", stage)
		summary = fallbackSummary(latest)
	}
	if textfilter.ShouldFilterForLevel(s.brief.Level) {
		summary = s.profanity.FilterText(summary)
	}
	return summary
}

// fallbackSummary collapses the raw input onto one line.
func fallbackSummary(latest string) string {
	return strings.Join(strings.Fields(latest), " ")
}
