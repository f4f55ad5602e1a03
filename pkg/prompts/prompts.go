package prompts

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/story-coach/pkg/state"
)

// DefaultRules is the system instruction used when the rules document cannot be read.
const DefaultRules = "You are InspiraBot. Follow the rules provided by the instructor. Be helpful, friendly, and concise."

// ErrorReplyPrefix marks assistant turns that report a backend failure
// instead of carrying a real reply.
const ErrorReplyPrefix = "⚠️ InspiraBot could not reply: "

// EmptyReplyText is rendered by display surfaces for an assistant turn with no text.
const EmptyReplyText = "_No response text received._"

// Footer is shown beneath every stage prompt.
const Footer = "I can make mistakes—please verify important information."

// User-facing notices for the workflow.
const (
	GateNotice         = "Complete and submit the Key Pieces form to start the Outline."
	BriefSavedNotice   = "Great — form saved. You can now go to Outline."
	BriefModifyNotice  = "✏️ Adjust any field above and press Submit when ready."
	SessionResetNotice = "Chat history cleared."
	OutlineDoneNotice  = "All key pieces are in place. Review your outline below."
)

const (
	consolidationLines  = 3
	consolidationFormat = "Reframe the student's ideas for %s as %d short lines. " +
		"Do not invent new ideas, names, or events. Use only what the student wrote. " +
		"Reply with the lines only, no heading and no commentary.\n\nStudent's ideas:\n%s"
)

// stageKickoffs are the hidden instructions sent once when a stage starts.
var stageKickoffs = map[state.Stage]string{
	state.StageCharacters: "We are now in the Characters stage. Ask the student who the main characters of the story are. " +
		"Help them describe each character with a name, a trait, and a link to the scientific concept. " +
		"Ask one question at a time and do not write the characters for them.",
	state.StageScenario: "We are now in the Scenario stage. Ask the student where and when the story takes place. " +
		"Help them connect the setting to the scientific concept and the chosen genre. " +
		"Ask one question at a time and do not write the scenario for them.",
	state.StageConflict: "We are now in the Conflict stage. Ask the student what problem the characters face and how the " +
		"scientific concept helps resolve it. Ask one question at a time and do not write the conflict for them.",
}

// stagePrompts are the visible instructions rendered above each stage's chat.
var stagePrompts = map[state.Stage]string{
	state.StageCharacters: "Who are the main characters of your story? Describe them to InspiraBot, then press Complete.",
	state.StageScenario:   "Where and when does your story happen? Describe the scenario, then press Complete.",
	state.StageConflict:   "What problem do your characters face, and how does the science help? Describe it, then press Complete.",
}

// Kickoff returns the hidden steering instruction for a stage, or "" for stages without one.
func Kickoff(s state.Stage) string {
	return stageKickoffs[s]
}

// StagePrompt returns the visible instruction for a stage.
func StagePrompt(s state.Stage) string {
	if s == state.StageDone {
		return OutlineDoneNotice
	}
	return stagePrompts[s]
}

// ConsolidationInstruction asks the backend to reframe the student's latest
// input for a stage without adding anything new.
func ConsolidationInstruction(s state.Stage, latest string) string {
	return fmt.Sprintf(consolidationFormat, s.Title(), consolidationLines, strings.TrimSpace(latest))
}

// StageRejected is the feedback shown when the latest input for a stage is gibberish or missing.
func StageRejected(s state.Stage) string {
	return fmt.Sprintf("Please describe your %s in real words before completing this step.", strings.ToLower(s.Title()))
}

// StageCompleted is the feedback shown once a stage summary is saved.
func StageCompleted(s state.Stage) string {
	next := s.Next()
	if next == state.StageDone {
		return fmt.Sprintf("%s saved. Your outline is complete.", s.Title())
	}
	return fmt.Sprintf("%s saved. Next up: %s.", s.Title(), next.Title())
}

// StageUpdated is the feedback shown when an already-completed stage is re-consolidated.
func StageUpdated(s state.Stage) string {
	return fmt.Sprintf("%s summary updated.", s.Title())
}
