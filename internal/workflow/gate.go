package workflow

import (
	"errors"

	"github.com/jwebster45206/story-coach/pkg/prompts"
)

// ErrLocked halts access to the stage workflow until a brief is accepted.
// Its message is the notice shown to the student.
var ErrLocked = errors.New(prompts.GateNotice)

// EnsureUnlocked reports ErrLocked while no valid brief has been submitted.
func (s *Session) EnsureUnlocked() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureUnlocked()
}

func (s *Session) ensureUnlocked() error {
	if !s.state.BriefValid {
		return ErrLocked
	}
	return nil
}
