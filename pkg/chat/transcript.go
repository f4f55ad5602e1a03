package chat

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidRole is returned when a transcript turn is neither a user nor an assistant turn.
var ErrInvalidRole = errors.New("transcript turns must be user or assistant")

// Transcript is the ordered, append-only log of visible conversation turns.
// Reads return copies; callers never alias the underlying slice.
type Transcript struct {
	mu    sync.RWMutex
	turns []ChatMessage
}

func NewTranscript() *Transcript {
	return &Transcript{turns: make([]ChatMessage, 0)}
}

// Append adds a turn at the end of the transcript.
func (t *Transcript) Append(turn ChatMessage) error {
	if turn.Role != ChatRoleUser && turn.Role != ChatRoleAgent {
		return fmt.Errorf("%w: got %q", ErrInvalidRole, turn.Role)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, turn)
	return nil
}

// All returns every turn in insertion order.
func (t *Transcript) All() []ChatMessage {
	return t.SliceFrom(0)
}

// SliceFrom returns the turns at index >= from. Out of range indexes yield an empty slice.
func (t *Transcript) SliceFrom(from int) []ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if from < 0 {
		from = 0
	}
	if from >= len(t.turns) {
		return []ChatMessage{}
	}
	out := make([]ChatMessage, len(t.turns)-from)
	copy(out, t.turns[from:])
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Reset clears the transcript. It is the only destructive operation.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = make([]ChatMessage, 0)
}
