package conversation

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"

	"github.com/jwebster45206/story-coach/internal/services"
	"github.com/jwebster45206/story-coach/pkg/chat"
	"github.com/jwebster45206/story-coach/pkg/prompts"
)

// errStreamIncomplete reports a stream that closed without a completion marker.
var errStreamIncomplete = errors.New("stream ended before completion")

// Reply is a streaming assistant reply. It is consumed once.
type Reply struct {
	gateway    *Gateway
	handle     *Handle
	transcript *chat.Transcript
	userText   string
	stream     <-chan services.StreamChunk
	startErr   error
	ctx        context.Context
	cancel     context.CancelFunc

	claimed sync.Once
	done    chan struct{}
	text    strings.Builder
	turn    string
	err     error
}

// Fragments yields the reply text as it arrives. Only the first iteration
// yields anything. If the consumer stops early the remaining stream is still
// drained so the transcript receives the complete reply.
func (r *Reply) Fragments() iter.Seq[string] {
	return func(yield func(string) bool) {
		first := false
		r.claimed.Do(func() { first = true })
		if !first {
			return
		}
		defer r.finish()

		if r.startErr != nil {
			r.err = r.startErr
			return
		}

		yielding := true
		completed := false
		for chunk := range r.stream {
			if chunk.Error != nil {
				r.err = chunk.Error
				continue
			}
			if chunk.Done {
				completed = true
			}
			if chunk.Content == "" {
				continue
			}
			r.text.WriteString(chunk.Content)
			if yielding && !yield(chunk.Content) {
				yielding = false
			}
		}

		// Providers stop sending once their context expires, so a timeout can
		// close the stream with neither an error nor a completion marker.
		if r.err == nil && !completed {
			r.err = errStreamIncomplete
			if ctxErr := r.ctx.Err(); ctxErr != nil {
				r.err = ctxErr
			}
		}
	}
}

// Collect consumes the reply and returns the assistant turn that was recorded.
func (r *Reply) Collect() string {
	for range r.Fragments() {
	}
	<-r.done
	return r.turn
}

// Done is closed once the assistant turn has been recorded.
func (r *Reply) Done() <-chan struct{} {
	return r.done
}

// Err reports the backend failure, if any. Valid after Done.
func (r *Reply) Err() error {
	<-r.done
	return r.err
}

// Turn is the recorded assistant turn text. Valid after Done.
func (r *Reply) Turn() string {
	<-r.done
	return r.turn
}

func (r *Reply) finish() {
	defer close(r.done)
	defer r.handle.release()
	r.cancel()

	if r.err != nil {
		r.turn = prompts.ErrorReplyPrefix + r.err.Error()
		r.gateway.logger.Warn("Reply failed", "conversation_id", r.handle.ID, "error", r.err)
	} else {
		r.turn = r.text.String()
		r.handle.remember(r.userText, r.turn)
	}

	// Reset closes the handle under the same lock, so a reset either lands
	// before this check or after the append.
	r.handle.mu.Lock()
	defer r.handle.mu.Unlock()
	if r.handle.closed {
		r.gateway.logger.Debug("Dropping reply of a reset conversation", "conversation_id", r.handle.ID)
		return
	}
	if err := r.transcript.Append(chat.ChatMessage{Role: chat.ChatRoleAgent, Content: r.turn}); err != nil {
		r.gateway.logger.Error("Failed to record assistant turn", "error", err)
	}
}
