package chat

import (
	"fmt"
	"strings"
)

// MaxMessageLength caps a single student message.
const MaxMessageLength = 4000

// ChatRequest represents a chat message sent by the student to the story-coach api.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse represents a chat reply returned by an LLM service or the api.
type ChatResponse struct {
	Message     string        `json:"message,omitempty"`
	ChatHistory []ChatMessage `json:"chat_history,omitempty"` // Visible transcript
	Error       string        `json:"error,omitempty"`
}

const (
	ChatRoleUser   = "user"      // Student
	ChatRoleAgent  = "assistant" // Coach
	ChatRoleSystem = "system"    // Steering instructions, never shown
)

// ChatMessage represents a single message in a conversation.
// The same shape is used for transcript turns and for messages sent to the LLM.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

func (cr *ChatRequest) Validate() error {
	if strings.TrimSpace(cr.Message) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if len(cr.Message) > MaxMessageLength {
		return fmt.Errorf("message exceeds maximum length of %d characters", MaxMessageLength)
	}
	return nil
}
