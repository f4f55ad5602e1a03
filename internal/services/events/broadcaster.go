package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeBriefAccepted  EventType = "brief.accepted"
	EventTypeBriefRejected  EventType = "brief.rejected"
	EventTypeStageActivated EventType = "stage.activated"
	EventTypeStageCompleted EventType = "stage.completed"
	EventTypeStageRejected  EventType = "stage.rejected"
	EventTypeSessionReset   EventType = "session.reset"
	EventTypeChatChunk      EventType = "chat.chunk"
	EventTypeChatDone       EventType = "chat.done"
)

// Event represents a generic event structure
type Event struct {
	Type       EventType              `json:"type"`
	WorkflowID string                 `json:"workflow_id,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	Stage      string                 `json:"stage,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// Publisher delivers workflow events to observers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Channel returns the Pub/Sub channel carrying events for a workflow.
func Channel(workflowID uuid.UUID) string {
	return fmt.Sprintf("story-coach-events:%s", workflowID.String())
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Publish sends an event to the channel of its workflow
func (b *Broadcaster) Publish(ctx context.Context, event Event) error {
	id, err := uuid.Parse(event.WorkflowID)
	if err != nil {
		return fmt.Errorf("invalid workflow id %q: %w", event.WorkflowID, err)
	}
	channel := Channel(id)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)

	return nil
}

// Subscribe listens on a workflow's channel. The caller must close the returned subscription.
func (b *Broadcaster) Subscribe(ctx context.Context, workflowID uuid.UUID) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(workflowID))
}

// NopPublisher discards events. It is used when no event bus is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error {
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
