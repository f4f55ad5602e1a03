package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jwebster45206/story-coach/pkg/chat"
)

// OpenAIService implements LLMService using the official openai-go SDK (chat completions).
// Any OpenAI-compatible endpoint can be used by setting baseURL.
type OpenAIService struct {
	client    openai.Client
	modelName string
	logger    *slog.Logger
}

// NewOpenAIService creates an OpenAI chat completions client.
func NewOpenAIService(apiKey string, modelName string, baseURL string, logger *slog.Logger, extra ...option.RequestOption) (*OpenAIService, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if modelName == "" {
		return nil, errors.New("openai model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)

	return &OpenAIService{
		client:    openai.NewClient(opts...),
		modelName: modelName,
		logger:    logger,
	}, nil
}

func (o *OpenAIService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

func (o *OpenAIService) params(messages []chat.ChatMessage) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case chat.ChatRoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case chat.ChatRoleAgent:
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.modelName),
		Messages: msgs,
	}
}

// Chat generates a chat response using OpenAI chat completions
func (o *OpenAIService) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	resp, err := o.client.Chat.Completions.New(ctx, o.params(messages))
	if err != nil {
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty choices")
	}

	return &chat.ChatResponse{
		Message: resp.Choices[0].Message.Content,
	}, nil
}

// ChatStream streams content deltas from OpenAI chat completions.
func (o *OpenAIService) ChatStream(ctx context.Context, messages []chat.ChatMessage) (<-chan StreamChunk, error) {
	stream := o.client.Chat.Completions.NewStreaming(ctx, o.params(messages))

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer func() { _ = stream.Close() }()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if !sendChunk(ctx, ch, StreamChunk{Content: chunk.Choices[0].Delta.Content}) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			sendChunk(ctx, ch, StreamChunk{Error: fmt.Errorf("openai stream failed: %w", err)})
			return
		}
		sendChunk(ctx, ch, StreamChunk{Done: true})
	}()

	return ch, nil
}
