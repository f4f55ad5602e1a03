package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/jwebster45206/story-coach/pkg/chat"
)

// Generation settings used by the classroom deployment.
const (
	DefaultGeminiTemperature     = 1.0
	DefaultGeminiTopP            = 1.0
	DefaultGeminiTopK            = 1.0
	DefaultGeminiMaxOutputTokens = 2048
)

// GeminiService implements LLMService for Google Gemini via the genai SDK
type GeminiService struct {
	client    *genai.Client
	modelName string
	search    bool
	logger    *slog.Logger
}

// NewGeminiService creates a Gemini client. Grounding with Google Search is
// enabled when search is true.
func NewGeminiService(ctx context.Context, apiKey string, modelName string, search bool, logger *slog.Logger) (*GeminiService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiService{
		client:    client,
		modelName: modelName,
		search:    search,
		logger:    logger,
	}, nil
}

func (g *GeminiService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

// Chat generates a chat response using Gemini
func (g *GeminiService) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	system, contents := toGeminiContents(messages)

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, g.generateConfig(system))
	if err != nil {
		return nil, fmt.Errorf("gemini generate failed: %w", err)
	}

	return &chat.ChatResponse{
		Message: resp.Text(),
	}, nil
}

// ChatStream streams candidate text from Gemini as it is generated.
func (g *GeminiService) ChatStream(ctx context.Context, messages []chat.ChatMessage) (<-chan StreamChunk, error) {
	system, contents := toGeminiContents(messages)
	config := g.generateConfig(system)

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.modelName, contents, config) {
			if err != nil {
				sendChunk(ctx, ch, StreamChunk{Error: fmt.Errorf("gemini stream failed: %w", err)})
				return
			}
			if text := resp.Text(); text != "" {
				if !sendChunk(ctx, ch, StreamChunk{Content: text}) {
					return
				}
			}
		}
		sendChunk(ctx, ch, StreamChunk{Done: true})
	}()

	return ch, nil
}

func (g *GeminiService) generateConfig(system string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](DefaultGeminiTemperature),
		TopP:            genai.Ptr[float32](DefaultGeminiTopP),
		TopK:            genai.Ptr[float32](DefaultGeminiTopK),
		MaxOutputTokens: DefaultGeminiMaxOutputTokens,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if g.search {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return config
}

// toGeminiContents folds system messages into one instruction and maps the
// remaining turns onto Gemini roles.
func toGeminiContents(messages []chat.ChatMessage) (string, []*genai.Content) {
	var systemParts []string
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case chat.ChatRoleSystem:
			systemParts = append(systemParts, msg.Content)
		case chat.ChatRoleAgent:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	return strings.Join(systemParts, "\n\n"), contents
}
