// Package llmclient adapts third-party model SDKs to a single narrow
// capability: turn an ordered content block list into raw text. Callers
// never see provider-specific request/response shapes.
package llmclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/supervertaler/supervertaler/internal/promptctx"
)

var (
	ErrModelNotInitialized = errors.New("llmclient: model not initialized")
	ErrEmptyResponse       = errors.New("llmclient: provider returned no content")
)

// ProviderHint tells the orchestrator which token-budget and chunking
// behaviour a client needs without it knowing the concrete type.
type ProviderHint string

const (
	ProviderOpenAI    ProviderHint = "openai"
	ProviderAnthropic ProviderHint = "anthropic"
	ProviderGemini    ProviderHint = "gemini"
	ProviderGeneric   ProviderHint = "generic"
)

// Client is the single capability every provider adapter implements.
type Client interface {
	Generate(ctx context.Context, blocks []promptctx.Block) (string, error)
	ProviderHint() ProviderHint
	ModelName() string
}

// blocksToText joins the text blocks of a list with blank lines, dropping
// image blocks. None of the adapters in this package calls it.
func blocksToText(blocks []promptctx.Block) string {
	var out string
	for _, b := range blocks {
		if b.Kind == promptctx.KindText {
			if out != "" {
				out += "\n\n"
			}
			out += b.Text
		}
	}
	return out
}

// OpenAIClient adapts sashabaranov/go-openai to the Client capability,
// supporting vision models via inline base64 image parts.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

func NewOpenAIClient(baseURL, model, apiKey string, logger *slog.Logger) *OpenAIClient {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	var client *openai.Client
	if baseURL != "" {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = baseURL
		client = openai.NewClientWithConfig(cfg)
	} else {
		client = openai.NewClient(apiKey)
	}

	return &OpenAIClient{client: client, model: model, logger: logger}
}

func (c *OpenAIClient) ProviderHint() ProviderHint { return ProviderOpenAI }
func (c *OpenAIClient) ModelName() string          { return c.model }

func (c *OpenAIClient) Generate(ctx context.Context, blocks []promptctx.Block) (string, error) {
	if c == nil || c.client == nil {
		return "", ErrModelNotInitialized
	}

	parts := make([]openai.ChatMessagePart, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case promptctx.KindText:
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: b.Text})
		case promptctx.KindImage:
			encoded := base64.StdEncoding.EncodeToString(b.ImageBytes)
			dataURL := fmt.Sprintf("data:%s;base64,%s", b.ImageMimeType, encoded)
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
			})
		}
	}

	c.logger.Info("generate called", "provider", "openai", "model", c.model, "block_count", len(blocks))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		c.logger.Error("generate failed", "provider", "openai", "error", err)
		return "", fmt.Errorf("llmclient: openai call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
