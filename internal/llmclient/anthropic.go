package llmclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/supervertaler/supervertaler/internal/promptctx"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"
)

// AnthropicClient adapts the Anthropic Messages API to the Client
// capability via a hand-rolled HTTP request, matching the style of the
// provider adapters that predate this package.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *slog.Logger
}

func NewAnthropicClient(model, apiKey string, logger *slog.Logger) *AnthropicClient {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return &AnthropicClient{
		apiKey:     apiKey,
		baseURL:    anthropicAPIURL,
		model:      model,
		maxTokens:  4096,
		httpClient: http.DefaultClient,
		logger:     logger,
	}
}

func (c *AnthropicClient) ProviderHint() ProviderHint { return ProviderAnthropic }
func (c *AnthropicClient) ModelName() string          { return c.model }

type anthropicContentPart struct {
	Type   string              `json:"type"`
	Text   string              `json:"text,omitempty"`
	Source *anthropicImgSource `json:"source,omitempty"`
}

type anthropicImgSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicMessage struct {
	Role    string                 `json:"role"`
	Content []anthropicContentPart `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []anthropicContentPart `json:"content"`
	Error   *anthropicErrorBody    `json:"error,omitempty"`
}

type anthropicErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (c *AnthropicClient) Generate(ctx context.Context, blocks []promptctx.Block) (string, error) {
	if c == nil || c.apiKey == "" {
		return "", ErrModelNotInitialized
	}

	parts := make([]anthropicContentPart, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case promptctx.KindText:
			parts = append(parts, anthropicContentPart{Type: "text", Text: b.Text})
		case promptctx.KindImage:
			parts = append(parts, anthropicContentPart{
				Type: "image",
				Source: &anthropicImgSource{
					Type:      "base64",
					MediaType: b.ImageMimeType,
					Data:      base64.StdEncoding.EncodeToString(b.ImageBytes),
				},
			})
		}
	}

	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: parts}},
	}

	c.logger.Info("generate called", "provider", "anthropic", "model", c.model, "block_count", len(blocks))

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llmclient: encoding anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llmclient: building anthropic request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("generate failed", "provider", "anthropic", "error", err)
		return "", fmt.Errorf("llmclient: anthropic call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llmclient: reading anthropic response: %w", err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("llmclient: decoding anthropic response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llmclient: anthropic error: %s", parsed.Error.Message)
	}

	var text string
	for _, part := range parsed.Content {
		if part.Type == "text" {
			text += part.Text
		}
	}
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
