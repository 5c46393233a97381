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

const geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient adapts the Gemini generateContent REST API, following
// the same hand-rolled HTTP shape as AnthropicClient since no Gemini
// SDK is wired into this module's dependency stack.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewGeminiClient(model, apiKey string, logger *slog.Logger) *GeminiClient {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return &GeminiClient{apiKey: apiKey, baseURL: geminiAPIURL, model: model, httpClient: http.DefaultClient, logger: logger}
}

func (c *GeminiClient) ProviderHint() ProviderHint { return ProviderGemini }
func (c *GeminiClient) ModelName() string          { return c.model }

type geminiPart struct {
	Text       string           `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *GeminiClient) Generate(ctx context.Context, blocks []promptctx.Block) (string, error) {
	if c == nil || c.apiKey == "" {
		return "", ErrModelNotInitialized
	}

	parts := make([]geminiPart, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case promptctx.KindText:
			parts = append(parts, geminiPart{Text: b.Text})
		case promptctx.KindImage:
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{
				MimeType: b.ImageMimeType,
				Data:     base64.StdEncoding.EncodeToString(b.ImageBytes),
			}})
		}
	}

	reqBody := geminiRequest{Contents: []geminiContent{{Parts: parts}}}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llmclient: encoding gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llmclient: building gemini request: %w", err)
	}
	req.Header.Set("content-type", "application/json")

	c.logger.Info("generate called", "provider", "gemini", "model", c.model, "block_count", len(blocks))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("generate failed", "provider", "gemini", "error", err)
		return "", fmt.Errorf("llmclient: gemini call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llmclient: reading gemini response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("llmclient: decoding gemini response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llmclient: gemini error: %s", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	var text string
	for _, p := range parsed.Candidates[0].Content.Parts {
		text += p.Text
	}
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
