package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/supervertaler/supervertaler/internal/promptctx"
)

type LLMClientSuite struct {
	suite.Suite
}

func TestLLMClientSuite(t *testing.T) {
	suite.Run(t, new(LLMClientSuite))
}

func (s *LLMClientSuite) TestOpenAIClient_GenerateReturnsChoiceContent() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"1. Hallo"}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL, "gpt-4o-mini", "test-key", nil)
	s.Equal(ProviderOpenAI, client.ProviderHint())

	out, err := client.Generate(context.Background(), []promptctx.Block{promptctx.TextBlock("1. Hello")})
	s.Require().NoError(err)
	s.Equal("1. Hallo", out)
}

func (s *LLMClientSuite) TestOpenAIClient_UninitializedClientErrors() {
	var client *OpenAIClient
	_, err := client.Generate(context.Background(), nil)
	s.ErrorIs(err, ErrModelNotInitialized)
}

func (s *LLMClientSuite) TestAnthropicClient_GenerateParsesTextContent() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.Require().NotEmpty(req.Messages)
		w.Write([]byte(`{"content":[{"type":"text","text":"1. Hallo"}]}`))
	}))
	defer srv.Close()

	client := NewAnthropicClient("claude-3-5-sonnet-20241022", "test-key", nil)
	client.baseURL = srv.URL

	out, err := client.Generate(context.Background(), []promptctx.Block{promptctx.TextBlock("1. Hello")})
	s.Require().NoError(err)
	s.Equal("1. Hallo", out)
}

func (s *LLMClientSuite) TestAnthropicClient_MissingAPIKeyErrors() {
	client := &AnthropicClient{}
	_, err := client.Generate(context.Background(), nil)
	s.ErrorIs(err, ErrModelNotInitialized)
}

func (s *LLMClientSuite) TestAnthropicClient_APIErrorIsSurfaced() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"type":"overloaded_error","message":"server overloaded"}}`))
	}))
	defer srv.Close()

	client := NewAnthropicClient("claude-3-5-sonnet-20241022", "test-key", nil)
	client.baseURL = srv.URL

	_, err := client.Generate(context.Background(), []promptctx.Block{promptctx.TextBlock("hi")})
	s.ErrorContains(err, "server overloaded")
}

func (s *LLMClientSuite) TestGeminiClient_GenerateParsesCandidateText() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"1. Hallo"}]}}]}`))
	}))
	defer srv.Close()

	client := NewGeminiClient("gemini-1.5-flash", "test-key", nil)
	client.baseURL = srv.URL

	out, err := client.Generate(context.Background(), []promptctx.Block{promptctx.TextBlock("1. Hello")})
	s.Require().NoError(err)
	s.Equal("1. Hallo", out)
}
