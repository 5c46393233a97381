package orchestrator

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/supervertaler/supervertaler/internal/llmclient"
)

// TokenEstimator counts tokens for a string, tuned to the encoding the
// requesting provider is expected to use.
type TokenEstimator interface {
	CountTokens(text string) int
}

type tiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

func (t *tiktokenEstimator) CountTokens(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// whitespaceEstimator is the fallback used when no tiktoken encoding is
// registered for a provider's outputs (e.g. non-OpenAI-compatible
// tokenizers), counting whitespace-delimited words as a rough proxy.
type whitespaceEstimator struct{}

func (whitespaceEstimator) CountTokens(text string) int {
	return len(strings.Fields(text))
}

var (
	estimatorCache   = map[string]TokenEstimator{}
	estimatorCacheMu sync.Mutex
)

// encodingForProvider maps a provider hint to the tiktoken encoding
// that best approximates its tokenizer. Anthropic and Gemini don't use
// tiktoken's vocabulary, but cl100k_base is a usable upper-bound proxy
// for budget planning; ProviderGeneric skips tiktoken entirely.
func encodingForProvider(hint llmclient.ProviderHint) string {
	switch hint {
	case llmclient.ProviderOpenAI:
		return "o200k_base"
	case llmclient.ProviderAnthropic, llmclient.ProviderGemini:
		return "cl100k_base"
	default:
		return ""
	}
}

// EstimatorFor returns a cached TokenEstimator for the given provider
// hint, falling back to whitespace counting if tiktoken has no usable
// encoding or fails to load one.
func EstimatorFor(hint llmclient.ProviderHint) TokenEstimator {
	encodingName := encodingForProvider(hint)
	if encodingName == "" {
		return whitespaceEstimator{}
	}

	estimatorCacheMu.Lock()
	defer estimatorCacheMu.Unlock()
	if est, ok := estimatorCache[encodingName]; ok {
		return est
	}

	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		estimatorCache[encodingName] = whitespaceEstimator{}
		return estimatorCache[encodingName]
	}
	est := &tiktokenEstimator{enc: enc}
	estimatorCache[encodingName] = est
	return est
}

// BatchSizeForBudget returns how many of items (by cumulative token
// count of their Source field) fit under tokenBudget, always including
// at least one item so a single oversized segment doesn't stall the
// run.
func BatchSizeForBudget(items []Item, estimator TokenEstimator, tokenBudget int) int {
	if len(items) == 0 {
		return 0
	}
	total := 0
	for i, item := range items {
		total += estimator.CountTokens(item.Source)
		if total > tokenBudget && i > 0 {
			return i
		}
	}
	return len(items)
}
