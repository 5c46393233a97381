// Package orchestrator chunks a document's segments, drives the LLM
// client per chunk, and fills in any line the model failed to return.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/supervertaler/supervertaler/internal/llmclient"
	"github.com/supervertaler/supervertaler/internal/promptctx"
)

// Mode mirrors promptctx.Mode so callers of this package don't need to
// import promptctx just to name a mode.
type Mode = promptctx.Mode

const (
	ModeTranslate = promptctx.ModeTranslate
	ModeProofread = promptctx.ModeProofread
)

const defaultChunkSize = 100

var numberedLine = regexp.MustCompile(`^\s*(\d+)[.)]\s*(.*)$`)

const noChangesSentinel = "no changes made to any segment in this batch"

// Item is one segment to process, addressed by a stable line number.
type Item struct {
	LineNumber     int
	Source         string
	ExistingTarget string // proofread mode only
	TMExactMatch   string // translate mode only; pre-filled, skips the LLM entirely
}

// Result is what the orchestrator produces for one line.
type Result struct {
	LineNumber      int
	Translated      string // translate mode
	OriginalTarget  string // proofread mode
	RevisedTarget   string // proofread mode
	ChangesSummary  string // proofread mode, per-line note if any
	Unchanged       bool   // proofread mode
	FromTMExact     bool
	Err             error
}

// Request bundles one run's input.
type Request struct {
	Mode               Mode
	Items              []Item
	ChunkSize          int
	Client             llmclient.Client
	AssembleChunk      func(chunkItems []Item) []promptctx.Block
	Logger             *slog.Logger
}

// Run executes the full chunked translate/proofread pass and returns
// results in ascending line-number order, regardless of chunk
// completion order.
func Run(ctx context.Context, req Request) ([]Result, int) {
	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}
	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	results := make(map[int]Result, len(req.Items))
	var pending []Item

	if req.Mode == ModeTranslate {
		for _, item := range req.Items {
			if item.TMExactMatch != "" {
				results[item.LineNumber] = Result{LineNumber: item.LineNumber, Translated: item.TMExactMatch, FromTMExact: true}
			} else {
				pending = append(pending, item)
			}
		}
	} else {
		pending = req.Items
	}

	chunks := chunkItems(pending, chunkSize)

	modelAborted := false
	for i, chunk := range chunks {
		if modelAborted {
			for _, item := range chunk {
				applyPlaceholder(results, req.Mode, item, "[Err: Model not init]")
			}
			continue
		}

		logger.Info("processing chunk", "index", i, "size", len(chunk))

		if req.Client == nil {
			modelAborted = true
			for _, item := range chunk {
				applyPlaceholder(results, req.Mode, item, "[Err: Model not init]")
			}
			continue
		}

		blocks := req.AssembleChunk(chunk)
		raw, err := req.Client.Generate(ctx, blocks)
		if err != nil {
			if errIsModelNotInit(err) {
				modelAborted = true
				for _, item := range chunk {
					applyPlaceholder(results, req.Mode, item, "[Err: Model not init]")
				}
				continue
			}
			logger.Error("chunk call failed", "index", i, "error", err)
			for _, item := range chunk {
				applyPlaceholder(results, req.Mode, item, fmt.Sprintf("[TL Err line %d: %s]", item.LineNumber, err))
			}
			continue
		}

		applyChunkResponse(results, req.Mode, chunk, raw)
	}

	out := make([]Result, 0, len(req.Items))
	modifiedCount := 0
	for _, item := range req.Items {
		r, ok := results[item.LineNumber]
		if !ok {
			placeholder := map[int]Result{}
			applyPlaceholder(placeholder, req.Mode, item, "[TL Missing line "+strconv.Itoa(item.LineNumber)+"]")
			r = placeholder[item.LineNumber]
		}
		if req.Mode == ModeProofread && !r.Unchanged && !r.FromTMExact {
			modifiedCount++
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LineNumber < out[j].LineNumber })
	return out, modifiedCount
}

func errIsModelNotInit(err error) bool {
	return errors.Is(err, llmclient.ErrModelNotInitialized)
}

func chunkItems(items []Item, chunkSize int) [][]Item {
	if len(items) == 0 {
		return nil
	}
	var chunks [][]Item
	for start := 0; start < len(items); start += chunkSize {
		end := start + chunkSize
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

func applyPlaceholder(results map[int]Result, mode Mode, item Item, placeholder string) {
	if mode == ModeProofread {
		results[item.LineNumber] = Result{
			LineNumber:     item.LineNumber,
			OriginalTarget: item.ExistingTarget,
			RevisedTarget:  item.ExistingTarget,
			ChangesSummary: "Segment not processed by AI Proofreader",
			Unchanged:      true,
		}
		return
	}
	results[item.LineNumber] = Result{LineNumber: item.LineNumber, Translated: placeholder}
}

// applyChunkResponse parses raw and fills results for every item in
// chunk, falling back to a missing-line placeholder for any requested
// line number the response omitted.
func applyChunkResponse(results map[int]Result, mode Mode, chunk []Item, raw string) {
	requested := make(map[int]Item, len(chunk))
	for _, item := range chunk {
		requested[item.LineNumber] = item
	}

	if mode == ModeTranslate {
		parsed := parseNumberedLines(raw)
		for _, item := range chunk {
			if text, ok := parsed[item.LineNumber]; ok {
				results[item.LineNumber] = Result{LineNumber: item.LineNumber, Translated: text}
			} else {
				results[item.LineNumber] = Result{LineNumber: item.LineNumber, Translated: fmt.Sprintf("[TL Missing line %d]", item.LineNumber)}
			}
		}
		return
	}

	translationsBlock, summaryBlock := splitChangesSummary(raw)
	revisions := parseNumberedLines(translationsBlock)
	summaries := parseNumberedLines(summaryBlock)

	for _, item := range chunk {
		revised, ok := revisions[item.LineNumber]
		if !ok {
			results[item.LineNumber] = Result{
				LineNumber:     item.LineNumber,
				OriginalTarget: item.ExistingTarget,
				RevisedTarget:  item.ExistingTarget,
				ChangesSummary: "Segment not processed by AI Proofreader",
				Unchanged:      true,
			}
			continue
		}

		summary := summaries[item.LineNumber]
		unchanged := strings.TrimSpace(revised) == strings.TrimSpace(item.ExistingTarget) &&
			(summary == "" || strings.Contains(strings.ToLower(summary), noChangesSentinel))

		results[item.LineNumber] = Result{
			LineNumber:     item.LineNumber,
			OriginalTarget: item.ExistingTarget,
			RevisedTarget:  revised,
			ChangesSummary: summary,
			Unchanged:      unchanged,
		}
	}
}

func parseNumberedLines(text string) map[int]string {
	out := make(map[int]string)
	for _, line := range strings.Split(text, "\n") {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out[n] = strings.TrimSpace(m[2])
	}
	return out
}

func splitChangesSummary(raw string) (translations, summary string) {
	const startMarker = "---CHANGES SUMMARY START---"
	const endMarker = "---CHANGES SUMMARY END---"

	startIdx := strings.Index(raw, startMarker)
	if startIdx < 0 {
		return raw, ""
	}
	translations = raw[:startIdx]
	rest := raw[startIdx+len(startMarker):]
	endIdx := strings.Index(rest, endMarker)
	if endIdx < 0 {
		return translations, strings.TrimSpace(rest)
	}
	return translations, strings.TrimSpace(rest[:endIdx])
}
