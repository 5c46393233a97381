package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/supervertaler/supervertaler/internal/artefact"
	"github.com/supervertaler/supervertaler/internal/docx"
	"github.com/supervertaler/supervertaler/internal/llmclient"
	"github.com/supervertaler/supervertaler/internal/orchestrator"
	"github.com/supervertaler/supervertaler/internal/project"
	"github.com/supervertaler/supervertaler/internal/promptctx"
	"github.com/supervertaler/supervertaler/internal/segment"
	"github.com/supervertaler/supervertaler/internal/store"
	"github.com/supervertaler/supervertaler/internal/termbasestore"
	"github.com/supervertaler/supervertaler/internal/tmstore"
	"github.com/supervertaler/supervertaler/internal/tmx"
	"github.com/supervertaler/supervertaler/internal/trackedchange"
)

const defaultSystemPrompt = "You are a professional translator. Translate the numbered source lines from {source_lang} into {target_lang}, preserving meaning, tone, and formatting. Reply with a numbered list matching the input line numbers exactly."
const defaultProofreadPrompt = "You are a professional proofreader. Review the numbered {source_lang} source and its {target_lang} translation, correcting errors while preserving meaning and tone. Reply with a numbered list matching the input line numbers exactly."

type runOptions struct {
	source             string
	mode               string
	sourceLang         string
	targetLang         string
	provider           string
	model              string
	chunkSize          int
	tmPath             string
	projectID          string
	customInstructions string
	outputDir          string
	profileDir         string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Translate or proofread a document",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.profileDir, _ = cmd.Flags().GetString("profile-dir")
			if opts.profileDir == "" {
				opts.profileDir = defaultProfileDir()
			}
			return runRun(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.source, "source", "", "source file (.txt or .docx)")
	f.StringVar(&opts.mode, "mode", defaultMode, "translate or proofread")
	f.StringVar(&opts.sourceLang, "source-lang", "en", "source language code")
	f.StringVar(&opts.targetLang, "target-lang", "nl", "target language code")
	f.StringVar(&opts.provider, "provider", defaultProvider, "openai, anthropic, or gemini")
	f.StringVar(&opts.model, "model", "", "model name (provider default if empty)")
	f.IntVar(&opts.chunkSize, "chunk-size", defaultChunkSize, "segments per LLM call")
	f.StringVar(&opts.tmPath, "tm", "", "path to the SQLite TM database for exact/fuzzy matches (TMX files are not read)")
	f.StringVar(&opts.projectID, "project-id", "default", "project id used for termbase activation scoping")
	f.StringVar(&opts.customInstructions, "custom-instructions", "", "extra instructions appended to the system prompt")
	f.StringVar(&opts.outputDir, "output-dir", ".", "directory to write outputs into")
	cmd.MarkFlagRequired("source")

	return cmd
}

func runRun(ctx context.Context, opts *runOptions) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := os.MkdirAll(opts.profileDir, 0o755); err != nil {
		logger.Error("cannot create profile dir", "error", err)
		os.Exit(exitCodeFatal)
	}

	keys, err := project.LoadAPIKeys(apiKeysPath(opts.profileDir))
	if err != nil {
		logger.Error("failed to load api keys", "error", err)
		os.Exit(exitCodeFatal)
	}

	mode := orchestrator.ModeTranslate
	if strings.EqualFold(opts.mode, "proofread") {
		mode = orchestrator.ModeProofread
	}

	segs, sourceParagraphs, isDocx, err := loadSource(opts.source, mode)
	if err != nil {
		logger.Error("failed to load source", "error", err)
		os.Exit(exitCodeFatal)
	}
	if len(segs) == 0 {
		logger.Warn("no data: source produced zero segments")
		os.Exit(exitCodeSuccess)
	}

	segStore := store.New()
	for _, seg := range segs {
		if err := segStore.AddSegment(seg); err != nil {
			logger.Error("failed to add segment", "id", seg.ID, "error", err)
			os.Exit(exitCodeFatal)
		}
	}

	var tcStore *trackedchange.Store
	if isDocx {
		tcStore = trackedchange.New(logger)
		if err := tcStore.LoadDocx(opts.source); err != nil {
			logger.Warn("tracked-change extraction unavailable", "error", err)
			tcStore = nil
		}
	}

	var tmStore *tmstore.Store
	if opts.tmPath != "" {
		tmStore, err = tmstore.Open(opts.tmPath)
		if err != nil {
			logger.Warn("translation memory unavailable, continuing without it", "error", err)
			tmStore = nil
		} else {
			defer tmStore.Close()
		}
	}

	tbStore, err := termbasestore.Open(dbPath(opts.profileDir))
	if err != nil {
		logger.Warn("termbase store unavailable, continuing without it", "error", err)
		tbStore = nil
	} else {
		defer tbStore.Close()
	}

	client := buildClient(opts.provider, opts.model, keys, logger)

	items := buildOrchestratorItems(ctx, segStore, mode, tmStore, opts, logger)

	fullSourceContext := make([]string, len(sourceParagraphs))
	copy(fullSourceContext, sourceParagraphs)

	systemPromptTemplate := defaultSystemPrompt
	defaultPrompt := defaultSystemPrompt
	if mode == orchestrator.ModeProofread {
		systemPromptTemplate = defaultProofreadPrompt
		defaultPrompt = defaultProofreadPrompt
	}

	assemble := func(chunk []orchestrator.Item) []promptctx.Block {
		segInputs := make([]promptctx.SegmentInput, len(chunk))
		for i, it := range chunk {
			segInputs[i] = promptctx.SegmentInput{LineNumber: it.LineNumber, Source: it.Source, ExistingTarget: it.ExistingTarget}
		}
		var termHits []string
		if tbStore != nil {
			termHits = collectTermHits(ctx, tbStore, chunk, opts, logger)
		}
		var relevantPairs []trackedchange.Pair
		if tcStore != nil {
			relevantPairs = tcStore.Relevant(sourceTextsOf(chunk), 5)
		}
		return promptctx.Assemble(promptctx.Request{
			Mode:                 promptctx.Mode(mode),
			Segments:             segInputs,
			FullSourceContext:    fullSourceContext,
			SystemPromptTemplate: systemPromptTemplate,
			DefaultSystemPrompt:  defaultPrompt,
			CustomInstructions:   opts.customInstructions,
			SourceLang:           opts.sourceLang,
			TargetLang:           opts.targetLang,
			TrackedChangePairs:   relevantPairs,
			TermHits:             termHits,
			LogUnknownVar:        func(msg string) { logger.Warn(msg) },
		})
	}

	results, modified := orchestrator.Run(ctx, orchestrator.Request{
		Mode:          orchestrator.Mode(mode),
		Items:         items,
		ChunkSize:     opts.chunkSize,
		Client:        client,
		AssembleChunk: assemble,
		Logger:        logger,
	})

	applyResults(segStore, mode, results)

	if err := os.MkdirAll(opts.outputDir, 0o755); err != nil {
		logger.Error("failed to create output dir", "error", err)
		os.Exit(exitCodeFatal)
	}

	outcome := writeArtefacts(segStore, mode, opts, client, modified, logger, isDocx)

	switch outcome {
	case exitCodePartial:
		os.Exit(exitCodePartial)
	case exitCodeFatal:
		os.Exit(exitCodeFatal)
	}
	return nil
}

func sourceTextsOf(items []orchestrator.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Source
	}
	return out
}

func buildClient(providerName, model string, keys project.APIKeys, logger *slog.Logger) llmclient.Client {
	switch strings.ToLower(providerName) {
	case "anthropic", "claude":
		if keys.Anthropic == "" {
			return nil
		}
		return llmclient.NewAnthropicClient(model, keys.Anthropic, logger)
	case "gemini", "google":
		if keys.Gemini == "" {
			return nil
		}
		return llmclient.NewGeminiClient(model, keys.Gemini, logger)
	default:
		if keys.OpenAI == "" {
			return nil
		}
		return llmclient.NewOpenAIClient("", model, keys.OpenAI, logger)
	}
}

func buildOrchestratorItems(ctx context.Context, segStore *store.Store, mode orchestrator.Mode, tm *tmstore.Store, opts *runOptions, logger *slog.Logger) []orchestrator.Item {
	segs := segStore.Filter(store.Filter{})
	items := make([]orchestrator.Item, 0, len(segs))
	for _, seg := range segs {
		item := orchestrator.Item{LineNumber: seg.ID, Source: seg.Source, ExistingTarget: seg.Target}
		if mode == orchestrator.ModeTranslate && tm != nil {
			match, err := tm.ExactMatch(ctx, tmstore.ExactMatchQuery{
				Source: seg.Source, SourceLang: opts.sourceLang, TargetLang: opts.targetLang, Bidirectional: true,
			})
			if err != nil {
				logger.Warn("tm exact match lookup failed", "segment_id", seg.ID, "error", err)
			} else if match != nil {
				item.TMExactMatch = match.Unit.TargetText
			}
		}
		items = append(items, item)
	}
	return items
}

func collectTermHits(ctx context.Context, tb *termbasestore.Store, chunk []orchestrator.Item, opts *runOptions, logger *slog.Logger) []string {
	seen := make(map[string]bool)
	var hits []string
	for _, it := range chunk {
		results, err := tb.SearchTerms(ctx, termbasestore.SearchQuery{
			Text: it.Source, SourceLang: opts.sourceLang, TargetLang: opts.targetLang, ProjectID: opts.projectID,
		})
		if err != nil {
			logger.Warn("termbase search failed", "error", err)
			continue
		}
		for _, hit := range results {
			key := hit.Term.SourceTerm + "->" + hit.Term.TargetTerm
			if seen[key] {
				continue
			}
			seen[key] = true
			hits = append(hits, fmt.Sprintf("%s -> %s", hit.Term.SourceTerm, hit.Term.TargetTerm))
		}
	}
	return hits
}

func applyResults(segStore *store.Store, mode orchestrator.Mode, results []orchestrator.Result) {
	translations := make([]store.Translation, 0, len(results))
	for _, r := range results {
		text := r.Translated
		if mode == orchestrator.ModeProofread {
			text = r.RevisedTarget
		}
		translations = append(translations, store.Translation{ID: r.LineNumber, Text: text})
	}
	segStore.ApplyTranslations(translations)
}

func writeArtefacts(segStore *store.Store, mode orchestrator.Mode, opts *runOptions, client llmclient.Client, modifiedCount int, logger *slog.Logger, isDocx bool) int {
	segs := segStore.Filter(store.Filter{})
	rows := make([]artefact.Row, len(segs))
	hadPlaceholder := false
	for i, seg := range segs {
		rows[i] = artefact.Row{Source: seg.Source, Target: seg.Target, RevisedTarget: seg.Target, OriginalTarget: seg.Target}
		if strings.HasPrefix(seg.Target, "[TL Missing") || strings.HasPrefix(seg.Target, "[TL Err") || strings.HasPrefix(seg.Target, "[Err:") {
			hadPlaceholder = true
		}
	}

	base := strings.TrimSuffix(filepath.Base(opts.source), filepath.Ext(opts.source))
	var outputPaths []string

	txtPath := filepath.Join(opts.outputDir, base+"_output.txt")
	txtFile, err := os.Create(txtPath)
	if err != nil {
		logger.Error("failed to create output txt", "error", err)
		return exitCodeFatal
	}
	var writeErr error
	if mode == orchestrator.ModeTranslate {
		writeErr = artefact.WriteTranslateTXT(txtFile, rows)
	} else {
		writeErr = artefact.WriteProofreadTXT(txtFile, rows)
	}
	txtFile.Close()
	if writeErr != nil {
		logger.Error("failed to write output txt", "error", writeErr)
		return exitCodeFatal
	}
	outputPaths = append(outputPaths, txtPath)

	if mode == orchestrator.ModeTranslate {
		tmxPath := filepath.Join(opts.outputDir, base+".tmx")
		tmxFile, err := os.Create(tmxPath)
		if err == nil {
			if err := artefact.WriteTMX(tmxFile, rows, tmxWriteOptions(opts)); err != nil {
				logger.Warn("failed to write tmx", "error", err)
			} else {
				outputPaths = append(outputPaths, tmxPath)
			}
			tmxFile.Close()
		}
	}

	if isDocx {
		docxOutPath := filepath.Join(opts.outputDir, base+"_translated.docx")
		if err := exportDocx(opts.source, docxOutPath, segs); err != nil {
			logger.Warn("failed to reconstruct translated docx", "error", err)
		} else {
			outputPaths = append(outputPaths, docxOutPath)
		}
	}

	reportPath := filepath.Join(opts.outputDir, base+"_report.md")
	reportFile, err := os.Create(reportPath)
	if err == nil {
		providerName, modelName := "none", "none"
		if client != nil {
			providerName, modelName = string(client.ProviderHint()), client.ModelName()
		}
		promptTemplate := defaultSystemPrompt
		if mode == orchestrator.ModeProofread {
			promptTemplate = defaultProofreadPrompt
		}
		systemPromptSent := promptctx.ExpandSystemPrompt(promptTemplate, promptTemplate, opts.sourceLang, opts.targetLang, nil)
		artefact.WriteRunReport(reportFile, artefact.RunReport{
			Timestamp:         time.Now(),
			Version:           appVersion,
			Mode:              string(mode),
			Provider:          providerName,
			Model:             modelName,
			SourcePath:        opts.source,
			OutputPaths:       outputPaths,
			SourceLang:        opts.sourceLang,
			TargetLang:        opts.targetLang,
			ChunkSize:         opts.chunkSize,
			SegmentsTotal:     len(segs),
			SegmentsModified:  modifiedCount,
			SystemPromptSent:  systemPromptSent,
			CustomInstructions: opts.customInstructions,
			ProviderAvailable: client != nil,
		})
		reportFile.Close()
	}

	if client == nil {
		return exitCodePartial
	}
	if hadPlaceholder {
		return exitCodePartial
	}
	return exitCodeSuccess
}

func tmxWriteOptions(opts *runOptions) tmx.WriteOptions {
	return tmx.WriteOptions{
		SourceLang:          opts.sourceLang,
		TargetLang:          opts.targetLang,
		CreationDate:        time.Now(),
		CreationToolVersion: appVersion,
	}
}

// exportDocx reconstructs the translated document. A paragraph that was
// split into several sentence segments has several store.Segment rows
// sharing one ParagraphID; their targets are rejoined with a single space
// (the inverse of segmentation) before DocxCodec replaces that paragraph's
// run text, so later sentences don't clobber earlier ones.
func exportDocx(sourcePath, outPath string, segs []store.Segment) error {
	doc, err := docx.Load(sourcePath)
	if err != nil {
		return err
	}

	order := make([]int, 0)
	targetsByParagraph := make(map[int][]string)
	for _, seg := range segs {
		if _, seen := targetsByParagraph[seg.ParagraphID]; !seen {
			order = append(order, seg.ParagraphID)
		}
		targetsByParagraph[seg.ParagraphID] = append(targetsByParagraph[seg.ParagraphID], seg.Target)
	}

	records := make([]docx.ExportRecord, 0, len(order))
	for _, paragraphID := range order {
		records = append(records, docx.ExportRecord{
			ParagraphID: paragraphID,
			Target:      strings.Join(targetsByParagraph[paragraphID], " "),
		})
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	return doc.Export(out, records)
}

// loadSource reads either a .txt or .docx source into ordered Segments
// plus the flat paragraph-text context ContextAssembler needs.
func loadSource(path string, mode orchestrator.Mode) ([]store.Segment, []string, bool, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".docx" {
		doc, err := docx.Load(path)
		if err != nil {
			return nil, nil, false, err
		}
		paragraphTexts := make([]string, len(doc.Paragraphs))
		for i, p := range doc.Paragraphs {
			paragraphTexts[i] = p.Text
		}
		sentences := segment.SplitParagraphs(paragraphTexts, false)

		segs := make([]store.Segment, 0, len(sentences))
		id := 1
		for _, sent := range sentences {
			p := doc.Paragraphs[sent.ParagraphIndex]
			seg := store.Segment{
				ID:               id,
				Source:           sent.Sentence,
				Status:           store.Untranslated,
				ParagraphID:      p.ParagraphID,
				DocumentPosition: p.DocumentPosition,
				Style:            p.Style,
				IsTableCell:      p.IsTableCell,
			}
			if p.Table != nil {
				seg.Table = &store.TableInfo{TableIndex: p.Table.TableIndex, RowIndex: p.Table.RowIndex, CellIndex: p.Table.CellIndex}
			}
			segs = append(segs, seg)
			id++
		}
		return segs, paragraphTexts, true, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, false, err
	}
	defer f.Close()

	var segs []store.Segment
	var paragraphTexts []string
	id := 1
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		source := strings.TrimSpace(cols[0])
		target := ""
		if mode == orchestrator.ModeProofread {
			if len(cols) < 2 {
				continue
			}
			target = strings.TrimSpace(cols[1])
		}
		status := store.Untranslated
		if target != "" {
			status = store.Draft
		}
		segs = append(segs, store.Segment{
			ID:               id,
			Source:           source,
			Target:           target,
			Status:           status,
			ParagraphID:      id - 1,
			DocumentPosition: id - 1,
			Style:            "Normal",
		})
		paragraphTexts = append(paragraphTexts, source)
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, false, err
	}
	return segs, paragraphTexts, false, nil
}
