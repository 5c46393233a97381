// Package artefact writes the output TXT/TSV, TMX, and Markdown
// run-report a run produces, consuming only plain value inputs so it
// never needs to know how segments were stored or translated.
package artefact

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/supervertaler/supervertaler/internal/tmx"
)

// Row is one output line, covering both translate and proofread shape.
type Row struct {
	Source         string
	Target         string // translate mode: the translation
	RevisedTarget  string // proofread mode: the revised translation
	OriginalTarget string // proofread mode: the pre-existing translation
	OriginalComment string
	ChangesSummary  string
	Unchanged       bool
}

const defaultProofreaderComment = "Reviewed, no issues found"

// WriteTranslateTXT emits source<TAB>target per row.
func WriteTranslateTXT(w io.Writer, rows []Row) error {
	bw := bufio.NewWriter(w)
	for _, r := range rows {
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", r.Source, r.Target); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteProofreadTXT emits source<TAB>revised_target<TAB>comment per row.
func WriteProofreadTXT(w io.Writer, rows []Row) error {
	bw := bufio.NewWriter(w)
	for _, r := range rows {
		if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\n", r.Source, r.RevisedTarget, proofreadComment(r)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func proofreadComment(r Row) string {
	var parts []string
	if strings.TrimSpace(r.OriginalComment) != "" {
		parts = append(parts, "ORIGINAL COMMENT: "+r.OriginalComment)
	}
	if strings.TrimSpace(r.RevisedTarget) != strings.TrimSpace(r.OriginalTarget) {
		summary := strings.TrimSpace(r.ChangesSummary)
		if summary == "" {
			summary = defaultProofreaderComment
		}
		parts = append(parts, "PROOFREADER COMMENT (AI): "+summary)
	}
	return strings.Join(parts, " | ")
}

// WriteTMX emits translation pairs for Translate-mode rows only, via
// the tmx codec. Error-marker and empty targets are skipped by Write
// itself.
func WriteTMX(w io.Writer, rows []Row, opts tmx.WriteOptions) error {
	pairs := make([]tmx.Pair, len(rows))
	for i, r := range rows {
		pairs[i] = tmx.Pair{Source: r.Source, Target: r.Target}
	}
	return tmx.Write(w, pairs, opts)
}

// RunReport describes everything the run-report Markdown must surface.
type RunReport struct {
	Timestamp           time.Time
	Version              string
	Mode                 string // "translate" or "proofread"
	Provider             string
	Model                string
	SourcePath           string
	OutputPaths          []string
	SourceLang           string
	TargetLang           string
	ChunkSize            int
	TMUsed               bool
	TMPath               string
	FiguresUsed          bool
	FigureCount          int
	TrackedChangesUsed   bool
	TrackedChangePairs   int
	SystemPromptSent     string
	CustomInstructions   string
	SegmentsTotal        int
	SegmentsModified     int
	ProviderAvailable    bool
	FeatureFlags         map[string]bool
}

// WriteRunReport emits the Markdown run report. It is written on any
// outcome short of fatal initialisation failure, so it never errors on
// an empty or partially-populated report.
func WriteRunReport(w io.Writer, r RunReport) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Supervertaler run report\n\n")
	fmt.Fprintf(bw, "- Timestamp: %s\n", r.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(bw, "- Version: %s\n", r.Version)
	fmt.Fprintf(bw, "- Mode: %s\n", r.Mode)
	fmt.Fprintf(bw, "- Provider/model: %s / %s\n", r.Provider, r.Model)
	fmt.Fprintf(bw, "- Source file: %s\n", r.SourcePath)
	for _, p := range r.OutputPaths {
		fmt.Fprintf(bw, "- Output: %s\n", p)
	}
	fmt.Fprintf(bw, "- Language pair: %s -> %s\n", r.SourceLang, r.TargetLang)
	fmt.Fprintf(bw, "- Chunk size: %d\n", r.ChunkSize)
	fmt.Fprintf(bw, "- Segments: %d total, %d modified\n\n", r.SegmentsTotal, r.SegmentsModified)

	fmt.Fprintf(bw, "## Optional resources\n\n")
	fmt.Fprintf(bw, "- Translation memory: %s\n", resourceLine(r.TMUsed, r.TMPath))
	fmt.Fprintf(bw, "- Figures: %s\n", boolCountLine(r.FiguresUsed, r.FigureCount))
	fmt.Fprintf(bw, "- Tracked changes: %s\n\n", boolCountLine(r.TrackedChangesUsed, r.TrackedChangePairs))

	fmt.Fprintf(bw, "## System prompt\n\n```\n%s\n```\n\n", r.SystemPromptSent)
	if strings.TrimSpace(r.CustomInstructions) != "" {
		fmt.Fprintf(bw, "## Custom instructions\n\n```\n%s\n```\n\n", r.CustomInstructions)
	}

	fmt.Fprintf(bw, "## Provider/feature availability\n\n")
	fmt.Fprintf(bw, "- Provider available: %t\n", r.ProviderAvailable)
	for name, enabled := range r.FeatureFlags {
		fmt.Fprintf(bw, "- %s: %t\n", name, enabled)
	}

	return bw.Flush()
}

func resourceLine(used bool, path string) string {
	if !used {
		return "not used"
	}
	return path
}

func boolCountLine(used bool, count int) string {
	if !used {
		return "not used"
	}
	return fmt.Sprintf("%d", count)
}
