// Package promptctx assembles the ordered prompt payload a chunk of
// segments needs: system prompt, custom instructions, tracked-change
// excerpts, whole-document context, and per-segment lines with figure
// images interleaved where referenced.
package promptctx

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/supervertaler/supervertaler/internal/trackedchange"
)

// Kind distinguishes the two content block shapes an LLMClient accepts.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Block is one item of the ordered content list handed to an LLMClient.
type Block struct {
	Kind          Kind
	Text          string
	ImageBytes    []byte
	ImageMimeType string
}

func TextBlock(text string) Block { return Block{Kind: KindText, Text: text} }

func ImageBlock(data []byte, mime string) Block {
	return Block{Kind: KindImage, ImageBytes: data, ImageMimeType: mime}
}

// templateVar matches {variable} placeholders, grounded on the same
// regex the teacher's prompt templating uses.
var templateVar = regexp.MustCompile(`\{(\w+)\}`)

// GetTemplateVars extracts variable names referenced by a template.
func GetTemplateVars(template string) []string {
	matches := templateVar.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool)
	var vars []string
	for _, m := range matches {
		if len(m) > 1 && !seen[m[1]] {
			vars = append(vars, m[1])
			seen[m[1]] = true
		}
	}
	return vars
}

// FormatString substitutes {key} placeholders from vars into template.
func FormatString(template string, vars map[string]string) string {
	result := template
	for k, v := range vars {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// ExpandSystemPrompt formats template with source_lang/target_lang. If
// the template references a variable not in {source_lang, target_lang},
// it falls back to defaultPrompt and the caller-supplied log function is
// invoked with the reason.
func ExpandSystemPrompt(template, defaultPrompt, sourceLang, targetLang string, logUnknownVar func(string)) string {
	known := map[string]bool{"source_lang": true, "target_lang": true}
	for _, v := range GetTemplateVars(template) {
		if !known[v] {
			if logUnknownVar != nil {
				logUnknownVar(fmt.Sprintf("unknown system prompt variable %q, falling back to default", v))
			}
			template = defaultPrompt
			break
		}
	}
	return FormatString(template, map[string]string{"source_lang": sourceLang, "target_lang": targetLang})
}

// Mode distinguishes translate from proofread chunk assembly.
type Mode string

const (
	ModeTranslate Mode = "translate"
	ModeProofread Mode = "proofread"
)

// SegmentInput is one segment to include in a chunk's content list.
type SegmentInput struct {
	LineNumber     int // 1-based, stable across the whole document
	Source         string
	ExistingTarget string // proofread mode only
}

// Request bundles everything ContextAssembler needs for one chunk.
type Request struct {
	Mode                Mode
	Segments            []SegmentInput
	FullSourceContext    []string // full document, numbered 1-based, same numbering as segments
	FullTargetContext    []string // proofread mode only
	SystemPromptTemplate string
	DefaultSystemPrompt  string
	CustomInstructions   string
	SourceLang           string
	TargetLang           string
	TrackedChangePairs   []trackedchange.Pair // already selected as relevant for this chunk
	FigureImages         map[string][]byte    // normalised figure id -> PNG bytes
	TMFuzzyHints         []string             // formatted "source ~ target (NN%)" suggestions for this chunk
	TermHits             []string             // formatted "source -> target" glossary entries relevant to this chunk
	LogUnknownVar        func(string)
}

const trackedChangeCharBudget = 1000

var figureReference = regexp.MustCompile(`(?i)(figure|figuur|fig\.?)\s*([\w\d]+([\s.\-][\w\d]+)?)`)

// NormalizeFigureID lowercases and strips separators: "Figure 1A" ->
// "1a", "Fig. 2-b" -> "2b".
func NormalizeFigureID(ref string) string {
	ref = strings.ToLower(ref)
	var sb strings.Builder
	for _, r := range ref {
		if r == ' ' || r == '.' || r == '-' {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Assemble builds the ordered content list for one chunk, per the
// ordering contract: system prompt, custom instructions, tracked-change
// excerpts, chunk protocol text, full-document context, per-segment
// lines with figure images interleaved.
func Assemble(req Request) []Block {
	var blocks []Block

	systemPrompt := ExpandSystemPrompt(req.SystemPromptTemplate, req.DefaultSystemPrompt, req.SourceLang, req.TargetLang, req.LogUnknownVar)
	blocks = append(blocks, TextBlock(systemPrompt))

	if strings.TrimSpace(req.CustomInstructions) != "" {
		blocks = append(blocks, TextBlock(req.CustomInstructions))
	}

	if len(req.TrackedChangePairs) > 0 {
		blocks = append(blocks, TextBlock(formatTrackedChanges(req.TrackedChangePairs)))
	}

	if len(req.TermHits) > 0 {
		blocks = append(blocks, TextBlock("Glossary terms to use consistently:\n"+strings.Join(req.TermHits, "\n")))
	}

	if len(req.TMFuzzyHints) > 0 {
		blocks = append(blocks, TextBlock("Similar past translations (for reference, not verbatim reuse):\n"+strings.Join(req.TMFuzzyHints, "\n")))
	}

	blocks = append(blocks, TextBlock(chunkProtocolText(req.Mode)))

	blocks = append(blocks, TextBlock(formatNumberedContext("FULL SOURCE DOCUMENT CONTEXT", req.FullSourceContext)))
	if req.Mode == ModeProofread {
		blocks = append(blocks, TextBlock(formatNumberedContext("FULL ORIGINAL TARGET CONTEXT", req.FullTargetContext)))
	}

	segments := append([]SegmentInput(nil), req.Segments...)
	sort.Slice(segments, func(i, j int) bool { return segments[i].LineNumber < segments[j].LineNumber })

	addedFigures := make(map[string]bool)
	for _, seg := range segments {
		for _, match := range figureReference.FindAllStringSubmatch(seg.Source, -1) {
			id := NormalizeFigureID(match[2])
			if addedFigures[id] {
				continue
			}
			if img, ok := req.FigureImages[id]; ok {
				blocks = append(blocks, TextBlock(fmt.Sprintf("[Image for figure reference %q follows]", match[2])))
				blocks = append(blocks, ImageBlock(img, "image/png"))
				addedFigures[id] = true
			}
		}

		if req.Mode == ModeProofread {
			blocks = append(blocks, TextBlock(fmt.Sprintf("%d. SOURCE: %s", seg.LineNumber, seg.Source)))
			blocks = append(blocks, TextBlock(fmt.Sprintf("%d. EXISTING TRANSLATION: %s", seg.LineNumber, seg.ExistingTarget)))
		} else {
			blocks = append(blocks, TextBlock(fmt.Sprintf("%d. %s", seg.LineNumber, seg.Source)))
		}
	}

	blocks = append(blocks, TextBlock(finalInstruction(req.Mode, segments)))
	return blocks
}

func formatTrackedChanges(pairs []trackedchange.Pair) string {
	var sb strings.Builder
	sb.WriteString("Tracked-change examples from prior revisions of this document:\n")
	total := 0
	truncated := false
	for _, p := range pairs {
		line := fmt.Sprintf("• %s → %s\n", p.Original, p.Final)
		if total+len(line) > trackedChangeCharBudget {
			truncated = true
			break
		}
		sb.WriteString(line)
		total += len(line)
	}
	if truncated {
		sb.WriteString("[... additional examples truncated ...]\n")
	}
	return sb.String()
}

func chunkProtocolText(mode Mode) string {
	verb := "translate"
	if mode == ModeProofread {
		verb = "revise"
	}
	return fmt.Sprintf(
		"The FULL DOCUMENT CONTEXT sections below are reference only, to help you understand the "+
			"surrounding text. Do not %s them. Only %s the numbered lines that follow the context.",
		verb, verb)
}

func formatNumberedContext(label string, lines []string) string {
	var sb strings.Builder
	sb.WriteString("--- " + label + " ---\n")
	for i, line := range lines {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, line)
	}
	return sb.String()
}

func finalInstruction(mode Mode, segments []SegmentInput) string {
	var sb strings.Builder
	sb.WriteString("Output ONLY a numbered list covering exactly the following line numbers, one line per number: ")
	nums := make([]string, len(segments))
	for i, seg := range segments {
		nums[i] = fmt.Sprintf("%d", seg.LineNumber)
	}
	sb.WriteString(strings.Join(nums, ", "))
	if mode == ModeProofread {
		sb.WriteString(".\nAfter the list, add a block:\n---CHANGES SUMMARY START---\n" +
			"<one line per modified id, or \"No changes made to any segment in this batch.\">\n" +
			"---CHANGES SUMMARY END---")
	}
	return sb.String()
}
