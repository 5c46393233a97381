// Package segment splits paragraph text into sentence-sized translation
// units: punctuation-boundary detection with an abbreviation list, and an
// optional markdown-aware mode that protects inline constructs (code,
// links, images, autolinks) from being split mid-token.
package segment

import (
	"fmt"
	"regexp"
	"strings"
)

// abbreviations that a trailing "." must not be treated as a sentence
// terminator for, matched case-insensitively against the token preceding
// the period.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "dr": true, "prof": true, "inc": true,
	"ltd": true, "co": true, "corp": true, "fig": true, "etc": true,
	"e.g": true, "i.e": true, "cf": true, "approx": true, "ca": true,
	"no": true, "vol": true, "p": true, "pp": true, "art": true, "op": true,
}

// boundary matches a run of sentence terminators followed by whitespace
// and a likely sentence start (uppercase letter or quote).
var boundary = regexp.MustCompile(`[.!?]+[ \t]+(?:["'\p{Lu}])`)

// Split splits text into sentence segments using punctuation boundaries,
// then a post-process merge pass honours the abbreviation list: a split is
// undone when the preceding sentence ends right after an abbreviation and
// the following candidate sentence begins lowercase or is itself shorter
// than 10 characters. The merge rule is evaluated against the next
// candidate sentence as a whole, not just its first word, so a short next
// word inside a genuinely long following sentence doesn't trigger a false
// merge.
func Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return mergeAbbreviations(rawSplit(text))
}

// rawSplit cuts text at every punctuation boundary unconditionally,
// without regard to abbreviations; mergeAbbreviations undoes false splits
// afterwards.
func rawSplit(text string) []string {
	var sentences []string
	start := 0
	for start < len(text) {
		loc := boundary.FindStringIndex(text[start:])
		if loc == nil {
			break
		}
		// The boundary match consumes the sentence-start character of the
		// next sentence; back it off so the terminator stays with the
		// sentence that precedes it.
		cutAbs := start + loc[1] - 1
		sentences = append(sentences, strings.TrimSpace(text[start:cutAbs]))
		start = cutAbs
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// mergeAbbreviations folds a candidate sentence back into the one before
// it when the preceding sentence ends right after a known abbreviation and
// the candidate either starts lowercase or is shorter than 10 characters
// (too short to be confident it's a genuine new sentence). A preceding
// candidate that is nothing but the abbreviation itself (e.g. a lone
// "Dr.") is always folded forward regardless of what follows, since it
// can never stand as a complete sentence on its own; this lets a chain of
// abbreviations at the start of a sentence ("Dr. Smith ... Inc. Corp.")
// accumulate into one unit before the length/case test decides where the
// sentence actually ends.
func mergeAbbreviations(sentences []string) []string {
	if len(sentences) == 0 {
		return nil
	}

	var merged []string
	current := sentences[0]
	for i := 1; i < len(sentences); i++ {
		next := sentences[i]
		if isAbbreviationOnly(current) || (endsAfterAbbreviation(current) && (startsLowercase(next) || len(next) < 10)) {
			current = current + " " + next
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)
	return merged
}

func startsLowercase(s string) bool {
	if s == "" {
		return false
	}
	r := []rune(s)[0]
	return r >= 'a' && r <= 'z'
}

// endsAfterAbbreviation reports whether candidate ends right after a known
// abbreviation (the last whitespace-delimited token, sans trailing
// terminator punctuation, case-insensitively matches the abbreviation
// list).
func endsAfterAbbreviation(candidate string) bool {
	trimmed := strings.TrimRight(candidate, ".!? \t")
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return false
	}
	last := strings.ToLower(fields[len(fields)-1])
	last = strings.Trim(last, ".,;:")
	return abbreviations[last]
}

// isAbbreviationOnly reports whether candidate is nothing but a single
// known abbreviation token (e.g. "Dr."), with no other words.
func isAbbreviationOnly(candidate string) bool {
	trimmed := strings.TrimRight(strings.TrimSpace(candidate), ".!? \t")
	if trimmed == "" || strings.ContainsAny(trimmed, " \t") {
		return false
	}
	return abbreviations[strings.ToLower(trimmed)]
}

// SplitMarkdown segments markdown-aware text: fenced code blocks, inline
// and reference links/images, autolinks, bare URLs and HTML tags are
// protected with placeholders before boundary detection, then restored in
// each resulting sentence.
func SplitMarkdown(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	protected, restore := protect(text)
	sentences := Split(protected)
	for i, sentence := range sentences {
		sentences[i] = restore(sentence)
	}
	return sentences
}

var protectedPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```.*?```"),                  // fenced code block
	regexp.MustCompile("(?s)``.*?``"),                    // double-backtick code span
	regexp.MustCompile("`[^`\n]*`"),                      // single-backtick code span
	regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`),           // inline image
	regexp.MustCompile(`\[[^\]]*\]\([^)]*\)`),            // inline link
	regexp.MustCompile(`\[[^\]]*\]\[[^\]]*\]`),           // reference link
	regexp.MustCompile(`<[a-zA-Z][a-zA-Z0-9+.\-]*:[^<>\s]+>`), // autolink
	regexp.MustCompile(`https?://[^\s<>\]]+`),            // bare URL
	regexp.MustCompile(`</?[a-zA-Z][^<>]*>`),             // HTML tag
}

// protect replaces every protected construct with a unique placeholder
// token and returns a restore function that substitutes them back.
func protect(text string) (string, func(string) string) {
	var originals []string
	placeholder := func(i int) string { return fmt.Sprintf("\x00MDPH%d\x00", i) }

	out := text
	for _, pattern := range protectedPatterns {
		out = pattern.ReplaceAllStringFunc(out, func(match string) string {
			idx := len(originals)
			originals = append(originals, match)
			return placeholder(idx)
		})
	}

	restore := func(s string) string {
		for i, original := range originals {
			s = strings.ReplaceAll(s, placeholder(i), original)
		}
		return s
	}
	return out, restore
}

// Paragraph pairs a sentence with the index of the paragraph it came from.
type Paragraph struct {
	ParagraphIndex int
	Sentence       string
}

// SplitParagraphs segments an ordered list of paragraph texts into
// (paragraph_index, sentence) pairs, in order, skipping empty paragraphs.
func SplitParagraphs(paragraphs []string, markdownAware bool) []Paragraph {
	var out []Paragraph
	splitFn := Split
	if markdownAware {
		splitFn = SplitMarkdown
	}
	for idx, para := range paragraphs {
		if strings.TrimSpace(para) == "" {
			continue
		}
		for _, sentence := range splitFn(para) {
			out = append(out, Paragraph{ParagraphIndex: idx, Sentence: sentence})
		}
	}
	return out
}
