// Package trackedchange mines (original, final) text pairs from DOCX
// revision markup and from plain TSV exports, and serves a relevance query
// that selects the pairs most useful as few-shot context for a batch of
// segments.
package trackedchange

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/supervertaler/supervertaler/internal/docx"
)

// Pair is one (original, final) paragraph-text pair where the two differ.
type Pair struct {
	Original string
	Final    string
}

// Store holds tracked-change pairs mined from one or more sources.
type Store struct {
	pairs  []Pair
	logger *slog.Logger
}

// New creates an empty Store. A nil logger defaults to slog.Default().
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger}
}

// Pairs returns all mined pairs, in insertion order.
func (s *Store) Pairs() []Pair {
	return append([]Pair(nil), s.pairs...)
}

// LoadDocx mines tracked-change pairs from a DOCX file, paragraph by
// paragraph, emitting a pair whenever the tidied original and final texts
// differ.
func (s *Store) LoadDocx(path string) error {
	doc, err := docx.Load(path)
	if err != nil {
		return err
	}
	return s.loadFromDocument(doc)
}

// LoadDocxBytes is the in-memory counterpart of LoadDocx.
func (s *Store) LoadDocxBytes(data []byte) error {
	doc, err := docx.LoadFromBytes(data)
	if err != nil {
		return err
	}
	return s.loadFromDocument(doc)
}

func (s *Store) loadFromDocument(doc *docx.Document) error {
	original := doc.ExtractAllText(docx.Original)
	final := doc.ExtractAllText(docx.Final)
	for i := range original {
		if original[i] != final[i] {
			s.pairs = append(s.pairs, Pair{Original: original[i], Final: final[i]})
		}
	}
	return nil
}

// LoadTSV reads tab-separated original<TAB>final pairs, one per line.
// Blank lines are skipped; the first line is treated as a header only when
// it contains both the words "original" and "final" case-insensitively;
// lines without a tab are rejected with a logged warning.
func (s *Store) LoadTSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if first {
			first = false
			lower := strings.ToLower(line)
			if strings.Contains(lower, "original") && strings.Contains(lower, "final") {
				continue
			}
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			s.logger.Warn("tracked change TSV line missing tab, skipping", "line", line)
			continue
		}
		orig, final := parts[0], parts[1]
		if orig != final {
			s.pairs = append(s.pairs, Pair{Original: orig, Final: final})
		}
	}
	return scanner.Err()
}

// LoadTSVFile opens path and delegates to LoadTSV.
func (s *Store) LoadTSVFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.LoadTSV(f)
}

// significantTokens lowercases and keeps tokens longer than 3 characters.
func significantTokens(text string) map[string]bool {
	out := make(map[string]bool)
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) {
		if len(field) > 3 {
			out[strings.ToLower(field)] = true
		}
	}
	return out
}

// Relevant returns up to n (original, final) pairs most relevant to the
// given source segments: exact case-insensitive matches between a pair's
// original and any source segment rank first; then pairs sharing at least
// 2 significant tokens (or at least half of a segment's significant
// tokens) with any source segment. De-duplication is stable.
func (s *Store) Relevant(sourceSegments []string, n int) []Pair {
	if n <= 0 || len(s.pairs) == 0 {
		return nil
	}

	lowerSources := make([]string, len(sourceSegments))
	sourceTokens := make([]map[string]bool, len(sourceSegments))
	for i, seg := range sourceSegments {
		lowerSources[i] = strings.ToLower(seg)
		sourceTokens[i] = significantTokens(seg)
	}

	type scored struct {
		pair  Pair
		score int // 2 = exact match, 1 = token overlap, 0 = no match
		index int
	}

	var candidates []scored
	for i, pair := range s.pairs {
		lowerOrig := strings.ToLower(pair.Original)
		best := 0
		for _, src := range lowerSources {
			if lowerOrig == src {
				best = 2
				break
			}
		}
		if best < 2 {
			pairTokens := significantTokens(pair.Original)
			for _, toks := range sourceTokens {
				shared := 0
				for t := range pairTokens {
					if toks[t] {
						shared++
					}
				}
				half := (len(toks) + 1) / 2
				if shared >= 2 || (half > 0 && shared >= half) {
					if best < 1 {
						best = 1
					}
				}
			}
		}
		if best > 0 {
			candidates = append(candidates, scored{pair: pair, score: best, index: i})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	seen := make(map[Pair]bool)
	var out []Pair
	for _, c := range candidates {
		if seen[c.pair] {
			continue
		}
		seen[c.pair] = true
		out = append(out, c.pair)
		if len(out) == n {
			break
		}
	}
	return out
}
