package promptctx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/supervertaler/supervertaler/internal/trackedchange"
)

type PromptCtxSuite struct {
	suite.Suite
}

func TestPromptCtxSuite(t *testing.T) {
	suite.Run(t, new(PromptCtxSuite))
}

func (s *PromptCtxSuite) TestGetTemplateVars_ExtractsUniqueNamesInFirstSeenOrder() {
	vars := GetTemplateVars("Translate from {source_lang} to {target_lang}, again {source_lang}.")
	s.Equal([]string{"source_lang", "target_lang"}, vars)
}

func (s *PromptCtxSuite) TestExpandSystemPrompt_SubstitutesKnownVars() {
	var logged []string
	got := ExpandSystemPrompt("You translate {source_lang} into {target_lang}.", "default", "en", "nl", func(msg string) {
		logged = append(logged, msg)
	})
	s.Equal("You translate en into nl.", got)
	s.Empty(logged)
}

func (s *PromptCtxSuite) TestExpandSystemPrompt_FallsBackOnUnknownVar() {
	var logged []string
	got := ExpandSystemPrompt("Use {glossary} to translate {source_lang}.", "Default prompt for {source_lang} to {target_lang}.", "en", "nl", func(msg string) {
		logged = append(logged, msg)
	})
	s.Equal("Default prompt for en to nl.", got)
	s.NotEmpty(logged)
}

func (s *PromptCtxSuite) TestNormalizeFigureID_StripsSeparatorsAndLowercases() {
	s.Equal("1a", NormalizeFigureID("1A"))
	s.Equal("2b", NormalizeFigureID("2-b"))
	s.Equal("2b", NormalizeFigureID("2 b"))
}

func (s *PromptCtxSuite) TestAssemble_TranslateModeOrderAndFigureInjection() {
	blocks := Assemble(Request{
		Mode: ModeTranslate,
		Segments: []SegmentInput{
			{LineNumber: 2, Source: "See Figure 1A."},
			{LineNumber: 1, Source: "Introduction text."},
		},
		FullSourceContext:    []string{"Introduction text.", "See Figure 1A."},
		SystemPromptTemplate: "Translate {source_lang} to {target_lang}.",
		DefaultSystemPrompt:  "Translate.",
		SourceLang:           "en",
		TargetLang:           "nl",
		FigureImages:         map[string][]byte{"1a": {1, 2, 3}},
	})

	s.Require().NotEmpty(blocks)
	s.Equal(KindText, blocks[0].Kind)
	s.Equal("Translate en to nl.", blocks[0].Text)

	var sawImage bool
	var lastTextIndex int
	for i, b := range blocks {
		if b.Kind == KindImage {
			sawImage = true
			s.Equal([]byte{1, 2, 3}, b.ImageBytes)
		}
		if b.Kind == KindText {
			lastTextIndex = i
		}
	}
	s.True(sawImage, "expected an image block for the figure 1A reference")
	s.Equal(KindText, blocks[lastTextIndex].Kind)

	// Segments must appear in ascending line-number order regardless of input order.
	var segmentLines []string
	for _, b := range blocks {
		if b.Kind == KindText && (b.Text == "1. Introduction text." || b.Text == "2. See Figure 1A.") {
			segmentLines = append(segmentLines, b.Text)
		}
	}
	s.Equal([]string{"1. Introduction text.", "2. See Figure 1A."}, segmentLines)
}

func (s *PromptCtxSuite) TestAssemble_ProofreadModeIncludesExistingTranslationAndChangesSummary() {
	blocks := Assemble(Request{
		Mode: ModeProofread,
		Segments: []SegmentInput{
			{LineNumber: 1, Source: "Hello", ExistingTarget: "Hallo"},
		},
		FullSourceContext:    []string{"Hello"},
		FullTargetContext:    []string{"Hallo"},
		SystemPromptTemplate: "Proofread {source_lang} to {target_lang}.",
		DefaultSystemPrompt:  "Proofread.",
		SourceLang:           "en",
		TargetLang:           "nl",
	})

	var sawExisting, sawSummary bool
	for _, b := range blocks {
		if b.Text == "1. EXISTING TRANSLATION: Hallo" {
			sawExisting = true
		}
		if b.Kind == KindText && b.Text != "" && containsChangesSummary(b.Text) {
			sawSummary = true
		}
	}
	s.True(sawExisting)
	s.True(sawSummary)
}

func (s *PromptCtxSuite) TestAssemble_IncludesTrackedChangeExcerptsWhenPresent() {
	blocks := Assemble(Request{
		Mode:                 ModeTranslate,
		Segments:              []SegmentInput{{LineNumber: 1, Source: "Hello"}},
		FullSourceContext:     []string{"Hello"},
		SystemPromptTemplate:  "{source_lang}/{target_lang}",
		DefaultSystemPrompt:   "default",
		SourceLang:            "en",
		TargetLang:            "nl",
		TrackedChangePairs:    []trackedchange.Pair{{Original: "Hi", Final: "Hello"}},
	})

	var sawExcerpt bool
	for _, b := range blocks {
		if b.Kind == KindText && containsAll(b.Text, "Tracked-change examples", "Hi", "Hello") {
			sawExcerpt = true
		}
	}
	s.True(sawExcerpt)
}

func (s *PromptCtxSuite) TestAssemble_IncludesTermAndTMHintsWhenPresent() {
	blocks := Assemble(Request{
		Mode:                 ModeTranslate,
		Segments:              []SegmentInput{{LineNumber: 1, Source: "Hello"}},
		FullSourceContext:     []string{"Hello"},
		SystemPromptTemplate:  "{source_lang}/{target_lang}",
		DefaultSystemPrompt:   "default",
		SourceLang:            "en",
		TargetLang:            "nl",
		TermHits:              []string{"invoice -> factuur"},
		TMFuzzyHints:          []string{"Hi there ~ Hallo daar (85%)"},
	})

	var sawTerms, sawTM bool
	for _, b := range blocks {
		if b.Kind == KindText && containsAll(b.Text, "Glossary terms", "invoice -> factuur") {
			sawTerms = true
		}
		if b.Kind == KindText && containsAll(b.Text, "Similar past translations", "85%") {
			sawTM = true
		}
	}
	s.True(sawTerms)
	s.True(sawTM)
}

func containsChangesSummary(text string) bool {
	return containsAll(text, "CHANGES SUMMARY START")
}

func containsAll(text string, substrs ...string) bool {
	for _, sub := range substrs {
		if !strings.Contains(text, sub) {
			return false
		}
	}
	return true
}
