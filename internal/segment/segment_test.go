package segment

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type SegmentSuite struct {
	suite.Suite
}

func TestSegmentSuite(t *testing.T) {
	suite.Run(t, new(SegmentSuite))
}

func (s *SegmentSuite) TestSplit_AbbreviationNotTreatedAsBoundary() {
	got := Split("Dr. Smith arrived. He was late.")
	s.Equal([]string{"Dr. Smith arrived.", "He was late."}, got)
}

func (s *SegmentSuite) TestSplit_AbbreviationFollowedByShortSentenceMerges() {
	// "Inc." is an abbreviation and the following sentence is shorter than
	// 10 characters, so the merge rule folds it into the same sentence.
	got := Split("The package was sent to Acme Inc. Yes.")
	s.Equal([]string{"The package was sent to Acme Inc. Yes."}, got)
}

func (s *SegmentSuite) TestSplit_AbbreviationFollowedByLongCapitalisedSentenceSplits() {
	// "Inc." is an abbreviation, but the next sentence is capitalised and
	// at least 10 characters long, so it is a genuine new sentence: the
	// merge rule looks at the whole next sentence, not just its first word.
	got := Split("The package was sent to Acme Inc. It arrived.")
	s.Equal([]string{"The package was sent to Acme Inc.", "It arrived."}, got)
}

func (s *SegmentSuite) TestSplit_AbbreviationFollowedByLongCapitalisedWordSplits() {
	// "Inc." is an abbreviation, but the next candidate sentence is
	// capitalised and at least 10 characters long, which signals a genuine
	// new sentence rather than a continuation.
	got := Split("Contact Acme Inc. Nevertheless, the deal closed.")
	s.Equal([]string{"Contact Acme Inc.", "Nevertheless, the deal closed."}, got)
}

func (s *SegmentSuite) TestSplit_CascadingAbbreviationsMergeThenSplitOnLongSentence() {
	// "Dr." and "Inc." and "Corp." are all abbreviations, so they fold into
	// one sentence as the chain accumulates, but the merge stops once the
	// next candidate sentence ("The company is large.") is both capitalised
	// and at least 10 characters long.
	got := Split("Dr. Smith works at Inc. Corp. The company is large. What now? Yes!")
	s.Equal([]string{
		"Dr. Smith works at Inc. Corp.",
		"The company is large.",
		"What now?",
		"Yes!",
	}, got)
}

func (s *SegmentSuite) TestSplit_QuestionAndExclamationBoundaries() {
	got := Split("What now? Yes!")
	s.Equal([]string{"What now?", "Yes!"}, got)
}

func (s *SegmentSuite) TestSplit_EmptyInput() {
	s.Nil(Split(""))
	s.Nil(Split("   "))
}

func (s *SegmentSuite) TestSplit_SingleSegmentWithNoTerminator() {
	got := Split("no terminal punctuation here")
	s.Equal([]string{"no terminal punctuation here"}, got)
}

func (s *SegmentSuite) TestSplitMarkdown_ProtectsCodeSpanFromFalseSplit() {
	got := SplitMarkdown("Run `foo. Bar()` now. Then stop.")
	s.Equal([]string{"Run `foo. Bar()` now.", "Then stop."}, got)
}

func (s *SegmentSuite) TestSplitMarkdown_ProtectsInlineLink() {
	got := SplitMarkdown("See [the docs. Read it](https://example.com/a.b) first. Then proceed.")
	s.Require().Len(got, 2)
	s.Equal("See [the docs. Read it](https://example.com/a.b) first.", got[0])
	s.Equal("Then proceed.", got[1])
}

func (s *SegmentSuite) TestSplitParagraphs_SkipsEmptyAndTracksIndex() {
	paragraphs := []string{"Hello world. Second sentence.", "", "Another paragraph."}
	got := SplitParagraphs(paragraphs, false)
	s.Require().Len(got, 3)
	s.Equal(Paragraph{ParagraphIndex: 0, Sentence: "Hello world."}, got[0])
	s.Equal(Paragraph{ParagraphIndex: 0, Sentence: "Second sentence."}, got[1])
	s.Equal(Paragraph{ParagraphIndex: 2, Sentence: "Another paragraph."}, got[2])
}
