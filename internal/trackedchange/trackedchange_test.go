package trackedchange

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type TrackedChangeSuite struct {
	suite.Suite
}

func TestTrackedChangeSuite(t *testing.T) {
	suite.Run(t, new(TrackedChangeSuite))
}

func (s *TrackedChangeSuite) TestLoadTSV_SkipsHeaderBlankLinesAndIdenticalPairs() {
	store := New(nil)
	const tsv = "original\tfinal\n\nHi there\tHello there\nSame text\tSame text\n"
	s.Require().NoError(store.LoadTSV(strings.NewReader(tsv)))

	pairs := store.Pairs()
	s.Require().Len(pairs, 1)
	s.Equal(Pair{Original: "Hi there", Final: "Hello there"}, pairs[0])
}

func (s *TrackedChangeSuite) TestLoadTSV_SkipsLinesWithoutTab() {
	store := New(nil)
	s.Require().NoError(store.LoadTSV(strings.NewReader("no tab here\nA\tB\n")))

	pairs := store.Pairs()
	s.Require().Len(pairs, 1)
	s.Equal(Pair{Original: "A", Final: "B"}, pairs[0])
}

func (s *TrackedChangeSuite) TestRelevant_RanksExactMatchesAboveTokenOverlap() {
	store := New(nil)
	s.Require().NoError(store.LoadTSV(strings.NewReader(
		"The quarterly report is due\tHet kwartaalverslag is verschuldigd\n"+
			"Something entirely unrelated\tIets volledig ongerelateerds\n"+
			"quarterly report submission\tkwartaalverslag indiening\n",
	)))

	got := store.Relevant([]string{"quarterly report submission"}, 2)
	s.Require().Len(got, 2)
	s.Equal("quarterly report submission", got[0].Original)
}

func (s *TrackedChangeSuite) TestRelevant_ReturnsNilWhenNoPairsOrZeroRequested() {
	store := New(nil)
	s.Nil(store.Relevant([]string{"anything"}, 5))

	s.Require().NoError(store.LoadTSV(strings.NewReader("A\tB\n")))
	s.Nil(store.Relevant([]string{"A"}, 0))
}
