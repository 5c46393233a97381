package tmstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

type TMStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func TestTMStoreSuite(t *testing.T) {
	suite.Run(t, new(TMStoreSuite))
}

func (s *TMStoreSuite) SetupTest() {
	s.ctx = context.Background()
	path := filepath.Join(s.T().TempDir(), "supervertaler.db")
	store, err := Open(path)
	s.Require().NoError(err)
	s.store = store
}

func (s *TMStoreSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *TMStoreSuite) TestAddUnit_IdempotentUnderDoubleInsertion() {
	tu := TranslationUnit{SourceText: "Hello world", TargetText: "Hallo wereld", SourceLang: "en", TargetLang: "nl", TMID: "default"}
	id1, err := s.store.AddUnit(s.ctx, tu)
	s.Require().NoError(err)

	id2, err := s.store.AddUnit(s.ctx, tu)
	s.Require().NoError(err)
	s.Equal(id1, id2)

	match, err := s.store.ExactMatch(s.ctx, ExactMatchQuery{Source: "Hello world", SourceLang: "en", TargetLang: "nl"})
	s.Require().NoError(err)
	s.Require().NotNil(match)
	s.GreaterOrEqual(match.Unit.UsageCount, 2)
}

func (s *TMStoreSuite) TestExactMatch_Bidirectional() {
	_, err := s.store.AddUnit(s.ctx, TranslationUnit{
		SourceText: "Hello world", TargetText: "Hallo wereld", SourceLang: "en", TargetLang: "nl", TMID: "default",
	})
	s.Require().NoError(err)

	match, err := s.store.ExactMatch(s.ctx, ExactMatchQuery{
		Source: "Hallo wereld", SourceLang: "en", TargetLang: "nl", Bidirectional: true,
	})
	s.Require().NoError(err)
	s.Require().NotNil(match)
	s.True(match.ReverseMatch)
	s.Equal("Hello world", match.Unit.TargetText)
}

func (s *TMStoreSuite) TestFuzzyMatch_RanksBySimilarity() {
	for _, tu := range []TranslationUnit{
		{SourceText: "The quick brown fox jumps", TargetText: "De snelle bruine vos springt", SourceLang: "en", TargetLang: "nl", TMID: "default"},
		{SourceText: "The quick brown fox runs", TargetText: "De snelle bruine vos rent", SourceLang: "en", TargetLang: "nl", TMID: "default"},
		{SourceText: "A completely different sentence", TargetText: "Een compleet andere zin", SourceLang: "en", TargetLang: "nl", TMID: "default"},
	} {
		_, err := s.store.AddUnit(s.ctx, tu)
		s.Require().NoError(err)
	}

	results, err := s.store.FuzzyMatch(s.ctx, FuzzyMatchQuery{
		Source: "The quick brown fox jumps high", SourceLang: "en", TargetLang: "nl",
		Threshold: 0.3, MaxResults: 5,
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(results)
	s.Equal("The quick brown fox jumps", results[0].Unit.SourceText)
}

func (s *TMStoreSuite) TestFuzzyMatch_BidirectionalScoresAgainstTargetAndSwaps() {
	_, err := s.store.AddUnit(s.ctx, TranslationUnit{
		SourceText: "The quick brown fox jumps", TargetText: "De snelle bruine vos springt",
		SourceLang: "en", TargetLang: "nl", TMID: "default",
	})
	s.Require().NoError(err)

	results, err := s.store.FuzzyMatch(s.ctx, FuzzyMatchQuery{
		Source: "De snelle bruine vos springt hoog", SourceLang: "en", TargetLang: "nl",
		Threshold: 0.3, MaxResults: 5, Bidirectional: true,
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(results)
	hit := results[0]
	s.True(hit.ReverseMatch)
	s.Equal("De snelle bruine vos springt", hit.Unit.SourceText)
	s.Equal("The quick brown fox jumps", hit.Unit.TargetText)
	s.Equal("nl", hit.Unit.SourceLang)
	s.Equal("en", hit.Unit.TargetLang)
}

func (s *TMStoreSuite) TestFuzzyMatch_EmptyQueryReturnsEmptyNotError() {
	results, err := s.store.FuzzyMatch(s.ctx, FuzzyMatchQuery{Source: "  ", Threshold: 0.3, MaxResults: 5})
	s.NoError(err)
	s.Empty(results)
}

func (s *TMStoreSuite) TestConcordance_SubstringSearch() {
	_, err := s.store.AddUnit(s.ctx, TranslationUnit{
		SourceText: "The annual report is due", TargetText: "Het jaarverslag is verschuldigd", SourceLang: "en", TargetLang: "nl", TMID: "default",
	})
	s.Require().NoError(err)

	results, err := s.store.Concordance(s.ctx, "annual")
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal("The annual report is due", results[0].SourceText)
}

func (s *TMStoreSuite) TestDeleteUnit_RemovesFromFTS() {
	_, err := s.store.AddUnit(s.ctx, TranslationUnit{
		SourceText: "Delete me", TargetText: "Verwijder mij", SourceLang: "en", TargetLang: "nl", TMID: "default",
	})
	s.Require().NoError(err)

	s.Require().NoError(s.store.DeleteUnit(s.ctx, "default", "Delete me", "Verwijder mij"))

	match, err := s.store.ExactMatch(s.ctx, ExactMatchQuery{Source: "Delete me", SourceLang: "en", TargetLang: "nl"})
	s.Require().NoError(err)
	s.Nil(match)
}
