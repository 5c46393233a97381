package store

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type StoreSuite struct {
	suite.Suite
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) seedStore() *Store {
	st := New()
	s.Require().NoError(st.AddSegment(Segment{ID: 1, Source: "Hello", DocumentPosition: 0}))
	s.Require().NoError(st.AddSegment(Segment{ID: 2, Source: "World", DocumentPosition: 1}))
	return st
}

func (s *StoreSuite) TestUpdateTarget_AutoPromotesUntranslatedToDraft() {
	st := s.seedStore()
	s.Require().NoError(st.UpdateTarget(1, "Bonjour", nil))
	seg, err := st.Get(1)
	s.Require().NoError(err)
	s.Equal(Draft, seg.Status)
	s.True(seg.Modified)
}

func (s *StoreSuite) TestUpdateTarget_NeverRegressesStatus() {
	st := s.seedStore()
	approved := Approved
	s.Require().NoError(st.SetStatus(1, Translated))
	s.Require().NoError(st.UpdateTarget(1, "Bonjour encore", nil))
	seg, err := st.Get(1)
	s.Require().NoError(err)
	s.Equal(Translated, seg.Status)

	s.Require().NoError(st.SetStatus(1, approved))
	seg, err = st.Get(1)
	s.Require().NoError(err)
	s.Equal(Approved, seg.Status)
}

func (s *StoreSuite) TestSetStatus_UntranslatedRequiresEmptyTarget() {
	st := s.seedStore()
	s.Require().NoError(st.UpdateTarget(1, "Bonjour", nil))
	err := st.SetStatus(1, Untranslated)
	s.ErrorIs(err, ErrInvalidOperation)

	s.Require().NoError(st.UpdateTarget(1, "", nil))
	err = st.SetStatus(1, Untranslated)
	s.NoError(err)
}

func (s *StoreSuite) TestApplyTranslations_MissingIdsDoNotAbortAndLeaveOthersUntouched() {
	st := s.seedStore()
	before, err := st.Get(2)
	s.Require().NoError(err)

	ok, missing := st.ApplyTranslations([]Translation{
		{ID: 1, Text: "Bonjour"},
		{ID: 99, Text: "ignored"},
	})
	s.True(ok[1])
	s.True(missing[99])

	after, err := st.Get(2)
	s.Require().NoError(err)
	s.Equal(before, after)
}

func (s *StoreSuite) TestFilter_BySourceSubstringInDocumentOrder() {
	st := New()
	s.Require().NoError(st.AddSegment(Segment{ID: 2, Source: "banana split", DocumentPosition: 1}))
	s.Require().NoError(st.AddSegment(Segment{ID: 1, Source: "apple pie", DocumentPosition: 0}))
	s.Require().NoError(st.AddSegment(Segment{ID: 3, Source: "banana bread", DocumentPosition: 2}))

	got := st.Filter(Filter{SourceSubstring: "banana"})
	s.Require().Len(got, 2)
	s.Equal(1, got[0].DocumentPosition)
	s.Equal(2, got[1].DocumentPosition)
}

func (s *StoreSuite) TestHighlight_KeepsAllSegmentsFlaggingMatches() {
	st := s.seedStore()
	got := st.Highlight(Filter{SourceSubstring: "hello"})
	s.Require().Len(got, 2)
	s.True(got[0].Matched)
	s.False(got[1].Matched)
}

func (s *StoreSuite) TestToDictList_FromDictList_RoundTrip() {
	st := s.seedStore()
	s.Require().NoError(st.UpdateTarget(1, "Bonjour", nil))
	s.Require().NoError(st.AddSegment(Segment{
		ID:               3,
		Source:           "Cell",
		DocumentPosition: 2,
		IsTableCell:      true,
		Table:            &TableInfo{TableIndex: 0, RowIndex: 1, CellIndex: 2},
	}))

	dicts := st.ToDictList()
	restored, err := FromDictList(dicts)
	s.Require().NoError(err)
	s.Equal(dicts, restored.ToDictList())
}
