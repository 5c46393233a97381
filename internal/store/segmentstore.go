// Package store holds the SegmentStore: the owning entity set for a
// document's translation segments, its status lifecycle, filtering views,
// and dict-style serialisation for project-file round trips.
package store

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// Status is a Segment's position in the translation lifecycle.
type Status int

const (
	Untranslated Status = iota
	Draft
	Translated
	Approved
)

func (s Status) String() string {
	switch s {
	case Untranslated:
		return "untranslated"
	case Draft:
		return "draft"
	case Translated:
		return "translated"
	case Approved:
		return "approved"
	default:
		return "unknown"
	}
}

// ParseStatus parses a status string as produced by String/ToDict.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "untranslated":
		return Untranslated, nil
	case "draft":
		return Draft, nil
	case "translated":
		return Translated, nil
	case "approved":
		return Approved, nil
	default:
		return 0, errInvalidStatus
	}
}

var errInvalidStatus = errors.New("store: invalid status string")

// Errors surfaced by SegmentStore operations.
var (
	ErrNotFound          = errors.New("store: segment not found")
	ErrInvalidOperation  = errors.New("store: invalid operation")
)

// TableInfo locates a segment that is really a table cell.
type TableInfo struct {
	TableIndex int
	RowIndex   int
	CellIndex  int
}

// Segment is the central translation unit entity.
type Segment struct {
	ID               int
	Source           string
	Target           string
	Status           Status
	ParagraphID      int
	DocumentPosition int
	Style            string
	IsTableCell      bool
	Table            *TableInfo
	Notes            string
	CreatedAt        time.Time
	ModifiedAt       time.Time
	Modified         bool
}

// Store owns the Segment set for one document. All mutating methods are
// atomic: they either fully apply or leave the store unchanged. The
// owning thread is expected to be the sole mutator (§5 "SegmentStore:
// exclusive writer"); the mutex serialises access so that a violation of
// that discipline does not race.
type Store struct {
	mu       sync.Mutex
	segments map[int]*Segment
}

// New returns an empty Store.
func New() *Store {
	return &Store{segments: make(map[int]*Segment)}
}

// AddSegment appends seg, copying it into the store. Returns
// ErrInvalidOperation if its id already exists or if its invariants are
// violated (untranslated with non-empty target).
func (s *Store) AddSegment(seg Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.segments[seg.ID]; exists {
		return ErrInvalidOperation
	}
	if seg.Status == Untranslated && seg.Target != "" {
		return ErrInvalidOperation
	}
	if seg.Style == "" {
		seg.Style = "Normal"
	}
	now := time.Now()
	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = now
	}
	if seg.ModifiedAt.IsZero() {
		seg.ModifiedAt = now
	}
	cp := seg
	s.segments[seg.ID] = &cp
	return nil
}

// Get returns a copy of the segment with the given id.
func (s *Store) Get(id int) (Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := s.segments[id]
	if !ok {
		return Segment{}, ErrNotFound
	}
	return *seg, nil
}

// UpdateTarget sets a segment's target text. When status is nil, the
// status auto-promotes untranslated -> draft iff text is non-empty, and
// never regresses otherwise. Sets Modified and bumps ModifiedAt.
func (s *Store) UpdateTarget(id int, text string, status *Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := s.segments[id]
	if !ok {
		return ErrNotFound
	}

	newStatus := seg.Status
	if status != nil {
		newStatus = *status
	} else if seg.Status == Untranslated && text != "" {
		newStatus = Draft
	}

	seg.Target = text
	seg.Status = newStatus
	seg.Modified = true
	seg.ModifiedAt = time.Now()
	return nil
}

// SetStatus enforces the monotonic lattice: moving to a non-Untranslated
// status is allowed only if it is not lower than the current status
// (ErrInvalidOperation otherwise); moving to Untranslated requires the
// target already be empty.
func (s *Store) SetStatus(id int, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := s.segments[id]
	if !ok {
		return ErrNotFound
	}
	if status == Untranslated && seg.Target != "" {
		return ErrInvalidOperation
	}
	if status != Untranslated && status < seg.Status {
		return ErrInvalidOperation
	}
	seg.Status = status
	seg.Modified = true
	seg.ModifiedAt = time.Now()
	return nil
}

// Filter describes a query over the segment set.
type Filter struct {
	SourceSubstring string
	TargetSubstring string
	Status          *Status
}

func (f Filter) matches(seg *Segment) bool {
	if f.SourceSubstring != "" && !strings.Contains(strings.ToLower(seg.Source), strings.ToLower(f.SourceSubstring)) {
		return false
	}
	if f.TargetSubstring != "" && !strings.Contains(strings.ToLower(seg.Target), strings.ToLower(f.TargetSubstring)) {
		return false
	}
	if f.Status != nil && seg.Status != *f.Status {
		return false
	}
	return true
}

func (s *Store) sortedSegments() []*Segment {
	out := make([]*Segment, 0, len(s.segments))
	for _, seg := range s.segments {
		out = append(out, seg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentPosition < out[j].DocumentPosition })
	return out
}

// Filter returns the sub-sequence of segments matching f, in
// document_position order (hides non-matches).
func (s *Store) Filter(f Filter) []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Segment
	for _, seg := range s.sortedSegments() {
		if f.matches(seg) {
			out = append(out, *seg)
		}
	}
	return out
}

// HighlightEntry pairs a segment with whether it matched the filter, for
// the UI's highlight (keep-all, mark-matches) view.
type HighlightEntry struct {
	Segment Segment
	Matched bool
}

// Highlight returns every segment in document order, each flagged with
// whether it matches f.
func (s *Store) Highlight(f Filter) []HighlightEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HighlightEntry, 0, len(s.segments))
	for _, seg := range s.sortedSegments() {
		out = append(out, HighlightEntry{Segment: *seg, Matched: f.matches(seg)})
	}
	return out
}

// AllSourceTexts returns every source text, in document order.
func (s *Store) AllSourceTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.segments))
	for _, seg := range s.sortedSegments() {
		out = append(out, seg.Source)
	}
	return out
}

// Translation is one (id, text) pair for ApplyTranslations.
type Translation struct {
	ID   int
	Text string
}

// ApplyTranslations updates targets for the given (id, text) pairs,
// auto-promoting status as UpdateTarget does. Ids not present in the
// store are recorded as missing and do not abort the rest; segments
// whose ids were not in the input are left byte-identical.
func (s *Store) ApplyTranslations(translations []Translation) (ok map[int]bool, missing map[int]bool) {
	ok = make(map[int]bool)
	missing = make(map[int]bool)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range translations {
		seg, exists := s.segments[t.ID]
		if !exists {
			missing[t.ID] = true
			continue
		}
		newStatus := seg.Status
		if seg.Status == Untranslated && t.Text != "" {
			newStatus = Draft
		}
		seg.Target = t.Text
		seg.Status = newStatus
		seg.Modified = true
		seg.ModifiedAt = time.Now()
		ok[t.ID] = true
	}
	return ok, missing
}

// DictSegment is the serialisable field set for a Segment, used by
// ToDictList/FromDictList project-file round trips.
type DictSegment struct {
	ID               int
	Source           string
	Target           string
	Status           string
	ParagraphID      int
	DocumentPosition int
	Style            string
	IsTableCell      bool
	TableIndex       *int
	RowIndex         *int
	CellIndex        *int
	Notes            string
	CreatedAt        time.Time
	ModifiedAt       time.Time
	Modified         bool
}

// ToDictList serialises every segment, in document order.
func (s *Store) ToDictList() []DictSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DictSegment, 0, len(s.segments))
	for _, seg := range s.sortedSegments() {
		d := DictSegment{
			ID:               seg.ID,
			Source:           seg.Source,
			Target:           seg.Target,
			Status:           seg.Status.String(),
			ParagraphID:      seg.ParagraphID,
			DocumentPosition: seg.DocumentPosition,
			Style:            seg.Style,
			IsTableCell:      seg.IsTableCell,
			Notes:            seg.Notes,
			CreatedAt:        seg.CreatedAt,
			ModifiedAt:       seg.ModifiedAt,
			Modified:         seg.Modified,
		}
		if seg.Table != nil {
			d.TableIndex = &seg.Table.TableIndex
			d.RowIndex = &seg.Table.RowIndex
			d.CellIndex = &seg.Table.CellIndex
		}
		out = append(out, d)
	}
	return out
}

// FromDictList builds a new Store from the given dict segments,
// reconstructing all fields including table_info.
func FromDictList(dicts []DictSegment) (*Store, error) {
	s := New()
	for _, d := range dicts {
		status, err := ParseStatus(d.Status)
		if err != nil {
			return nil, err
		}
		seg := Segment{
			ID:               d.ID,
			Source:           d.Source,
			Target:           d.Target,
			Status:           status,
			ParagraphID:      d.ParagraphID,
			DocumentPosition: d.DocumentPosition,
			Style:            d.Style,
			IsTableCell:      d.IsTableCell,
			Notes:            d.Notes,
			CreatedAt:        d.CreatedAt,
			ModifiedAt:       d.ModifiedAt,
			Modified:         d.Modified,
		}
		if d.TableIndex != nil && d.RowIndex != nil && d.CellIndex != nil {
			seg.Table = &TableInfo{TableIndex: *d.TableIndex, RowIndex: *d.RowIndex, CellIndex: *d.CellIndex}
		}
		s.segments[seg.ID] = &seg
	}
	return s, nil
}

// Len returns the number of segments currently owned.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.segments)
}
