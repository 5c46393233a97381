// Package termbasestore is the SQLite-backed termbase store: termbase
// CRUD, per-project activation with ranking reassignment, and term
// search with language inheritance and project-or-global visibility.
package termbasestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrStorageUnavailable           = errors.New("termbasestore: storage unavailable")
	ErrProjectTermbaseAlreadyExists = errors.New("termbasestore: project already has a project termbase")
	ErrNotFound                     = errors.New("termbasestore: not found")
)

// Termbase is a container of terms.
type Termbase struct {
	ID                int64
	Name              string
	SourceLang        string
	TargetLang        string
	ProjectID         string
	IsGlobal          bool
	Priority          int
	IsProjectTermbase bool
	Ranking           *int
	TermCount         int
}

// Term is one entry in a termbase.
type Term struct {
	ID           int64
	TermbaseID   int64
	SourceTerm   string
	TargetTerm   string
	Priority     int
	SourceLang   string
	TargetLang   string
	Domain       string
	Notes        string
	Project      string
	Client       string
	Forbidden    bool
	TermUUID     string
}

type Store struct {
	mu sync.Mutex
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS termbases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	source_lang TEXT,
	target_lang TEXT,
	project_id TEXT,
	is_global INTEGER NOT NULL,
	priority INTEGER NOT NULL DEFAULT 99,
	is_project_termbase INTEGER NOT NULL DEFAULT 0,
	description TEXT
);
CREATE TABLE IF NOT EXISTS termbase_activations (
	termbase_id INTEGER NOT NULL,
	project_id TEXT NOT NULL,
	is_active INTEGER NOT NULL,
	activated_date DATETIME NOT NULL,
	ranking INTEGER,
	PRIMARY KEY (termbase_id, project_id)
);
CREATE TABLE IF NOT EXISTS terms (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	termbase_id INTEGER NOT NULL,
	source_term TEXT NOT NULL,
	target_term TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 99,
	source_lang TEXT,
	target_lang TEXT,
	domain TEXT,
	notes TEXT,
	project TEXT,
	client TEXT,
	forbidden INTEGER NOT NULL DEFAULT 0,
	term_uuid TEXT NOT NULL UNIQUE
);
CREATE INDEX IF NOT EXISTS idx_terms_termbase ON terms(termbase_id);
CREATE INDEX IF NOT EXISTS idx_terms_source ON terms(source_term);
`

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// CreateTermbase creates a new termbase. is_project_termbase=true fails
// with ErrProjectTermbaseAlreadyExists if projectID already has one.
func (s *Store) CreateTermbase(ctx context.Context, name, sourceLang, targetLang, projectID string, isGlobal, isProjectTermbase bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if isProjectTermbase {
		var count int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM termbases WHERE project_id = ? AND is_project_termbase = 1`, projectID,
		).Scan(&count)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		if count > 0 {
			return 0, ErrProjectTermbaseAlreadyExists
		}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO termbases (name, source_lang, target_lang, project_id, is_global, priority, is_project_termbase)
		 VALUES (?, ?, ?, ?, ?, 99, ?)`,
		name, nullable(sourceLang), nullable(targetLang), nullable(projectID), boolInt(isGlobal), boolInt(isProjectTermbase))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return res.LastInsertId()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ListTermbases returns all termbases with aggregated term counts,
// ordered is_project_termbase DESC, is_global DESC, name ASC.
func (s *Store) ListTermbases(ctx context.Context) ([]Termbase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT tb.id, tb.name, COALESCE(tb.source_lang, ''), COALESCE(tb.target_lang, ''),
		       COALESCE(tb.project_id, ''), tb.is_global, tb.priority, tb.is_project_termbase,
		       (SELECT COUNT(*) FROM terms t WHERE t.termbase_id = tb.id)
		FROM termbases tb
		ORDER BY tb.is_project_termbase DESC, tb.is_global DESC, tb.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []Termbase
	for rows.Next() {
		var tb Termbase
		var isGlobal, isProject int
		if err := rows.Scan(&tb.ID, &tb.Name, &tb.SourceLang, &tb.TargetLang, &tb.ProjectID,
			&isGlobal, &tb.Priority, &isProject, &tb.TermCount); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		tb.IsGlobal = isGlobal != 0
		tb.IsProjectTermbase = isProject != 0
		out = append(out, tb)
	}
	return out, rows.Err()
}

// Activate marks termbaseID active for projectID, then reassigns
// rankings for that project in one transaction.
func (s *Store) Activate(ctx context.Context, termbaseID int64, projectID string) error {
	return s.setActiveAndReassign(ctx, termbaseID, projectID, true)
}

// Deactivate marks termbaseID inactive for projectID, clears its
// ranking, then reassigns rankings for the remaining active termbases.
func (s *Store) Deactivate(ctx context.Context, termbaseID int64, projectID string) error {
	return s.setActiveAndReassign(ctx, termbaseID, projectID, false)
}

func (s *Store) setActiveAndReassign(ctx context.Context, termbaseID int64, projectID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO termbase_activations (termbase_id, project_id, is_active, activated_date, ranking)
		VALUES (?, ?, ?, ?, NULL)
		ON CONFLICT(termbase_id, project_id) DO UPDATE SET is_active = excluded.is_active,
		    activated_date = CASE WHEN excluded.is_active = 1 THEN excluded.activated_date ELSE termbase_activations.activated_date END`,
		termbaseID, projectID, boolInt(active), now)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if err := reassignRankings(ctx, tx, projectID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// reassignRankings clears all rankings for projectID, then assigns
// 1..K to the active, non-project termbases in activated_date order.
func reassignRankings(ctx context.Context, tx *sql.Tx, projectID string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE termbase_activations SET ranking = NULL WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT ta.termbase_id
		FROM termbase_activations ta
		JOIN termbases tb ON tb.id = ta.termbase_id
		WHERE ta.project_id = ? AND ta.is_active = 1 AND tb.is_project_termbase = 0
		ORDER BY ta.activated_date ASC`, projectID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	for i, id := range ids {
		ranking := i + 1
		if _, err := tx.ExecContext(ctx,
			`UPDATE termbase_activations SET ranking = ? WHERE termbase_id = ? AND project_id = ?`,
			ranking, id, projectID); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}
	return nil
}

// Ranking returns the current ranking for (termbaseID, projectID), or
// nil if inactive / unranked (project termbases are never ranked).
func (s *Store) Ranking(ctx context.Context, termbaseID int64, projectID string) (*int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ranking sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT ranking FROM termbase_activations WHERE termbase_id = ? AND project_id = ?`,
		termbaseID, projectID).Scan(&ranking)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !ranking.Valid {
		return nil, nil
	}
	r := int(ranking.Int64)
	return &r, nil
}

// AddTerm inserts a term, generating a fresh UUID if termUUID is empty.
func (s *Store) AddTerm(ctx context.Context, t Term) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.TermUUID == "" {
		t.TermUUID = uuid.NewString()
	}
	if t.Priority == 0 {
		t.Priority = 99
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO terms (termbase_id, source_term, target_term, priority, source_lang, target_lang,
		                    domain, notes, project, client, forbidden, term_uuid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TermbaseID, t.SourceTerm, t.TargetTerm, t.Priority, nullable(t.SourceLang), nullable(t.TargetLang),
		nullable(t.Domain), nullable(t.Notes), nullable(t.Project), nullable(t.Client), boolInt(t.Forbidden), t.TermUUID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return res.LastInsertId()
}

// SearchQuery parameterises SearchTerms.
type SearchQuery struct {
	Text       string
	SourceLang string
	TargetLang string
	ProjectID  string
	MinLength  int
}

// SearchHit is one term match labelled with its termbase's ranking.
type SearchHit struct {
	Term            Term
	TermbaseID      int64
	TermbaseName    string
	TermbaseRanking *int // nil = project termbase or unranked
	IsProjectTerm   bool
}

// SearchTerms finds terms whose source_term equals the query text, or
// appears as a whole word within it, applying language inheritance and
// project-or-global visibility, ordered priority ASC then source_term
// ASC.
func (s *Store) SearchTerms(ctx context.Context, q SearchQuery) ([]SearchHit, error) {
	if q.MinLength > 0 && len(q.Text) < q.MinLength {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.termbase_id, t.source_term, t.target_term, t.priority,
		       COALESCE(t.source_lang, ''), COALESCE(t.target_lang, ''), COALESCE(t.domain, ''),
		       COALESCE(t.notes, ''), COALESCE(t.project, ''), COALESCE(t.client, ''), t.forbidden, t.term_uuid,
		       tb.name, COALESCE(tb.source_lang, ''), COALESCE(tb.target_lang, ''), COALESCE(tb.project_id, ''),
		       tb.is_project_termbase
		FROM terms t
		JOIN termbases tb ON tb.id = t.termbase_id
		ORDER BY t.priority ASC, t.source_term ASC`)
	// Note: the project/global filter and the substring/word-boundary
	// match are applied in Go below, not in SQL: the match rule ("equals,
	// or appears as a word at start/middle/end") is not expressible as a
	// single portable SQLite predicate without FTS5 phrase quirks around
	// punctuation, so every term row is pulled and filtered here. Termbase sets are small (hundreds to low thousands
	// of terms), so this is not a hot path.
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	lowerText := " " + strings.ToLower(q.Text) + " "
	var hits []SearchHit
	for rows.Next() {
		var term Term
		var tbName, tbSourceLang, tbTargetLang, tbProjectID string
		var forbidden int
		var isProjectTermbase int
		if err := rows.Scan(&term.ID, &term.TermbaseID, &term.SourceTerm, &term.TargetTerm, &term.Priority,
			&term.SourceLang, &term.TargetLang, &term.Domain, &term.Notes, &term.Project, &term.Client,
			&forbidden, &term.TermUUID, &tbName, &tbSourceLang, &tbTargetLang, &tbProjectID, &isProjectTermbase); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		term.Forbidden = forbidden != 0

		if !projectVisible(tbProjectID, q.ProjectID) {
			continue
		}
		if !languageMatches(term.SourceLang, tbSourceLang, q.SourceLang) {
			continue
		}
		if !languageMatches(term.TargetLang, tbTargetLang, q.TargetLang) {
			continue
		}
		if !termMatches(lowerText, strings.ToLower(q.Text), term.SourceTerm) {
			continue
		}

		ranking, err := s.rankingLocked(ctx, term.TermbaseID, q.ProjectID)
		if err != nil {
			return nil, err
		}
		hits = append(hits, SearchHit{
			Term:            term,
			TermbaseID:      term.TermbaseID,
			TermbaseName:    tbName,
			TermbaseRanking: ranking,
			IsProjectTerm:   isProjectTermbase != 0,
		})
	}
	return hits, rows.Err()
}

// rankingLocked reads ranking while s.mu is already held by the caller.
func (s *Store) rankingLocked(ctx context.Context, termbaseID int64, projectID string) (*int, error) {
	var ranking sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT ranking FROM termbase_activations WHERE termbase_id = ? AND project_id = ?`,
		termbaseID, projectID).Scan(&ranking)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !ranking.Valid {
		return nil, nil
	}
	r := int(ranking.Int64)
	return &r, nil
}

func projectVisible(termbaseProjectID, queryProjectID string) bool {
	if termbaseProjectID == "" {
		return true // global termbase, visible everywhere
	}
	return termbaseProjectID == queryProjectID
}

// languageMatches implements "match or inherit": a term matches a
// requested language if its own lang equals it, or its lang is null and
// its termbase's lang equals it, or both are null (no constraint).
func languageMatches(termLang, termbaseLang, requested string) bool {
	if requested == "" {
		return true
	}
	if termLang != "" {
		return termLang == requested
	}
	if termbaseLang != "" {
		return termbaseLang == requested
	}
	return true
}

// termMatches reports whether term appears as the whole query, or as a
// whole word within it (bounded by spaces at start, middle, or end).
func termMatches(paddedLowerText, lowerText, sourceTerm string) bool {
	lowerTerm := strings.ToLower(sourceTerm)
	if lowerTerm == lowerText {
		return true
	}
	return strings.Contains(paddedLowerText, " "+lowerTerm+" ")
}
