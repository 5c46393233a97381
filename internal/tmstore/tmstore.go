// Package tmstore is the SQLite-backed translation memory store: exact
// hash lookup, FTS5 fuzzy search ranked by sequence similarity,
// bidirectional language matching, and concordance search.
package tmstore

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Errors surfaced by the store. A repeated (source_hash, target_text,
// tm_id) is not an error: AddUnit updates the existing row instead.
var ErrStorageUnavailable = errors.New("tmstore: storage unavailable")

// TranslationUnit is one TM entry.
type TranslationUnit struct {
	ID            int64
	SourceText    string
	TargetText    string
	SourceLang    string
	TargetLang    string
	TMID          string
	ProjectID     string
	ContextBefore string
	ContextAfter  string
	SourceHash    string
	UsageCount    int
	CreatedDate   time.Time
	ModifiedDate  time.Time
}

// Store wraps a single SQLite connection, serialising access with a
// mutex (§5: "implementations that run multiple worker threads must
// serialise DB access").
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and
// ensures the schema and FTS5 triggers exist.
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

func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS translation_units (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_text TEXT NOT NULL,
	target_text TEXT NOT NULL,
	source_lang TEXT NOT NULL,
	target_lang TEXT NOT NULL,
	tm_id TEXT NOT NULL,
	project_id TEXT,
	context_before TEXT,
	context_after TEXT,
	source_hash TEXT NOT NULL,
	usage_count INTEGER NOT NULL DEFAULT 0,
	created_date DATETIME NOT NULL,
	modified_date DATETIME NOT NULL,
	UNIQUE(source_hash, target_text, tm_id)
);
CREATE INDEX IF NOT EXISTS idx_tu_source_hash ON translation_units(source_hash);
CREATE INDEX IF NOT EXISTS idx_tu_tm_id ON translation_units(tm_id);
CREATE INDEX IF NOT EXISTS idx_tu_project_id ON translation_units(project_id);
CREATE INDEX IF NOT EXISTS idx_tu_langs ON translation_units(source_lang, target_lang);

CREATE VIRTUAL TABLE IF NOT EXISTS translation_units_fts USING fts5(
	source_text, target_text, content='translation_units', content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS tu_ai AFTER INSERT ON translation_units BEGIN
	INSERT INTO translation_units_fts(rowid, source_text, target_text)
	VALUES (new.id, new.source_text, new.target_text);
END;
CREATE TRIGGER IF NOT EXISTS tu_ad AFTER DELETE ON translation_units BEGIN
	INSERT INTO translation_units_fts(translation_units_fts, rowid, source_text, target_text)
	VALUES ('delete', old.id, old.source_text, old.target_text);
END;
CREATE TRIGGER IF NOT EXISTS tu_au AFTER UPDATE ON translation_units BEGIN
	INSERT INTO translation_units_fts(translation_units_fts, rowid, source_text, target_text)
	VALUES ('delete', old.id, old.source_text, old.target_text);
	INSERT INTO translation_units_fts(rowid, source_text, target_text)
	VALUES (new.id, new.source_text, new.target_text);
END;
`

func (s *Store) initSchema() error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func sourceHash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// AddUnit upserts a translation unit. On conflict with
// (source_hash, target_text, tm_id), usage_count is incremented and
// modified_date refreshed, matching the existing row's id.
func (s *Store) AddUnit(ctx context.Context, tu TranslationUnit) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := sourceHash(tu.SourceText)
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM translation_units WHERE source_hash = ? AND target_text = ? AND tm_id = ?`,
		hash, tu.TargetText, tu.TMID,
	).Scan(&existingID)

	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx,
			`UPDATE translation_units SET usage_count = usage_count + 1, modified_date = ? WHERE id = ?`,
			now, existingID,
		); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return existingID, nil
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO translation_units
			 (source_text, target_text, source_lang, target_lang, tm_id, project_id,
			  context_before, context_after, source_hash, usage_count, created_date, modified_date)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			tu.SourceText, tu.TargetText, tu.SourceLang, tu.TargetLang, tu.TMID, nullableString(tu.ProjectID),
			nullableString(tu.ContextBefore), nullableString(tu.ContextAfter), hash, now, now,
		)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// ExactMatchQuery parameterises ExactMatch.
type ExactMatchQuery struct {
	Source        string
	TMIDs         []string
	SourceLang    string
	TargetLang    string
	Bidirectional bool
}

// ExactMatchResult is one exact-match hit, with bidirectional metadata.
type ExactMatchResult struct {
	Unit         TranslationUnit
	ReverseMatch bool
}

// ExactMatch looks up an exact source hash match, optionally also
// checking, when Bidirectional is set, whether the query instead matches
// a stored row's target_text for the same language pair (flagging that
// hit ReverseMatch=true and presenting it with source/target swapped, so
// SourceText/TargetText always describe the query's own direction). Ties
// break on higher usage_count, then later modified_date. The winning
// row's usage_count is incremented.
func (s *Store) ExactMatch(ctx context.Context, q ExactMatchQuery) (*ExactMatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	forward, err := s.lookupExact(ctx, q.Source, q.TMIDs, q.SourceLang, q.TargetLang, false)
	if err != nil {
		return nil, err
	}
	var best *ExactMatchResult
	if forward != nil {
		best = &ExactMatchResult{Unit: *forward}
	}

	if q.Bidirectional {
		reverse, err := s.lookupExact(ctx, q.Source, q.TMIDs, q.SourceLang, q.TargetLang, true)
		if err != nil {
			return nil, err
		}
		if reverse != nil {
			swapped := swapUnit(*reverse)
			if best == nil || betterTie(swapped, best.Unit) {
				best = &ExactMatchResult{Unit: swapped, ReverseMatch: true}
			}
		}
	}

	if best == nil {
		return nil, nil
	}
	if err := s.bumpUsage(ctx, best.Unit.ID); err != nil {
		return nil, err
	}
	best.Unit.UsageCount++
	return best, nil
}

func betterTie(a, b TranslationUnit) bool {
	if a.UsageCount != b.UsageCount {
		return a.UsageCount > b.UsageCount
	}
	return a.ModifiedDate.After(b.ModifiedDate)
}

// swapUnit presents a row matched on its target side as if it were
// matched on its source side: the query's hit column becomes SourceText,
// the stored source becomes TargetText, languages swap with them, and
// SourceHash is recomputed over the new SourceText.
func swapUnit(tu TranslationUnit) TranslationUnit {
	tu.SourceText, tu.TargetText = tu.TargetText, tu.SourceText
	tu.SourceLang, tu.TargetLang = tu.TargetLang, tu.SourceLang
	tu.SourceHash = sourceHash(tu.SourceText)
	return tu
}

// lookupExact matches query against source_text (reverse=false) or
// target_text (reverse=true) for a row in the given language pair.
// sourceLang/targetLang are always the row's own source_lang/target_lang
// columns, regardless of reverse: a reverse lookup only changes which
// text column the query is compared against, not the stored language
// pair being searched.
func (s *Store) lookupExact(ctx context.Context, query string, tmIDs []string, sourceLang, targetLang string, reverse bool) (*TranslationUnit, error) {
	sqlQuery := `SELECT id, source_text, target_text, source_lang, target_lang, tm_id,
	                 COALESCE(project_id, ''), COALESCE(context_before, ''), COALESCE(context_after, ''),
	                 source_hash, usage_count, created_date, modified_date
	          FROM translation_units WHERE `
	var args []interface{}
	if reverse {
		sqlQuery += "target_text = ?"
		args = append(args, query)
	} else {
		sqlQuery += "source_hash = ? AND source_text = ?"
		args = append(args, sourceHash(query), query)
	}

	if sourceLang != "" {
		sqlQuery += " AND source_lang = ?"
		args = append(args, sourceLang)
	}
	if targetLang != "" {
		sqlQuery += " AND target_lang = ?"
		args = append(args, targetLang)
	}
	if len(tmIDs) > 0 {
		placeholders := make([]string, len(tmIDs))
		for i, id := range tmIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		sqlQuery += " AND tm_id IN (" + strings.Join(placeholders, ",") + ")"
	}
	sqlQuery += " ORDER BY usage_count DESC, modified_date DESC LIMIT 1"

	row := s.db.QueryRowContext(ctx, sqlQuery, args...)
	var tu TranslationUnit
	if err := row.Scan(&tu.ID, &tu.SourceText, &tu.TargetText, &tu.SourceLang, &tu.TargetLang, &tu.TMID,
		&tu.ProjectID, &tu.ContextBefore, &tu.ContextAfter, &tu.SourceHash, &tu.UsageCount,
		&tu.CreatedDate, &tu.ModifiedDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return &tu, nil
}

func (s *Store) bumpUsage(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE translation_units SET usage_count = usage_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// FuzzyMatchQuery parameterises FuzzyMatch.
type FuzzyMatchQuery struct {
	Source        string
	TMIDs         []string
	SourceLang    string
	TargetLang    string
	Threshold     float64 // in [0,1]
	MaxResults    int
	Bidirectional bool
}

// FuzzyMatchResult is one fuzzy hit, carrying its similarity score.
type FuzzyMatchResult struct {
	Unit         TranslationUnit
	Similarity   float64
	MatchPercent int
	ReverseMatch bool
}

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9]+`)

// FuzzyMatch tokenises the query, builds an FTS5 OR query, retrieves up
// to 5x MaxResults candidates, scores each with sequence similarity, and
// returns the ones at or above Threshold, sorted descending, truncated
// to MaxResults.
func (s *Store) FuzzyMatch(ctx context.Context, q FuzzyMatchQuery) ([]FuzzyMatchResult, error) {
	tokens := tokenPattern.FindAllString(q.Source, -1)
	var kept []string
	for _, t := range tokens {
		if len(t) > 1 {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.fuzzySearch(ctx, kept, q, q.SourceLang, q.TargetLang, false)
	if err != nil {
		return nil, err
	}
	if q.Bidirectional {
		// Same language pair as the forward search: only the column the
		// query is scored against changes, not which rows qualify.
		reverse, err := s.fuzzySearch(ctx, kept, q, q.SourceLang, q.TargetLang, true)
		if err != nil {
			return nil, err
		}
		results = append(results, reverse...)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > q.MaxResults && q.MaxResults > 0 {
		results = results[:q.MaxResults]
	}
	return results, nil
}

func (s *Store) fuzzySearch(ctx context.Context, tokens []string, q FuzzyMatchQuery, sourceLang, targetLang string, reverse bool) ([]FuzzyMatchResult, error) {
	ftsQuery := make([]string, len(tokens))
	for i, t := range tokens {
		ftsQuery[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	matchExpr := strings.Join(ftsQuery, " OR ")

	limit := 5 * q.MaxResults
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT tu.id, tu.source_text, tu.target_text, tu.source_lang, tu.target_lang, tu.tm_id,
	                 COALESCE(tu.project_id, ''), COALESCE(tu.context_before, ''), COALESCE(tu.context_after, ''),
	                 tu.source_hash, tu.usage_count, tu.created_date, tu.modified_date
	          FROM translation_units_fts
	          JOIN translation_units tu ON tu.id = translation_units_fts.rowid
	          WHERE translation_units_fts MATCH ?`
	args := []interface{}{matchExpr}

	if sourceLang != "" {
		query += " AND tu.source_lang = ?"
		args = append(args, sourceLang)
	}
	if targetLang != "" {
		query += " AND tu.target_lang = ?"
		args = append(args, targetLang)
	}
	if len(q.TMIDs) > 0 {
		placeholders := make([]string, len(q.TMIDs))
		for i, id := range q.TMIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += " AND tu.tm_id IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	threshold := q.Threshold
	var out []FuzzyMatchResult
	for rows.Next() {
		var tu TranslationUnit
		if err := rows.Scan(&tu.ID, &tu.SourceText, &tu.TargetText, &tu.SourceLang, &tu.TargetLang, &tu.TMID,
			&tu.ProjectID, &tu.ContextBefore, &tu.ContextAfter, &tu.SourceHash, &tu.UsageCount,
			&tu.CreatedDate, &tu.ModifiedDate); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		compareTo := tu.SourceText
		if reverse {
			compareTo = tu.TargetText
		}
		similarity := sequenceSimilarity(q.Source, compareTo)
		if similarity < threshold {
			continue
		}
		if reverse {
			tu = swapUnit(tu)
		}
		out = append(out, FuzzyMatchResult{
			Unit:         tu,
			Similarity:   similarity,
			MatchPercent: int(math.Floor(similarity * 100)),
			ReverseMatch: reverse,
		})
	}
	return out, rows.Err()
}

// sequenceSimilarity scores two strings in [0,1] via a Ratcliff/Obershelp
// style ratio: 2*M / T, where M is the length of the longest common
// subsequence and T is the combined length of both strings. No
// difflib-equivalent sequence matcher exists among the example
// dependencies (confirmed absent from the retrieval pack), so this is a
// small hand-written stand-in rather than a wired third-party library.
func sequenceSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	ar, br := []rune(a), []rune(b)
	m, n := len(ar), len(br)
	if m == 0 || n == 0 {
		return 0
	}
	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if ar[i-1] == br[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[n]
	return 2 * float64(lcs) / float64(m+n)
}

// Concordance does a substring search across both source and target,
// limited to 100 rows, most recently modified first.
func (s *Store) Concordance(ctx context.Context, substring string) ([]TranslationUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	like := "%" + substring + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_text, target_text, source_lang, target_lang, tm_id,
		       COALESCE(project_id, ''), COALESCE(context_before, ''), COALESCE(context_after, ''),
		       source_hash, usage_count, created_date, modified_date
		FROM translation_units
		WHERE source_text LIKE ? OR target_text LIKE ?
		ORDER BY modified_date DESC
		LIMIT 100`, like, like)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []TranslationUnit
	for rows.Next() {
		var tu TranslationUnit
		if err := rows.Scan(&tu.ID, &tu.SourceText, &tu.TargetText, &tu.SourceLang, &tu.TargetLang, &tu.TMID,
			&tu.ProjectID, &tu.ContextBefore, &tu.ContextAfter, &tu.SourceHash, &tu.UsageCount,
			&tu.CreatedDate, &tu.ModifiedDate); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		out = append(out, tu)
	}
	return out, rows.Err()
}

// DeleteUnit removes one unit matching (tm_id, source, target). The FTS
// index is kept consistent by the AFTER DELETE trigger within the same
// implicit transaction.
func (s *Store) DeleteUnit(ctx context.Context, tmID, source, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM translation_units WHERE tm_id = ? AND source_text = ? AND target_text = ?`,
		tmID, source, target)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// ClearTM deletes every unit belonging to tmID.
func (s *Store) ClearTM(ctx context.Context, tmID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM translation_units WHERE tm_id = ?`, tmID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
