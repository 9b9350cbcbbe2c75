package search

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/errors"
	"github.com/Aman-CERP/docarchive/internal/store"
)

// SQLiteIndex implements Index with a postings table in SQLite.
type SQLiteIndex struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	tokenizer *Tokenizer
	closed    bool
}

// Verify interface implementation at compile time
var _ Index = (*SQLiteIndex)(nil)

// NewSQLiteIndex opens the postings database at path.
// If path is empty, creates an in-memory index for testing.
func NewSQLiteIndex(path string, cfg Config) (*SQLiteIndex, error) {
	db, err := store.OpenSQLite(path)
	if err != nil {
		return nil, errors.IndexFailure("open index", err)
	}

	idx := &SQLiteIndex{
		db:        db,
		path:      path,
		tokenizer: NewTokenizer(cfg.MinTokenLength, cfg.StopWords),
	}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.IndexFailure("initialize index schema", err)
	}
	return idx, nil
}

// initSchema creates the postings table.
func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- One row per (term, document, fragment) with the term's frequency there.
	CREATE TABLE IF NOT EXISTS postings (
		token    TEXT NOT NULL,
		doc_id   TEXT NOT NULL,
		fragment INTEGER NOT NULL,
		tf       INTEGER NOT NULL,
		PRIMARY KEY (token, doc_id, fragment)
	) WITHOUT ROWID;
	CREATE INDEX IF NOT EXISTS idx_postings_doc ON postings(doc_id, fragment);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// IndexFragment replaces the postings of (id, fragment).
func (s *SQLiteIndex) IndexFragment(ctx context.Context, id docid.DocID, fragment int, text string) error {
	tf := s.tokenizer.TermFrequencies(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.IndexFailure("index fragment", fmt.Errorf("index is closed"))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.IndexFailure("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM postings WHERE doc_id = ? AND fragment = ?`, id.String(), fragment); err != nil {
		return errors.IndexFailure("clear fragment postings", err)
	}

	insertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO postings (token, doc_id, fragment, tf) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return errors.IndexFailure("prepare insert", err)
	}
	defer insertStmt.Close()

	for token, n := range tf {
		if _, err := insertStmt.ExecContext(ctx, token, id.String(), fragment, n); err != nil {
			return errors.IndexFailure(fmt.Sprintf("insert posting %q", token), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.IndexFailure("commit postings", err)
	}
	return nil
}

// RemoveDocument drops every posting of id.
func (s *SQLiteIndex) RemoveDocument(ctx context.Context, id docid.DocID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.IndexFailure("remove document", fmt.Errorf("index is closed"))
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM postings WHERE doc_id = ?`, id.String()); err != nil {
		return errors.IndexFailure("remove document", err)
	}
	return nil
}

// Search returns documents containing every query term.
func (s *SQLiteIndex) Search(ctx context.Context, query string) ([]Hit, error) {
	terms := s.tokenizer.QueryTerms(query)
	if len(terms) == 0 {
		return []Hit{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.IndexFailure("search", fmt.Errorf("index is closed"))
	}

	placeholders := make([]string, len(terms))
	args := make([]any, 0, len(terms)+1)
	for i, term := range terms {
		placeholders[i] = "?"
		args = append(args, term)
	}
	args = append(args, len(terms))

	q := fmt.Sprintf(`
		SELECT doc_id, SUM(tf) AS score, GROUP_CONCAT(DISTINCT fragment)
		FROM postings
		WHERE token IN (%s)
		GROUP BY doc_id
		HAVING COUNT(DISTINCT token) = ?
		ORDER BY score DESC, doc_id ASC`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.IndexFailure("query postings", err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var (
			rawID     string
			score     int
			fragments string
		)
		if err := rows.Scan(&rawID, &score, &fragments); err != nil {
			return nil, errors.IndexFailure("scan posting", err)
		}
		id, err := docid.Parse(rawID)
		if err != nil {
			slog.Warn("skipping posting with invalid id", slog.String("id", rawID))
			continue
		}
		hits = append(hits, Hit{ID: id, Score: score, Fragments: parseFragmentList(fragments)})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.IndexFailure("query postings", err)
	}

	// SQL already orders; sorting again keeps the tie-break independent of collation.
	sortHits(hits)
	return hits, nil
}

// Stats returns index statistics.
func (s *SQLiteIndex) Stats(ctx context.Context) (*IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.IndexFailure("stats", fmt.Errorf("index is closed"))
	}

	st := &IndexStats{Backend: string(BackendSQLite)}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(DISTINCT doc_id) FROM postings),
			(SELECT COUNT(*) FROM (SELECT DISTINCT doc_id, fragment FROM postings))`).
		Scan(&st.Documents, &st.Fragments)
	if err != nil {
		return nil, errors.IndexFailure("stats", err)
	}
	return st, nil
}

// Close checkpoints the WAL and closes the database. Safe to call twice.
func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

// parseFragmentList parses a GROUP_CONCAT list of fragment indexes into a sorted slice.
func parseFragmentList(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
