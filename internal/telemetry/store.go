package telemetry

import (
	"context"
	"database/sql"
	"fmt"
)

// MaxStoredMisses bounds the search_misses table.
const MaxStoredMisses = 100

// SQLiteStore implements Store on the archive database. The tables are
// created by the archive database migrations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an open archive database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &SQLiteStore{db: db}, nil
}

// Save adds d to the stored totals in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, d Delta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for key, counts := range d.Daily {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO search_daily (date, bucket, queries, zero_results)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(date, bucket) DO UPDATE SET
				queries = queries + excluded.queries,
				zero_results = zero_results + excluded.zero_results
		`, key.Day, string(key.Bucket), counts.Queries, counts.ZeroResults); err != nil {
			return fmt.Errorf("upsert daily search counts: %w", err)
		}
	}

	lastSeen := d.LastSeen.Unix()
	for term, count := range d.Terms {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO search_terms (term, count, last_seen)
			VALUES (?, ?, ?)
			ON CONFLICT(term) DO UPDATE SET
				count = count + excluded.count,
				last_seen = MAX(last_seen, excluded.last_seen)
		`, term, count, lastSeen); err != nil {
			return fmt.Errorf("upsert term count: %w", err)
		}
	}

	if len(d.Misses) > 0 {
		for _, miss := range d.Misses {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO search_misses (query, searched_at) VALUES (?, ?)`,
				miss.Query, miss.At.Unix()); err != nil {
				return fmt.Errorf("insert zero-result query: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM search_misses
			WHERE id NOT IN (SELECT id FROM search_misses ORDER BY id DESC LIMIT ?)
		`, MaxStoredMisses); err != nil {
			return fmt.Errorf("trim zero-result queries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Load returns the stored totals.
func (s *SQLiteStore) Load(ctx context.Context, topTerms, misses int) (*Snapshot, error) {
	snap := &Snapshot{Latency: make(map[LatencyBucket]int64)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT bucket, SUM(queries), SUM(zero_results)
		FROM search_daily
		GROUP BY bucket
	`)
	if err != nil {
		return nil, fmt.Errorf("query search counts: %w", err)
	}
	for rows.Next() {
		var bucket string
		var queries, zero int64
		if err := rows.Scan(&bucket, &queries, &zero); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan search counts: %w", err)
		}
		snap.Latency[LatencyBucket(bucket)] = queries
		snap.Queries += queries
		snap.ZeroResults += zero
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT term, count FROM search_terms
		ORDER BY count DESC, term ASC
		LIMIT ?
	`, topTerms)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan term: %w", err)
		}
		snap.TopTerms = append(snap.TopTerms, tc)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT query FROM search_misses
		ORDER BY id DESC
		LIMIT ?
	`, misses)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan zero-result query: %w", err)
		}
		snap.RecentMisses = append(snap.RecentMisses, q)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	return snap, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	return nil
}
