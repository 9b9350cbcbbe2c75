package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/errors"
	"github.com/Aman-CERP/docarchive/internal/keylock"
)

// DefaultCacheSize is the number of bundles kept in the read cache.
const DefaultCacheSize = 64

// SQLiteBundleStore implements BundleStore on a blob directory plus the
// archive database.
type SQLiteBundleStore struct {
	db    *sql.DB
	blobs *BlobStore
	cache *lru.Cache[docid.DocID, []byte]
	locks *keylock.Map
	now   func() time.Time
}

// Verify interface implementation at compile time
var _ BundleStore = (*SQLiteBundleStore)(nil)

// BundleStoreOption configures a SQLiteBundleStore.
type BundleStoreOption func(*SQLiteBundleStore)

// WithClock overrides the time source used for creation timestamps.
func WithClock(now func() time.Time) BundleStoreOption {
	return func(s *SQLiteBundleStore) {
		s.now = now
	}
}

// NewSQLiteBundleStore creates a bundle store over db, keeping blobs under blobDir.
// cacheSize bounds the number of bundles cached in memory; 0 uses the default.
func NewSQLiteBundleStore(db *sql.DB, blobDir string, cacheSize int, opts ...BundleStoreOption) (*SQLiteBundleStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	blobs, err := NewBlobStore(filepath.Clean(blobDir))
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[docid.DocID, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create bundle cache: %w", err)
	}

	s := &SQLiteBundleStore{
		db:    db,
		blobs: blobs,
		cache: cache,
		locks: keylock.New(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PutBundle stores content under its content address.
// The existence check and the write happen under a lock for that address, so
// concurrent puts of identical content store it once and exactly one caller
// sees created == true.
func (s *SQLiteBundleStore) PutBundle(ctx context.Context, content []byte) (docid.DocID, bool, error) {
	id := docid.FromContent(content)

	unlock := s.locks.Lock(id.String())
	defer unlock()

	if err := s.blobs.Put(id, content); err != nil {
		return id, false, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO bundles (doc_id, size, fragment_count, created_at) VALUES (?, ?, 0, ?)`,
		id.String(), len(content), s.now().UnixNano())
	if err != nil {
		return id, false, errors.StorageFailure("insert bundle", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return id, false, errors.StorageFailure("insert bundle", err)
	}

	created := n == 1
	if created {
		slog.Debug("bundle stored",
			slog.String("id", id.String()),
			slog.Int("size", len(content)))
	}
	return id, created, nil
}

// GetBundle returns the bundle stored under id with its filed metadata, if any.
func (s *SQLiteBundleStore) GetBundle(ctx context.Context, id docid.DocID) (*Bundle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT b.size, b.fragment_count, b.created_at, f.labels, f.properties, f.filed_at
		FROM bundles b
		LEFT JOIN filed f ON f.doc_id = b.doc_id
		WHERE b.doc_id = ?`, id.String())

	var (
		size, createdAt int64
		fragmentCount   int
		labels, props   sql.NullString
		filedAt         sql.NullInt64
	)
	if err := row.Scan(&size, &fragmentCount, &createdAt, &labels, &props, &filedAt); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound(fmt.Sprintf("bundle %s not found", id))
		}
		return nil, errors.StorageFailure("query bundle", err)
	}

	content, err := s.content(id)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		ID:            id,
		Content:       content,
		Size:          size,
		FragmentCount: fragmentCount,
		CreatedAt:     time.Unix(0, createdAt).UTC(),
	}
	if filedAt.Valid {
		l, p, err := UnmarshalMetadata(labels.String, props.String)
		if err != nil {
			return nil, errors.StorageFailure("decode filed metadata", err)
		}
		b.Filed = &FiledMetadata{
			Labels:     l,
			Properties: p,
			FiledAt:    time.Unix(0, filedAt.Int64).UTC(),
		}
	}
	return b, nil
}

// content returns the bundle bytes, from cache when possible.
func (s *SQLiteBundleStore) content(id docid.DocID) ([]byte, error) {
	if c, ok := s.cache.Get(id); ok {
		return c, nil
	}
	c, err := s.blobs.Get(id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, c)
	return c, nil
}

// PutFragment stores frag for bundle id. Fragments are immutable: storing an
// index that already exists keeps the original.
func (s *SQLiteBundleStore) PutFragment(ctx context.Context, id docid.DocID, frag Fragment) error {
	if frag.Index < 0 {
		return errors.OutOfRange(fmt.Sprintf("fragment index %d is negative", frag.Index))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StorageFailure("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM bundles WHERE doc_id = ?`, id.String()).Scan(&exists)
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(fmt.Sprintf("bundle %s not found", id))
	}
	if err != nil {
		return errors.StorageFailure("query bundle", err)
	}

	var text sql.NullString
	if frag.Text != nil {
		text = sql.NullString{String: *frag.Text, Valid: true}
	}
	content := frag.Content
	if content == nil {
		content = []byte{}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO fragments (doc_id, seq, content, text) VALUES (?, ?, ?, ?)`,
		id.String(), frag.Index, content, text); err != nil {
		return errors.StorageFailure(fmt.Sprintf("insert fragment %d", frag.Index), err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE bundles SET fragment_count = MAX(fragment_count, ?) WHERE doc_id = ?`,
		frag.Index+1, id.String()); err != nil {
		return errors.StorageFailure("update fragment count", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageFailure("commit fragment", err)
	}
	return nil
}

// GetFragment returns fragment index of bundle id.
func (s *SQLiteBundleStore) GetFragment(ctx context.Context, id docid.DocID, index int) (*Fragment, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT fragment_count FROM bundles WHERE doc_id = ?`, id.String()).Scan(&count)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(fmt.Sprintf("bundle %s not found", id))
	}
	if err != nil {
		return nil, errors.StorageFailure("query bundle", err)
	}
	if index < 0 || index >= count {
		return nil, errors.OutOfRange(
			fmt.Sprintf("fragment %d out of range: bundle %s has %d fragments", index, id.Short(), count))
	}

	var (
		content []byte
		text    sql.NullString
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT content, text FROM fragments WHERE doc_id = ? AND seq = ?`,
		id.String(), index).Scan(&content, &text)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(fmt.Sprintf("fragment %d of bundle %s not found", index, id))
	}
	if err != nil {
		return nil, errors.StorageFailure("query fragment", err)
	}

	frag := &Fragment{Index: index, Content: content}
	if text.Valid {
		t := text.String
		frag.Text = &t
	}
	return frag, nil
}

// DeleteBundle removes the bundle, its fragments and any filed metadata.
// Deleting an absent bundle succeeds.
func (s *SQLiteBundleStore) DeleteBundle(ctx context.Context, id docid.DocID) error {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StorageFailure("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM fragments WHERE doc_id = ?`,
		`DELETE FROM filed WHERE doc_id = ?`,
		`DELETE FROM bundles WHERE doc_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id.String()); err != nil {
			return errors.StorageFailure("delete bundle", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.StorageFailure("commit bundle delete", err)
	}

	s.cache.Remove(id)
	if err := s.blobs.Delete(id); err != nil {
		return err
	}

	slog.Debug("bundle deleted", slog.String("id", id.String()))
	return nil
}

// ListFiled returns archived documents ordered by filing time, then id.
func (s *SQLiteBundleStore) ListFiled(ctx context.Context) ([]docid.DocID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc_id FROM filed ORDER BY filed_at, doc_id`)
	if err != nil {
		return nil, errors.StorageFailure("list filed", err)
	}
	defer rows.Close()

	ids := []docid.DocID{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.StorageFailure("scan filed", err)
		}
		id, err := docid.Parse(raw)
		if err != nil {
			return nil, errors.StorageFailure("decode filed id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageFailure("list filed", err)
	}
	return ids, nil
}

// Stats returns store statistics.
func (s *SQLiteBundleStore) Stats(ctx context.Context) (*StoreStats, error) {
	var st StoreStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM bundles),
			(SELECT COALESCE(SUM(size), 0) FROM bundles),
			(SELECT COUNT(*) FROM fragments),
			(SELECT COUNT(*) FROM filed)`).
		Scan(&st.Bundles, &st.TotalBytes, &st.Fragments, &st.Filed)
	if err != nil {
		return nil, errors.StorageFailure("query stats", err)
	}
	return &st, nil
}

// textBatchSize bounds the rows ForEachText reads per query.
const textBatchSize = 500

// ForEachText calls fn for every fragment that carries text, ordered by id then index.
// Rows are read in keyset batches and released before fn runs, so fn may use the store.
func (s *SQLiteBundleStore) ForEachText(ctx context.Context, fn func(id docid.DocID, index int, text string) error) error {
	type row struct {
		id    docid.DocID
		index int
		text  string
	}

	lastID, lastSeq := "", -1
	for {
		rows, err := s.db.QueryContext(ctx, `
			SELECT doc_id, seq, text FROM fragments
			WHERE text IS NOT NULL AND (doc_id > ? OR (doc_id = ? AND seq > ?))
			ORDER BY doc_id, seq
			LIMIT ?`, lastID, lastID, lastSeq, textBatchSize)
		if err != nil {
			return errors.StorageFailure("scan fragment text", err)
		}

		batch := make([]row, 0, textBatchSize)
		for rows.Next() {
			var (
				raw string
				r   row
			)
			if err := rows.Scan(&raw, &r.index, &r.text); err != nil {
				rows.Close()
				return errors.StorageFailure("scan fragment text", err)
			}
			id, err := docid.Parse(raw)
			if err != nil {
				rows.Close()
				return errors.StorageFailure("decode fragment id", err)
			}
			r.id = id
			batch = append(batch, r)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return errors.StorageFailure("scan fragment text", err)
		}

		for _, r := range batch {
			if err := fn(r.id, r.index, r.text); err != nil {
				return err
			}
		}
		if len(batch) < textBatchSize {
			return nil
		}
		last := batch[len(batch)-1]
		lastID, lastSeq = last.id.String(), last.index
	}
}
