package inbox

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/errors"
	"github.com/Aman-CERP/docarchive/internal/store"
)

// Repository persists inbox entries in the archive database.
// It shares the database with the bundle store so that filing a document
// is a single transaction.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repository over an archive database opened
// with store.OpenArchiveDB.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a pending entry. It is a no-op, reporting false, when an
// entry already exists or the document has been filed.
func (r *Repository) Create(ctx context.Context, id docid.DocID, uploadedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO inbox (doc_id, uploaded_at, labels, properties)
		SELECT ?, ?, '[]', '{}'
		WHERE NOT EXISTS (SELECT 1 FROM filed WHERE doc_id = ?)`,
		id.String(), uploadedAt.UnixNano(), id.String())
	if err != nil {
		return false, errors.StorageFailure("insert inbox entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.StorageFailure("insert inbox entry", err)
	}
	return n == 1, nil
}

// Get returns the pending entry for id.
func (r *Repository) Get(ctx context.Context, id docid.DocID) (*Entry, error) {
	var (
		uploadedAt    int64
		labels, props string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT uploaded_at, labels, properties FROM inbox WHERE doc_id = ?`, id.String()).
		Scan(&uploadedAt, &labels, &props)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notPending(id)
	}
	if err != nil {
		return nil, errors.StorageFailure("query inbox entry", err)
	}

	l, p, err := store.UnmarshalMetadata(labels, props)
	if err != nil {
		return nil, errors.StorageFailure("decode inbox metadata", err)
	}
	return &Entry{
		ID:         id,
		UploadedAt: time.Unix(0, uploadedAt).UTC(),
		Labels:     l,
		Properties: p,
	}, nil
}

// List returns pending ids, oldest upload first, ties by id.
func (r *Repository) List(ctx context.Context) ([]docid.DocID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT doc_id FROM inbox ORDER BY uploaded_at, doc_id`)
	if err != nil {
		return nil, errors.StorageFailure("list inbox", err)
	}
	defer rows.Close()

	ids := []docid.DocID{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.StorageFailure("scan inbox", err)
		}
		id, err := docid.Parse(raw)
		if err != nil {
			return nil, errors.StorageFailure("decode inbox id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageFailure("list inbox", err)
	}
	return ids, nil
}

// Count returns the number of pending entries.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inbox`).Scan(&n); err != nil {
		return 0, errors.StorageFailure("count inbox", err)
	}
	return n, nil
}

// Save writes the labels and properties of an existing pending entry.
func (r *Repository) Save(ctx context.Context, e *Entry) error {
	labels, props, err := store.MarshalMetadata(e.Labels, e.Properties)
	if err != nil {
		return errors.StorageFailure("encode inbox metadata", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE inbox SET labels = ?, properties = ? WHERE doc_id = ?`,
		labels, props, e.ID.String())
	if err != nil {
		return errors.StorageFailure("update inbox entry", err)
	}
	return requireOneRow(res, e.ID)
}

// Remove drops the pending entry for id.
func (r *Repository) Remove(ctx context.Context, id docid.DocID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM inbox WHERE doc_id = ?`, id.String())
	if err != nil {
		return errors.StorageFailure("delete inbox entry", err)
	}
	return requireOneRow(res, id)
}

// File records e's metadata as the document's filed metadata and removes
// the pending entry, in one transaction.
func (r *Repository) File(ctx context.Context, e *Entry, filedAt time.Time) error {
	labels, props, err := store.MarshalMetadata(e.Labels, e.Properties)
	if err != nil {
		return errors.StorageFailure("encode filed metadata", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StorageFailure("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM inbox WHERE doc_id = ?`, e.ID.String())
	if err != nil {
		return errors.StorageFailure("delete inbox entry", err)
	}
	if err := requireOneRow(res, e.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO filed (doc_id, labels, properties, filed_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			labels = excluded.labels,
			properties = excluded.properties,
			filed_at = excluded.filed_at`,
		e.ID.String(), labels, props, filedAt.UnixNano()); err != nil {
		return errors.StorageFailure("insert filed metadata", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageFailure("commit archive", err)
	}
	return nil
}

func requireOneRow(res sql.Result, id docid.DocID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.StorageFailure("inbox rows affected", err)
	}
	if n == 0 {
		return notPending(id)
	}
	return nil
}

func notPending(id docid.DocID) error {
	return errors.NotFound(fmt.Sprintf("document %s is not in the inbox", id))
}
