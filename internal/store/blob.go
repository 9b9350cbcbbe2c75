package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/errors"
)

// BlobStore keeps bundle bytes on disk, one file per content address.
// Files are sharded by the first two bytes of the id: ab/cd/abcd....
type BlobStore struct {
	root string
}

// NewBlobStore creates a blob store rooted at dir.
func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.StorageFailure("create blob directory", err)
	}
	return &BlobStore{root: dir}, nil
}

// Root returns the blob directory.
func (b *BlobStore) Root() string {
	return b.root
}

func (b *BlobStore) path(id docid.DocID) string {
	s := id.String()
	return filepath.Join(b.root, s[0:2], s[2:4], s)
}

// Put writes content under id unless a blob already exists there.
// The write is atomic: readers see either nothing or the whole blob.
func (b *BlobStore) Put(id docid.DocID, content []byte) error {
	p := b.path(id)
	if _, err := os.Stat(p); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.StorageFailure("stat blob", err)
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.StorageFailure("create blob shard", err)
	}
	if err := renameio.WriteFile(p, content, 0o644); err != nil {
		return errors.StorageFailure(fmt.Sprintf("write blob %s", id.Short()), err)
	}
	return nil
}

// Get reads the blob stored under id and verifies its address.
func (b *BlobStore) Get(id docid.DocID) ([]byte, error) {
	content, err := os.ReadFile(b.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(fmt.Sprintf("bundle %s not found", id))
		}
		return nil, errors.StorageFailure(fmt.Sprintf("read blob %s", id.Short()), err)
	}
	if docid.FromContent(content) != id {
		return nil, errors.StorageFailure(
			fmt.Sprintf("read blob %s", id.Short()),
			fmt.Errorf("content does not match its address"))
	}
	return content, nil
}

// Delete removes the blob stored under id. A missing blob is not an error.
func (b *BlobStore) Delete(id docid.DocID) error {
	if err := os.Remove(b.path(id)); err != nil && !os.IsNotExist(err) {
		return errors.StorageFailure(fmt.Sprintf("delete blob %s", id.Short()), err)
	}
	return nil
}

// Exists reports whether a blob is stored under id.
func (b *BlobStore) Exists(id docid.DocID) (bool, error) {
	_, err := os.Stat(b.path(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.StorageFailure("stat blob", err)
}
