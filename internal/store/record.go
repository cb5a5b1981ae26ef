package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blobvault/blobvault/internal/shared"
)

// FileRecords stores JSON-encoded records of type T under a base directory
// inside the trusted root. The on-disk filename is the hex SHA-256 digest
// of the record id, never the raw id.
type FileRecords[T any] struct {
	root string
	dir  string
	id   func(T) string
}

// NewFileRecords creates a record store rooted at root, with records under
// the subdir base directory. The id function extracts a record's
// identifier. The base directory is created lazily on first use.
func NewFileRecords[T any](root, subdir string, id func(T) string) *FileRecords[T] {
	root = filepath.Clean(root)
	return &FileRecords[T]{
		root: root,
		dir:  filepath.Join(root, subdir),
		id:   id,
	}
}

func (s *FileRecords[T]) path(id string) string {
	digest := sha256.Sum256([]byte(id))
	return filepath.Join(s.dir, hex.EncodeToString(digest[:])+".json")
}

func (s *FileRecords[T]) Save(_ context.Context, rec T) error {
	id := s.id(rec)
	if id == "" {
		return shared.ErrorEmptyIdentifier
	}

	if err := ensureDir(s.dir); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", id, err)
	}

	path := s.path(id)
	parent, err := canonicalPath(s.root, filepath.Dir(path))
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(parent, filepath.Base(path)), data, 0o660); err != nil {
		return fmt.Errorf("write record %s: %w", id, err)
	}

	return nil
}

func (s *FileRecords[T]) Load(_ context.Context, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, shared.ErrorEmptyIdentifier
	}

	if err := ensureDir(s.dir); err != nil {
		return zero, err
	}

	path, err := canonicalPath(s.root, s.path(id))
	if err != nil {
		return zero, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return zero, fmt.Errorf("read record %s: %w", id, err)
	}

	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return zero, fmt.Errorf("record %s: %w: %v", id, shared.ErrorInvalidRecord, err)
	}

	return rec, nil
}

func (s *FileRecords[T]) Delete(_ context.Context, id string) error {
	if id == "" {
		return shared.ErrorEmptyIdentifier
	}

	if err := ensureDir(s.dir); err != nil {
		return err
	}

	path, err := canonicalPath(s.root, s.path(id))
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}

	return nil
}

// List enumerates every stored record. Decoding happens lazily, one entry
// per Next call; each List call returns a fresh iterator.
func (s *FileRecords[T]) List(_ context.Context) (Iter[T], error) {
	if err := ensureDir(s.dir); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	return &fileRecordIter[T]{dir: s.dir, entries: entries}, nil
}

type fileRecordIter[T any] struct {
	dir     string
	entries []os.DirEntry
	current T
	err     error
}

func (it *fileRecordIter[T]) Next() bool {
	if it.err != nil || len(it.entries) == 0 {
		return false
	}

	entry := it.entries[0]
	it.entries = it.entries[1:]

	data, err := os.ReadFile(filepath.Join(it.dir, entry.Name()))
	if err != nil {
		it.err = fmt.Errorf("read record %s: %w", entry.Name(), err)
		return false
	}

	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		it.err = fmt.Errorf("record %s: %w: %v", entry.Name(), shared.ErrorInvalidRecord, err)
		return false
	}

	it.current = rec
	return true
}

func (it *fileRecordIter[T]) Record() T {
	return it.current
}

func (it *fileRecordIter[T]) Err() error {
	return it.err
}
