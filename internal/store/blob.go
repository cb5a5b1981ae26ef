package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/blobvault/blobvault/internal/shared"
)

// FileBlobs stores raw blobs under a base directory inside the trusted
// root, named by their literal key. Keys may contain path separators;
// intermediate directories are created as needed, but only after the
// target has been proven to stay under the root.
type FileBlobs struct {
	root string
	dir  string
}

func NewFileBlobs(root, subdir string) *FileBlobs {
	root = filepath.Clean(root)
	return &FileBlobs{
		root: root,
		dir:  filepath.Join(root, subdir),
	}
}

func (s *FileBlobs) path(id string) (string, error) {
	if id == "" {
		return "", shared.ErrorEmptyIdentifier
	}

	path := filepath.Join(s.dir, id)
	if err := containedPath(s.dir, path); err != nil {
		return "", err
	}
	return path, nil
}

func (s *FileBlobs) Save(_ context.Context, id string, data []byte) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}

	parent, err := canonicalPath(s.root, filepath.Dir(path))
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(parent, filepath.Base(path)), data, 0o660); err != nil {
		return fmt.Errorf("write blob %s: %w", id, err)
	}

	return nil
}

func (s *FileBlobs) Load(_ context.Context, id string) ([]byte, error) {
	path, err := s.resolve(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", id, err)
	}

	return data, nil
}

func (s *FileBlobs) Delete(_ context.Context, id string) error {
	path, err := s.resolve(id)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete blob %s: %w", id, err)
	}

	return nil
}

// Stream opens the blob as a sequence of fixed-size chunks so large bodies
// never need to be held in memory whole.
func (s *FileBlobs) Stream(_ context.Context, id string) (ChunkStream, error) {
	path, err := s.resolve(id)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", id, err)
	}

	return newChunkReader(f), nil
}

func (s *FileBlobs) Size(_ context.Context, id string) (int64, error) {
	path, err := s.resolve(id)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat blob %s: %w", id, err)
	}

	return info.Size(), nil
}

func (s *FileBlobs) resolve(id string) (string, error) {
	path, err := s.path(id)
	if err != nil {
		return "", err
	}

	if err := ensureDir(s.dir); err != nil {
		return "", err
	}

	return canonicalPath(s.root, path)
}

// chunkReader adapts an io.ReadCloser to the ChunkStream contract.
type chunkReader struct {
	rc  io.ReadCloser
	buf []byte
}

func newChunkReader(rc io.ReadCloser) *chunkReader {
	return &chunkReader{rc: rc, buf: make([]byte, StreamChunkSize)}
}

func (c *chunkReader) Next() ([]byte, error) {
	n, err := c.rc.Read(c.buf)
	if n > 0 {
		return c.buf[:n], nil
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}

func (c *chunkReader) Close() error {
	return c.rc.Close()
}
