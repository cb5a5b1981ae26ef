package store

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobvault/blobvault/internal/shared"
)

func newTestBlobs(t *testing.T) (*FileBlobs, string) {
	t.Helper()
	root := t.TempDir()
	return NewFileBlobs(root, "storage"), root
}

func TestFileBlobs_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	s, _ := newTestBlobs(t)
	ctx := context.Background()

	data := []byte("payload bytes")
	require.NoError(t, s.Save(ctx, "a/b.txt", data))

	got, err := s.Load(ctx, "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFileBlobs_LiteralKeyOnDisk(t *testing.T) {
	t.Parallel()

	s, root := newTestBlobs(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "a/b.txt", []byte("x")))

	_, err := os.Stat(filepath.Join(root, "storage", "a", "b.txt"))
	assert.NoError(t, err)
}

func TestFileBlobs_Delete(t *testing.T) {
	t.Parallel()

	s, _ := newTestBlobs(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "k", []byte("x")))
	require.NoError(t, s.Delete(ctx, "k"))

	_, err := s.Load(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, s.Delete(ctx, "k"))
}

func TestFileBlobs_Size(t *testing.T) {
	t.Parallel()

	s, _ := newTestBlobs(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "k", make([]byte, 12345)))

	n, err := s.Size(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), n)
}

func TestFileBlobs_StreamChunks(t *testing.T) {
	t.Parallel()

	s, _ := newTestBlobs(t)
	ctx := context.Background()

	data := bytes.Repeat([]byte("z"), StreamChunkSize*2+100)
	require.NoError(t, s.Save(ctx, "big", data))

	stream, err := s.Stream(ctx, "big")
	require.NoError(t, err)
	defer stream.Close()

	var got []byte
	chunks := 0
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.LessOrEqual(t, len(chunk), StreamChunkSize)
		got = append(got, chunk...)
		chunks++
	}

	assert.Equal(t, data, got)
	assert.Equal(t, 3, chunks)
}

func TestFileBlobs_TraversalKeyRejected(t *testing.T) {
	t.Parallel()

	s, _ := newTestBlobs(t)
	ctx := context.Background()

	for _, key := range []string{
		"../../etc/passwd",
		"../outside",
		"a/../../../outside",
	} {
		assert.ErrorIs(t, s.Save(ctx, key, []byte("x")), shared.ErrorInvalidPath, "save %q", key)

		_, err := s.Load(ctx, key)
		assert.ErrorIs(t, err, shared.ErrorInvalidPath, "load %q", key)

		assert.ErrorIs(t, s.Delete(ctx, key), shared.ErrorInvalidPath, "delete %q", key)
	}
}

func TestFileBlobs_SymlinkEscapeRejected(t *testing.T) {
	t.Parallel()

	s, root := newTestBlobs(t)
	ctx := context.Background()

	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("s"), 0o660))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "storage"), 0o770))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret"), filepath.Join(root, "storage", "link")))

	_, err := s.Load(ctx, "link")
	assert.ErrorIs(t, err, shared.ErrorInvalidPath)
}

func TestFileBlobs_EmptyKey(t *testing.T) {
	t.Parallel()

	s, _ := newTestBlobs(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Save(ctx, "", []byte("x")), shared.ErrorEmptyIdentifier)
	_, err := s.Load(ctx, "")
	assert.ErrorIs(t, err, shared.ErrorEmptyIdentifier)
}
