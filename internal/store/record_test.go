package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobvault/blobvault/internal/shared"
)

type testRecord struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func newTestRecords(t *testing.T) (*FileRecords[testRecord], string) {
	t.Helper()
	root := t.TempDir()
	return NewFileRecords(root, "records", func(r testRecord) string { return r.ID }), root
}

func TestFileRecords_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	s, _ := newTestRecords(t)
	ctx := context.Background()

	rec := testRecord{ID: "alpha", Value: 42}
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestFileRecords_FilenameIsDigestNotID(t *testing.T) {
	t.Parallel()

	s, root := newTestRecords(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testRecord{ID: "alpha", Value: 1}))

	entries, err := os.ReadDir(filepath.Join(root, "records"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "alpha")
	assert.Len(t, entries[0].Name(), 64+len(".json"))
}

func TestFileRecords_LoadMissing(t *testing.T) {
	t.Parallel()

	s, _ := newTestRecords(t)
	_, err := s.Load(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestFileRecords_Delete(t *testing.T) {
	t.Parallel()

	s, _ := newTestRecords(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testRecord{ID: "alpha", Value: 1}))
	require.NoError(t, s.Delete(ctx, "alpha"))

	_, err := s.Load(ctx, "alpha")
	assert.Error(t, err)

	assert.Error(t, s.Delete(ctx, "alpha"))
}

func TestFileRecords_Overwrite(t *testing.T) {
	t.Parallel()

	s, _ := newTestRecords(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testRecord{ID: "alpha", Value: 1}))
	require.NoError(t, s.Save(ctx, testRecord{ID: "alpha", Value: 2}))

	got, err := s.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Value)
}

func TestFileRecords_List(t *testing.T) {
	t.Parallel()

	s, _ := newTestRecords(t)
	ctx := context.Background()

	want := map[string]int{"a": 1, "b": 2, "c": 3}
	for id, v := range want {
		require.NoError(t, s.Save(ctx, testRecord{ID: id, Value: v}))
	}

	it, err := s.List(ctx)
	require.NoError(t, err)

	got := map[string]int{}
	for it.Next() {
		rec := it.Record()
		got[rec.ID] = rec.Value
	}
	require.NoError(t, it.Err())
	assert.Equal(t, want, got)
}

func TestFileRecords_ListFailsOnMalformedEntry(t *testing.T) {
	t.Parallel()

	s, root := newTestRecords(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testRecord{ID: "good", Value: 1}))
	require.NoError(t, os.WriteFile(filepath.Join(root, "records", "broken.json"), []byte("{oops"), 0o660))

	it, err := s.List(ctx)
	require.NoError(t, err)

	for it.Next() {
	}
	require.Error(t, it.Err())
	assert.ErrorIs(t, it.Err(), shared.ErrorInvalidRecord)
}

func TestFileRecords_ListRestartsPerCall(t *testing.T) {
	t.Parallel()

	s, _ := newTestRecords(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testRecord{ID: "a", Value: 1}))

	for i := 0; i < 2; i++ {
		it, err := s.List(ctx)
		require.NoError(t, err)

		count := 0
		for it.Next() {
			count++
		}
		require.NoError(t, it.Err())
		assert.Equal(t, 1, count)
	}
}

func TestFileRecords_TraversalIDStaysInsideRoot(t *testing.T) {
	t.Parallel()

	s, root := newTestRecords(t)
	ctx := context.Background()

	// Record filenames are digests of the id, so even a hostile id can
	// only ever name a file inside the base directory.
	rec := testRecord{ID: "../../etc/passwd", Value: 9}
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Load(ctx, "../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	entries, err := os.ReadDir(filepath.Join(root, "records"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileRecords_EmptyID(t *testing.T) {
	t.Parallel()

	s, _ := newTestRecords(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Save(ctx, testRecord{ID: ""}), shared.ErrorEmptyIdentifier)
	_, err := s.Load(ctx, "")
	assert.ErrorIs(t, err, shared.ErrorEmptyIdentifier)
	assert.ErrorIs(t, s.Delete(ctx, ""), shared.ErrorEmptyIdentifier)
}
