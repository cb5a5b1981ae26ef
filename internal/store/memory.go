package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/blobvault/blobvault/internal/shared"
)

// MemoryRecords is an in-memory Records implementation for tests. Records
// are kept in serialized form so load/list exercise the same round-trip
// the filesystem store does.
type MemoryRecords[T any] struct {
	mu   sync.RWMutex
	id   func(T) string
	recs map[string][]byte
}

func NewMemoryRecords[T any](id func(T) string) *MemoryRecords[T] {
	return &MemoryRecords[T]{
		id:   id,
		recs: make(map[string][]byte),
	}
}

func (s *MemoryRecords[T]) Save(_ context.Context, rec T) error {
	id := s.id(rec)
	if id == "" {
		return shared.ErrorEmptyIdentifier
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[id] = data
	return nil
}

func (s *MemoryRecords[T]) Load(_ context.Context, id string) (T, error) {
	var zero T

	s.mu.RLock()
	data, ok := s.recs[id]
	s.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("record %s: %w", id, shared.ErrorNotFound)
	}

	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return zero, fmt.Errorf("record %s: %w: %v", id, shared.ErrorInvalidRecord, err)
	}
	return rec, nil
}

func (s *MemoryRecords[T]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recs[id]; !ok {
		return fmt.Errorf("record %s: %w", id, shared.ErrorNotFound)
	}
	delete(s.recs, id)
	return nil
}

func (s *MemoryRecords[T]) List(_ context.Context) (Iter[T], error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.recs))
	for id := range s.recs {
		ids = append(ids, id)
	}
	snapshot := make([][]byte, 0, len(ids))
	sort.Strings(ids)
	for _, id := range ids {
		snapshot = append(snapshot, s.recs[id])
	}
	s.mu.RUnlock()

	return &memoryRecordIter[T]{entries: snapshot}, nil
}

// Corrupt overwrites a stored record with bytes that do not decode,
// simulating a damaged file.
func (s *MemoryRecords[T]) Corrupt(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[id] = []byte("{not json")
}

type memoryRecordIter[T any] struct {
	entries [][]byte
	current T
	err     error
}

func (it *memoryRecordIter[T]) Next() bool {
	if it.err != nil || len(it.entries) == 0 {
		return false
	}

	data := it.entries[0]
	it.entries = it.entries[1:]

	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		it.err = fmt.Errorf("%w: %v", shared.ErrorInvalidRecord, err)
		return false
	}

	it.current = rec
	return true
}

func (it *memoryRecordIter[T]) Record() T { return it.current }
func (it *memoryRecordIter[T]) Err() error { return it.err }

// MemoryBlobs is an in-memory Blobs implementation for tests.
type MemoryBlobs struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobs) Save(_ context.Context, id string, data []byte) error {
	if id == "" {
		return shared.ErrorEmptyIdentifier
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryBlobs) Load(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[id]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", id, shared.ErrorNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryBlobs) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[id]; !ok {
		return fmt.Errorf("blob %s: %w", id, shared.ErrorNotFound)
	}
	delete(s.blobs, id)
	return nil
}

func (s *MemoryBlobs) Stream(ctx context.Context, id string) (ChunkStream, error) {
	data, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return newChunkReader(io.NopCloser(bytes.NewReader(data))), nil
}

func (s *MemoryBlobs) Size(ctx context.Context, id string) (int64, error) {
	data, err := s.Load(ctx, id)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}
