// Package store provides the persistence layer: a generic JSON record
// store and a raw blob store, both keyed by arbitrary identifier strings.
//
// The filesystem implementations root every path under a single trusted
// directory and refuse any operation whose resolved path would escape it,
// symlinks included. Record filenames are the hex SHA-256 digest of the
// record id; blob filenames are the literal key, which keeps object bodies
// human-inspectable on disk.
//
// The interfaces exist so tests (and alternative backends, e.g. S3 for
// blobs) can be substituted for the filesystem implementations.
package store

import "context"

// Iter lazily yields records from a listing. A malformed entry stops the
// iteration and surfaces through Err; callers must check Err after the
// final Next.
type Iter[T any] interface {
	Next() bool
	Record() T
	Err() error
}

// Records persists serializable records keyed by an identifier string.
type Records[T any] interface {
	Save(ctx context.Context, rec T) error
	Load(ctx context.Context, id string) (T, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) (Iter[T], error)
}

// ChunkStream yields a blob as fixed-size chunks, suitable for incremental
// transmission. Next returns io.EOF after the last chunk; the returned
// slice is only valid until the following Next call.
type ChunkStream interface {
	Next() ([]byte, error)
	Close() error
}

// Blobs persists raw bytes keyed by an identifier string.
type Blobs interface {
	Save(ctx context.Context, id string, data []byte) error
	Load(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	Stream(ctx context.Context, id string) (ChunkStream, error)
	Size(ctx context.Context, id string) (int64, error)
}

// StreamChunkSize is the fixed chunk size used by blob streams.
const StreamChunkSize = 4096
