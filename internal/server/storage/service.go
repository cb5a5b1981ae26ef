package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/blobvault/blobvault/internal/logging"
	"github.com/blobvault/blobvault/internal/server/auth"
	"github.com/blobvault/blobvault/internal/shared"
	"github.com/blobvault/blobvault/internal/store"
)

// Service is the storage/authorization engine. Every operation takes the
// caller's resolved session; the readability and writability predicates
// re-load session records from the store on every call, so concurrent
// level upgrades take effect immediately.
type Service struct {
	sessions store.Records[*auth.Session]
	metadata store.Records[*Metadata]
	blobs    store.Blobs
	logger   logging.Logger
}

func NewService(sessions store.Records[*auth.Session], metadata store.Records[*Metadata], blobs store.Blobs, logger logging.Logger) *Service {
	return &Service{
		sessions: sessions,
		metadata: metadata,
		blobs:    blobs,
		logger:   logger.With("module", "storage"),
	}
}

// GetObject returns the object at key, or nil when it does not exist or
// the session may not read it. The two cases are deliberately
// indistinguishable so existence is not leaked. The payload is loaded
// only when readData is set.
func (s *Service) GetObject(ctx context.Context, sess *auth.Session, key string, readData bool) *Object {
	md, err := s.metadata.Load(ctx, key)
	if err != nil {
		return nil
	}

	if !s.isObjectReadable(ctx, sess, md) {
		return nil
	}

	obj := &Object{Metadata: md}
	if readData {
		data, err := s.blobs.Load(ctx, key)
		if err != nil {
			s.logger.Warn(ctx, "metadata present but blob unreadable", "key", key, "error", err.Error())
			return nil
		}
		obj.Data = data
	}

	return obj
}

// PutObject stores data under key. Overwriting an existing object
// requires write authorization on it. The metadata record is written
// first; if the blob write fails it is rolled back.
func (s *Service) PutObject(ctx context.Context, sess *auth.Session, key string, data []byte, mimeType string, readableBy auth.Level) error {
	if existing, err := s.metadata.Load(ctx, key); err == nil {
		if !s.isObjectWritable(ctx, sess, existing) {
			return fmt.Errorf("put %s: %w", key, shared.ErrorDenied)
		}
	}

	digest := sha256.Sum256(data)

	md := &Metadata{
		Name:         displayName(key),
		Key:          key,
		Size:         int64(len(data)),
		LastModified: time.Now().Unix(),
		ETag:         hex.EncodeToString(digest[:]),
		MimeType:     mimeType,
		OwnerID:      sess.AccessKey,
		ReadableBy:   readableBy,
	}

	if err := s.metadata.Save(ctx, md); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	if err := s.blobs.Save(ctx, key, data); err != nil {
		if rbErr := s.metadata.Delete(ctx, key); rbErr != nil {
			s.logger.Error(ctx, "metadata rollback failed", "key", key, "error", rbErr.Error())
		}
		return fmt.Errorf("put %s: %w", key, err)
	}

	return nil
}

// DeleteObject removes the object at key. Requires write authorization.
func (s *Service) DeleteObject(ctx context.Context, sess *auth.Session, key string) error {
	md, err := s.metadata.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	if !s.isObjectWritable(ctx, sess, md) {
		return fmt.Errorf("delete %s: %w", key, shared.ErrorDenied)
	}

	if err := s.metadata.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	if err := s.blobs.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	return nil
}

// ListObjects returns metadata for every stored object the session can
// read. Order follows the underlying directory enumeration and is not
// stable.
func (s *Service) ListObjects(ctx context.Context, sess *auth.Session) ([]*Metadata, error) {
	it, err := s.metadata.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}

	var visible []*Metadata
	for it.Next() {
		md := it.Record()
		if s.isObjectReadable(ctx, sess, md) {
			visible = append(visible, md)
		}
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}

	return visible, nil
}

// StreamObject opens the object's blob as a chunk stream for incremental
// transmission. Callers must have already authorized the read.
func (s *Service) StreamObject(ctx context.Context, key string) (store.ChunkStream, error) {
	return s.blobs.Stream(ctx, key)
}

// ObjectSize reports the stored blob's size in bytes.
func (s *Service) ObjectSize(ctx context.Context, key string) (int64, error) {
	return s.blobs.Size(ctx, key)
}

// OwnsObjects reports whether any stored object is owned by the access
// key. Used by the session reaper.
func (s *Service) OwnsObjects(ctx context.Context, accessKey string) (bool, error) {
	it, err := s.metadata.List(ctx)
	if err != nil {
		return false, err
	}

	for it.Next() {
		if it.Record().OwnerID == accessKey {
			return true, nil
		}
	}
	return false, it.Err()
}

// isObjectReadable decides read visibility for the session on the target
// metadata. Public objects are always readable. Everything else requires
// both the caller's and the owner's persisted session records; if the
// owner record is gone only an Admin may read. An Admin may read any
// object owned by a non-Admin; an Owner-restricted object is readable by
// its owner; otherwise the object's readable_by rank must not exceed the
// caller's level. Anything not explicitly granted is denied.
func (s *Service) isObjectReadable(ctx context.Context, sess *auth.Session, md *Metadata) bool {
	if md.ReadableBy == auth.LevelPublic {
		return true
	}

	self, err := s.sessions.Load(ctx, sess.AccessKey)
	if err != nil {
		return false
	}

	owner, err := s.sessions.Load(ctx, md.OwnerID)
	if err != nil {
		return self.AccessLevel == auth.LevelAdmin
	}

	if self.AccessLevel == auth.LevelAdmin && owner.AccessLevel != auth.LevelAdmin {
		return true
	}

	if md.ReadableBy == auth.LevelOwner && self.AccessKey == owner.AccessKey {
		return true
	}

	return md.ReadableBy <= self.AccessLevel
}

// isObjectWritable decides write authorization. An Admin may write any
// non-Admin-owned object and its own objects, but never another Admin's.
// A non-Admin may only write objects it owns. When the owner record is
// missing only an Admin may write.
func (s *Service) isObjectWritable(ctx context.Context, sess *auth.Session, md *Metadata) bool {
	self, err := s.sessions.Load(ctx, sess.AccessKey)
	if err != nil {
		return false
	}

	owner, err := s.sessions.Load(ctx, md.OwnerID)
	if err != nil {
		return self.AccessLevel == auth.LevelAdmin
	}

	if self.AccessLevel == auth.LevelAdmin {
		if owner.AccessLevel == auth.LevelAdmin {
			return self.AccessKey == owner.AccessKey
		}
		return true
	}

	return self.AccessKey == owner.AccessKey
}
