// Package storage implements the object store on top of the persistence
// layer, enforcing per-object read visibility and write authorization
// against session records.
package storage

import (
	"path"

	"github.com/blobvault/blobvault/internal/server/auth"
)

// Metadata describes one stored object, separate from its bytes. One
// record exists per object; it is written atomically with the blob on put
// and removed on delete.
type Metadata struct {
	Name         string     `json:"name"`
	Key          string     `json:"key"`
	Size         int64      `json:"size"`
	LastModified int64      `json:"last_modified"`
	ETag         string     `json:"etag"`
	MimeType     string     `json:"mime_type"`
	OwnerID      string     `json:"owner_id"`
	ReadableBy   auth.Level `json:"readable_by"`
}

// displayName derives the object's display name from the last segment of
// its key.
func displayName(key string) string {
	return path.Base(key)
}

// Object pairs an object's metadata with its optionally loaded payload.
// Data stays nil on metadata-only paths (HEAD, listings) and when the
// body is streamed rather than loaded.
type Object struct {
	Metadata *Metadata
	Data     []byte
}
