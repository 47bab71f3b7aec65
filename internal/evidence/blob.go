// Package evidence persists uploaded evidence bytes and computes the content
// checksums recorded alongside them. Two backends: local filesystem and
// S3-compatible object storage.
package evidence

import (
	"context"
	"io"
)

// SavedObject describes where the bytes landed and what they hashed to.
type SavedObject struct {
	Path      string
	MimeType  string
	Checksum  string
	SizeBytes int64
}

// BlobStore saves evidence bytes under a session-scoped namespace. Checksums
// are SHA-256 over the full content, so identical bytes always produce
// identical checksums regardless of backend.
type BlobStore interface {
	Save(ctx context.Context, sessionID, filename, mimeType string, r io.Reader) (SavedObject, error)
}
