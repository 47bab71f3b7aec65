package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"kyc-service/pkg/platform/sentinel"
)

// FileStore writes evidence to a local directory tree, one subdirectory per
// session. Bytes stream through the hash on the way to disk so large selfie
// videos are never buffered whole.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) Save(_ context.Context, sessionID, filename, mimeType string, r io.Reader) (SavedObject, error) {
	dir := filepath.Join(s.root, sessionID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return SavedObject{}, fmt.Errorf("%w: create session dir: %v", sentinel.ErrUnavailable, err)
	}

	// Base strips any path components a hostile client smuggled into the name.
	target := filepath.Join(dir, filepath.Base(filename))
	f, err := os.Create(target)
	if err != nil {
		return SavedObject{}, fmt.Errorf("%w: create evidence file: %v", sentinel.ErrUnavailable, err)
	}
	defer f.Close()

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hash), r)
	if err != nil {
		os.Remove(target)
		return SavedObject{}, fmt.Errorf("%w: write evidence file: %v", sentinel.ErrUnavailable, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(target)
		return SavedObject{}, fmt.Errorf("%w: flush evidence file: %v", sentinel.ErrUnavailable, err)
	}

	return SavedObject{
		Path:      target,
		MimeType:  mimeType,
		Checksum:  hex.EncodeToString(hash.Sum(nil)),
		SizeBytes: size,
	}, nil
}
