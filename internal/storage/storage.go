package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/release-publisher/internal/apperr"
)

// ErrObjectNotFound is returned by Find when no object exists at the key.
var ErrObjectNotFound = errors.New("object not found")

// Object describes a stored object.
type Object struct {
	// Key is the object path inside the bucket.
	Key string
	// Size is the object length in bytes.
	Size int64
	// ETag is the entity tag reported by the store.
	ETag string
	// VersionID identifies the exact object version, when the store reports one.
	VersionID string
}

// Store is the bucket surface the workflows need.
type Store interface {
	// Put writes body under key and returns the stored object.
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) (*Object, error)
	// Find returns the object at key or an error matching ErrObjectNotFound.
	Find(ctx context.Context, key string) (*Object, error)
	// Delete removes exactly the given object version.
	Delete(ctx context.Context, obj *Object) error
}

// Authenticator is implemented by stores that can check their credentials
// before the first write.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// Content types used for uploads.
const (
	ContentTypeJSON   = "application/json"
	ContentTypeBinary = "application/octet-stream"
)

// UploadFile streams the local file at path to key.
func UploadFile(ctx context.Context, store Store, path, key string) (*Object, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, apperr.IO("open "+path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	info, err := file.Stat()
	if err != nil {
		return nil, apperr.IO("stat "+path, err)
	}

	return store.Put(ctx, key, file, info.Size(), ContentTypeBinary)
}
