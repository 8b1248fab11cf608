// Package storage defines the interface for object storage operations.
// Swap implementations by changing the concrete type injected at startup:
// the AWS SDK implementation talks to Cloudflare R2 or any S3 endpoint, the
// MinIO implementation is handy for local development.
package storage

import (
	"context"
	"io"
	"strings"
	"time"
)

// PresignExpiry is how long a presigned upload URL stays valid.
const PresignExpiry = time.Hour

// Object is a readable blob together with the metadata the store reported.
type Object struct {
	io.ReadCloser
	ContentType string
	Size        int64
}

// ObjectInfo describes a listed object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Storage is the interface for uploading and retrieving objects.
type Storage interface {
	// PresignPut returns a URL the client can PUT the object bytes to directly.
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	// Upload streams data to the store under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Download opens the object at key. The caller closes the returned object.
	Download(ctx context.Context, key string) (*Object, error)
	// Delete removes an object identified by key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
	// DeleteFolder removes every object whose key starts with prefix.
	DeleteFolder(ctx context.Context, prefix string) error
	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
	// KeyFromURL is the inverse of PublicURL. ok is false for URLs outside the public base.
	KeyFromURL(url string) (key string, ok bool)
}

// publicBase implements the URL half of Storage for every backend.
type publicBase string

func newPublicBase(base string) publicBase {
	return publicBase(strings.TrimRight(base, "/"))
}

func (b publicBase) PublicURL(key string) string {
	return string(b) + "/" + key
}

func (b publicBase) KeyFromURL(url string) (string, bool) {
	prefix := string(b) + "/"
	if b == "" || !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
