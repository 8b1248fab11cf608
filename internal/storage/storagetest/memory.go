// Package storagetest provides an in-memory storage.Storage for tests.
package storagetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/acgallery/service/internal/apperr"
	"github.com/acgallery/service/internal/storage"
)

// PublicBase is the public URL prefix the memory store hands out.
const PublicBase = "https://cdn.test"

type blob struct {
	data        []byte
	contentType string
	modified    time.Time
}

// Memory is a goroutine-safe in-memory object store.
type Memory struct {
	mu      sync.Mutex
	objects map[string]blob

	// Now stamps uploads; tests override it to age objects.
	Now func() time.Time
	// FailUpload, when set, makes Upload fail for keys it returns true for.
	FailUpload func(key string) bool
}

var _ storage.Storage = (*Memory)(nil)

// New returns an empty store.
func New() *Memory {
	return &Memory{objects: map[string]blob{}, Now: time.Now}
}

// Put seeds an object, as a client upload through a presigned URL would.
func (m *Memory) Put(key string, data []byte, contentType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = blob{data: data, contentType: contentType, modified: m.Now()}
}

// Has reports whether key exists.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Keys lists every stored key in order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Memory) PresignPut(_ context.Context, key, contentType string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://bucket.test/%s?content-type=%s&expires=%d", key, contentType, int(expiry.Seconds())), nil
}

func (m *Memory) Upload(_ context.Context, key string, reader io.Reader, _ int64, contentType string) error {
	if m.FailUpload != nil && m.FailUpload(key) {
		return fmt.Errorf("upload %q: injected failure", key)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.Put(key, data, contentType)
	return nil
}

func (m *Memory) Download(_ context.Context, key string) (*storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, apperr.NotFound("object")
	}
	return &storage.Object{
		ReadCloser:  io.NopCloser(bytes.NewReader(b.data)),
		ContentType: b.contentType,
		Size:        int64(len(b.data)),
	}, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) DeleteFolder(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
		}
	}
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectInfo
	for k, b := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(b.data)), LastModified: b.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) PublicURL(key string) string {
	return PublicBase + "/" + key
}

func (m *Memory) KeyFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, PublicBase+"/") {
		return "", false
	}
	return strings.TrimPrefix(url, PublicBase+"/"), true
}
