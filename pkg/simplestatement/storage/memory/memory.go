package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-statement/pkg/simplestatement"
	"github.com/tendant/simple-statement/pkg/simplestatement/presigned"
)

type object struct {
	data        []byte
	contentType string
	modified    time.Time
}

// Backend is an in-memory implementation of the simplestatement.ObjectStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	signer  *presigned.Signer
	puts    int
	now     func() time.Time
}

// New creates a new in-memory storage backend. signer may be nil, in which
// case PresignGet fails.
func New(signer *presigned.Signer) *Backend {
	return &Backend{
		objects: make(map[string]object),
		signer:  signer,
		now:     time.Now,
	}
}

// SetClock replaces the time source used to stamp objects on Put
func (b *Backend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Put stores a copy of the reader's bytes
func (b *Backend) Put(ctx context.Context, key, contentType string, reader io.Reader, size int64) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("size mismatch for %s: declared %d, read %d", key, size, len(data))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = object{data: data, contentType: contentType, modified: b.now().UTC()}
	b.puts++
	return nil
}

// PresignGet returns an HMAC-signed URL served by presigned.Handler
func (b *Backend) PresignGet(ctx context.Context, key string, ttl time.Duration, responseContentType string) (string, error) {
	if b.signer == nil {
		return "", errors.New("presigning not configured for memory backend")
	}
	return b.signer.SignGet(key, ttl, responseContentType)
}

// Get returns the object's bytes
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, simplestatement.ErrObjectNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// ContentType returns the content type stored with key
func (b *Backend) ContentType(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	return obj.contentType, exists
}

// ListObjects returns all objects with the given prefix in key order
func (b *Backend) ListObjects(ctx context.Context, prefix string) ([]simplestatement.ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	objects := make([]simplestatement.ObjectInfo, 0, len(b.objects))
	for k, obj := range b.objects {
		if strings.HasPrefix(k, prefix) {
			objects = append(objects, simplestatement.ObjectInfo{Key: k, LastModified: obj.modified})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Delete removes the object
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return simplestatement.ErrObjectNotFound
	}

	delete(b.objects, key)
	return nil
}

// PutCount returns how many Put calls succeeded
func (b *Backend) PutCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.puts
}
