// Package storagetest provides an in-memory object storage backend.
package storagetest

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/jobtracker/apiserver/internal/storage"
)

// Object is a stored blob with its content type.
type Object struct {
	Data        []byte
	ContentType string
}

// Backend implements storage.ObjectStorage in memory.
type Backend struct {
	mu      sync.Mutex
	objects map[string]Object

	// PutErr and DeleteErr, when set, are returned by Put and Delete.
	PutErr    error
	DeleteErr error
}

func NewBackend() *Backend {
	return &Backend{objects: make(map[string]Object)}
}

func (b *Backend) EnsureBucket(context.Context) error { return nil }

func (b *Backend) Bucket() string { return "memory" }

func (b *Backend) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if b.PutErr != nil {
		return b.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = Object{Data: data, ContentType: contentType}
	return nil
}

func (b *Backend) Get(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

func (b *Backend) Delete(_ context.Context, key string) error {
	if b.DeleteErr != nil {
		return b.DeleteErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

// Keys returns the stored object keys.
func (b *Backend) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		keys = append(keys, key)
	}
	return keys
}
