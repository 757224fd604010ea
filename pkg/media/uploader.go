// Package media turns user-uploaded data URLs into durable storage URLs:
// decode, validate, re-encode oversized images, upload. Items fail
// individually; one bad upload never aborts the batch.
package media

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cloud.google.com/go/storage"

	"github.com/decksmith/decksmith/pkg/config"
)

// Uploader stores a processed blob and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// NewUploader builds the configured uploader.
func NewUploader(ctx context.Context, cfg *config.MediaConfig) (Uploader, error) {
	switch cfg.Uploader {
	case "gcs":
		return NewGCSUploader(ctx, cfg.Bucket)
	case "memory":
		return NewMemoryUploader(), nil
	}
	return nil, fmt.Errorf("unknown media uploader %q", cfg.Uploader)
}

// GCSUploader stores blobs in a Google Cloud Storage bucket.
type GCSUploader struct {
	client *storage.Client
	bucket string
}

// NewGCSUploader connects using ambient credentials.
func NewGCSUploader(ctx context.Context, bucket string) (*GCSUploader, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSUploader{client: client, bucket: bucket}, nil
}

// Upload implements Uploader.
func (u *GCSUploader) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	w := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close() //nolint:errcheck // the write error is the one to report
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %s: %w", key, err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.bucket, key), nil
}

// Close releases the storage client.
func (u *GCSUploader) Close() error { return u.client.Close() }

// MemoryUploader keeps blobs in process. Development and tests only.
type MemoryUploader struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryUploader returns an empty in-memory store.
func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{blobs: make(map[string][]byte)}
}

// Upload implements Uploader.
func (u *MemoryUploader) Upload(_ context.Context, key, _ string, data []byte) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	u.blobs[key] = buf
	return "mem://" + key, nil
}

// Get returns a stored blob.
func (u *MemoryUploader) Get(key string) ([]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	b, ok := u.blobs[key]
	return b, ok
}

// Keys lists stored keys, sorted.
func (u *MemoryUploader) Keys() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, 0, len(u.blobs))
	for k := range u.blobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
