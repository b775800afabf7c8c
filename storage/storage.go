// Package storage is the object storage used for binary content and
// checkpoint records.
package storage

import (
	"context"
	"errors"
)

// MultipartThreshold is the size above which content is uploaded in parts.
const MultipartThreshold = 5 * 1024 * 1024

// ErrNotFound is returned by Get when nothing is stored at the path.
var ErrNotFound = errors.New("object not found")

// Storage writes are idempotent: putting the same path twice overwrites.
type Storage interface {
	Put(ctx context.Context, path string, body []byte) error
	PutMultipart(ctx context.Context, path string, body []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
}

// Upload picks the multipart path for content larger than
// MultipartThreshold and the single-shot path otherwise.
func Upload(ctx context.Context, s Storage, path string, body []byte, declaredSize int64) error {
	if UseMultipart(declaredSize) {
		return s.PutMultipart(ctx, path, body)
	}
	return s.Put(ctx, path, body)
}

func UseMultipart(size int64) bool {
	return size > MultipartThreshold
}

// JoinPrefix prepends prefix as a folder when it is set.
func JoinPrefix(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
