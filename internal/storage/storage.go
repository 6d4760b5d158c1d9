// Package storage keeps document bytes under opaque handles. Only the
// document package talks to it.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrBlobNotFound  = errors.New("blob_not_found")
	ErrInvalidHandle = errors.New("invalid_blob_handle")
)

type BlobInfo struct {
	Handle     string
	Size       int64
	ModifiedAt time.Time
}

type BlobStore interface {
	// Put writes r under handle and returns the number of bytes stored.
	// A partially written blob is removed before Put returns an error.
	Put(ctx context.Context, handle string, r io.Reader) (int64, error)
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
	// Delete succeeds when the blob is already gone.
	Delete(ctx context.Context, handle string) error
	Exists(ctx context.Context, handle string) (bool, error)
	Walk(ctx context.Context, fn func(BlobInfo) error) error
}
