package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/smallbiznis/schoolbill/internal/config"
	"github.com/spf13/afero"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("storage",
	fx.Provide(NewFromConfig),
)

// AferoStore lays blobs out as <root>/<handle[0:2]>/<handle>.
type AferoStore struct {
	fs  afero.Fs
	log *zap.Logger
}

func NewAferoStore(fsys afero.Fs, log *zap.Logger) *AferoStore {
	return &AferoStore{fs: fsys, log: log.Named("storage.afero")}
}

func NewFromConfig(cfg config.Config, log *zap.Logger) (BlobStore, error) {
	root := strings.TrimSpace(cfg.StorageRoot)
	if root == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return NewAferoStore(afero.NewBasePathFs(afero.NewOsFs(), root), log), nil
}

func (s *AferoStore) Put(ctx context.Context, handle string, r io.Reader) (int64, error) {
	p, err := blobPath(handle)
	if err != nil {
		return 0, err
	}
	if err := s.fs.MkdirAll(path.Dir(p), 0o750); err != nil {
		return 0, err
	}

	f, err := s.fs.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return 0, err
	}
	n, copyErr := io.Copy(f, contextReader{ctx: ctx, r: r})
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		if rmErr := s.fs.Remove(p); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			s.log.Warn("failed to remove partial blob", zap.String("handle", handle), zap.Error(rmErr))
		}
		return 0, copyErr
	}
	return n, nil
}

func (s *AferoStore) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	p, err := blobPath(handle)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *AferoStore) Delete(ctx context.Context, handle string) error {
	p, err := blobPath(handle)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *AferoStore) Exists(ctx context.Context, handle string) (bool, error) {
	p, err := blobPath(handle)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, p)
}

func (s *AferoStore) Walk(ctx context.Context, fn func(BlobInfo) error) error {
	return afero.Walk(s.fs, "/", func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() {
			return nil
		}
		return fn(BlobInfo{
			Handle:     path.Base(p),
			Size:       info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	})
}

func blobPath(handle string) (string, error) {
	if !ValidHandle(handle) {
		return "", ErrInvalidHandle
	}
	return "/" + handle[:2] + "/" + handle, nil
}

// ValidHandle rejects anything that could escape the blob root.
func ValidHandle(handle string) bool {
	if len(handle) < 3 || len(handle) > 200 {
		return false
	}
	for _, r := range handle {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return !strings.Contains(handle, "..") && handle[0] != '.'
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
