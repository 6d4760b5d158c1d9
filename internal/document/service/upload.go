package service

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/schoolbill/internal/authorization"
	"github.com/smallbiznis/schoolbill/internal/document/domain"
	"github.com/smallbiznis/schoolbill/internal/observability/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"
)

const (
	sniffLen       = 3072
	maxHandleSlug  = 80
	maxFilenameLen = 255
)

// Upload admits a file for the effective owner. Nothing is stored unless
// every check passes; a blob whose metadata cannot be written is removed.
func (s *Service) Upload(ctx context.Context, actor authorization.Actor, req domain.UploadRequest, r io.Reader) (domain.Document, error) {
	if actor.ID == 0 {
		return domain.Document{}, domain.ErrPermission
	}
	ownerID := actor.ID
	if req.OwnerID != nil && *req.OwnerID != 0 {
		ownerID = *req.OwnerID
	}
	if ownerID != actor.ID && !actor.Privileged {
		s.obsMetrics.RecordDocumentRejected(ctx, "permission")
		logger.WithContext(ctx, s.log).Info("upload on behalf denied",
			zap.String("actor_id", actor.ID.String()),
			zap.String("owner_id", ownerID.String()),
		)
		return domain.Document{}, domain.ErrPermission
	}

	policy := s.policy.Documents()
	filename, ext, err := validateUpload(req, policy.MaxUploadBytes, policy.AllowedExtensions)
	if err != nil {
		s.reject(ctx, err)
		return domain.Document{}, err
	}

	handle := newHandle(filename, ext)
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return domain.Document{}, err
	}

	// One byte past the limit is enough to tell an oversized stream apart.
	buffered := bufio.NewReaderSize(io.LimitReader(r, policy.MaxUploadBytes+1), sniffLen)
	head, _ := buffered.Peek(sniffLen)
	detected := mimetype.Detect(head).String()

	n, err := s.store.Put(ctx, handle, io.TeeReader(buffered, hasher))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Document{}, ctxErr
		}
		s.obsMetrics.RecordStorageUnavailable(ctx, "put")
		logger.WithContext(ctx, s.log).Error("document blob write failed", zap.Error(err))
		return domain.Document{}, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	if n > policy.MaxUploadBytes {
		s.discard(ctx, handle)
		s.reject(ctx, domain.ErrFileTooLarge)
		return domain.Document{}, domain.ErrFileTooLarge
	}
	if n != req.Size {
		s.discard(ctx, handle)
		s.reject(ctx, domain.ErrSizeMismatch)
		return domain.Document{}, domain.ErrSizeMismatch
	}

	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = detected
	}

	doc := domain.Document{
		ID:            s.genID.Generate(),
		OwnerID:       ownerID,
		UploaderID:    actor.ID,
		Filename:      filename,
		Extension:     ext,
		Size:          n,
		ContentType:   contentType,
		Checksum:      hex.EncodeToString(hasher.Sum(nil)),
		StorageHandle: handle,
		CreatedAt:     s.clock.Now(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, &doc)
	})
	if err != nil {
		s.discard(ctx, handle)
		return domain.Document{}, err
	}

	s.obsMetrics.RecordDocumentAdmitted(ctx, ext)
	logger.WithContext(ctx, s.log).Info("document admitted",
		zap.String("document_id", doc.ID.String()),
		zap.String("owner_id", doc.OwnerID.String()),
		zap.Int64("size", doc.Size),
	)
	s.audit(ctx, "document.upload", doc.ID, map[string]any{
		"owner_id":  doc.OwnerID.String(),
		"filename":  doc.Filename,
		"size":      doc.Size,
		"on_behalf": doc.OwnerID != doc.UploaderID,
	})
	return doc, nil
}

func (s *Service) reject(ctx context.Context, err error) {
	reason := "invalid"
	if verr, ok := err.(*domain.ValidationError); ok {
		reason = verr.Code
	}
	s.obsMetrics.RecordDocumentRejected(ctx, reason)
}

// validateUpload applies the admission rules to the declared metadata and
// returns the cleaned filename and its lower-case extension.
func validateUpload(req domain.UploadRequest, maxBytes int64, allowed []string) (string, string, error) {
	filename := cleanFilename(req.Filename)
	if filename == "" {
		return "", "", domain.ErrInvalidFilename
	}
	if req.Size < 0 {
		return "", "", domain.ErrInvalidSize
	}
	if req.Size > maxBytes {
		return "", "", domain.ErrFileTooLarge
	}

	ext := fileExtension(filename)
	for _, candidate := range allowed {
		if ext != "" && ext == candidate {
			return filename, ext, nil
		}
	}
	return "", "", domain.ErrUnsupportedExtension
}

// cleanFilename keeps only the final path element a browser may send.
func cleanFilename(raw string) string {
	name := strings.TrimSpace(strings.ReplaceAll(strings.ToValidUTF8(raw, "_"), "\\", "/"))
	if name == "" {
		return ""
	}
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	if len(name) > maxFilenameLen {
		ext := path.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		cut := maxFilenameLen - len(ext)
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut] + ext
	}
	return name
}

// fileExtension returns the trailing extension in lower case. Leading dots
// are part of the name, so ".pdf" has no extension.
func fileExtension(filename string) string {
	return strings.ToLower(path.Ext(strings.TrimLeft(filename, ".")))
}

func newHandle(filename, ext string) string {
	id := strings.ToLower(ulid.Make().String())
	base := strings.TrimSuffix(filename, path.Ext(filename))
	name := slug.Make(base)
	if len(name) > maxHandleSlug {
		name = strings.Trim(name[:maxHandleSlug], "-")
	}
	if name == "" {
		return id + ext
	}
	return id + "-" + name + ext
}
