package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolbill/internal/authorization"
	"github.com/smallbiznis/schoolbill/pkg/db/pagination"
)

type UploadRequest struct {
	// OwnerID defaults to the uploading actor.
	OwnerID     *snowflake.ID
	Filename    string
	Size        int64
	ContentType string
}

type ListDocumentsRequest struct {
	OwnerID *snowflake.ID
}

type ListDocumentsResponse struct {
	pagination.PageInfo
	Documents []Document `json:"documents"`
}

type Service interface {
	CanView(actor authorization.Actor, doc Document) bool
	List(ctx context.Context, actor authorization.Actor, req ListDocumentsRequest) iter.Seq2[Document, error]
	ListPage(ctx context.Context, actor authorization.Actor, req ListDocumentsRequest, page pagination.Pagination) (ListDocumentsResponse, error)
	Upload(ctx context.Context, actor authorization.Actor, req UploadRequest, r io.Reader) (Document, error)
	// Download hands ownership of the returned reader to the caller.
	Download(ctx context.Context, actor authorization.Actor, id snowflake.ID) (Document, io.ReadCloser, error)
	Delete(ctx context.Context, actor authorization.Actor, id snowflake.ID) error
	CheckIntegrity(ctx context.Context) (IntegrityReport, error)
}

var (
	// ErrNotFound also covers documents the actor may not see.
	ErrNotFound           = errors.New("document_not_found")
	ErrPermission         = errors.New("document_permission_denied")
	ErrStorageUnavailable = errors.New("document_storage_unavailable")
	ErrInvalidPageToken   = errors.New("invalid_page_token")
)

// ValidationError rejects a file before it is admitted.
type ValidationError struct {
	Code   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// Is matches any ValidationError with the same code.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrFileTooLarge         = &ValidationError{Code: "file_too_large", Reason: "file too large"}
	ErrUnsupportedExtension = &ValidationError{Code: "unsupported_extension", Reason: "unsupported extension"}
	ErrSizeMismatch         = &ValidationError{Code: "size_mismatch", Reason: "declared size does not match content"}
	ErrInvalidSize          = &ValidationError{Code: "invalid_size", Reason: "declared size must not be negative"}
	ErrInvalidFilename      = &ValidationError{Code: "invalid_filename", Reason: "filename is required"}
)
