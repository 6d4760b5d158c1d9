package server

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	documentdomain "github.com/smallbiznis/schoolbill/internal/document/domain"
	"github.com/smallbiznis/schoolbill/internal/observability/logger"
	"github.com/smallbiznis/schoolbill/pkg/db/pagination"
	"go.uber.org/zap"
)

// multipartOverhead leaves room for boundaries and form fields around the
// file part.
const multipartOverhead = 1 << 20

type listDocumentsQuery struct {
	pagination.Pagination
	OwnerID string `form:"owner_id"`
}

func (s *Server) ListDocuments(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query listDocumentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	ownerID, err := parseOptionalID(query.OwnerID)
	if err != nil {
		AbortWithError(c, newValidationError("owner_id", "invalid_owner_id", "invalid owner_id"))
		return
	}

	resp, err := s.documentSvc.ListPage(c.Request.Context(), actor, documentdomain.ListDocumentsRequest{
		OwnerID: ownerID,
	}, pagination.Pagination{
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Documents, "page_info": resp.PageInfo})
}

// UploadDocument accepts multipart/form-data with a "file" part, an
// optional "owner_id" for uploads on behalf of another user and an optional
// "size" the client declares up front.
func (s *Server) UploadDocument(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	ctx := c.Request.Context()
	maxBytes := s.policy.Documents().MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.obsMetrics.RecordDocumentRejected(ctx, documentdomain.ErrFileTooLarge.Code)
			AbortWithError(c, documentdomain.ErrFileTooLarge)
			return
		}
		AbortWithError(c, newValidationError("file", "missing_file", "file is required"))
		return
	}

	ownerID, err := parseOptionalID(c.PostForm("owner_id"))
	if err != nil {
		AbortWithError(c, newValidationError("owner_id", "invalid_owner_id", "invalid owner_id"))
		return
	}

	size := fileHeader.Size
	if raw := strings.TrimSpace(c.PostForm("size")); raw != "" {
		declared, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			AbortWithError(c, documentdomain.ErrInvalidSize)
			return
		}
		size = declared
	}

	contentType := strings.TrimSpace(fileHeader.Header.Get("Content-Type"))
	if contentType == "application/octet-stream" {
		contentType = ""
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.FromContext(ctx).Warn("open multipart file failed", zap.Error(err))
		AbortWithError(c, invalidRequestError())
		return
	}
	defer file.Close()

	doc, err := s.documentSvc.Upload(ctx, actor, documentdomain.UploadRequest{
		OwnerID:     ownerID,
		Filename:    fileHeader.Filename,
		Size:        size,
		ContentType: contentType,
	}, file)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": doc})
}

func (s *Server) DownloadDocument(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, documentdomain.ErrNotFound)
		return
	}

	doc, content, err := s.documentSvc.Download(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer content.Close()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, doc.Size, contentType, content, map[string]string{
		"Content-Disposition":    contentDisposition("attachment", doc.Filename),
		"Cache-Control":          "private, no-store",
		"X-Content-Type-Options": "nosniff",
	})
}

func (s *Server) DeleteDocument(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, documentdomain.ErrNotFound)
		return
	}

	if err := s.documentSvc.Delete(c.Request.Context(), actor, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func contentDisposition(disposition, filename string) string {
	if value := mime.FormatMediaType(disposition, map[string]string{"filename": filename}); value != "" {
		return value
	}
	return disposition
}
