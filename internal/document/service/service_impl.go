package service

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/schoolbill/internal/audit/domain"
	"github.com/smallbiznis/schoolbill/internal/authorization"
	"github.com/smallbiznis/schoolbill/internal/clock"
	"github.com/smallbiznis/schoolbill/internal/config"
	"github.com/smallbiznis/schoolbill/internal/document/domain"
	"github.com/smallbiznis/schoolbill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/schoolbill/internal/observability/metrics"
	"github.com/smallbiznis/schoolbill/internal/storage"
	"github.com/smallbiznis/schoolbill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const listBatchSize = 100

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Policy     *config.PolicyHolder
	Store      storage.BlobStore
	Repo       domain.Repository
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	policy     *config.PolicyHolder
	store      storage.BlobStore
	repo       domain.Repository
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("document.service"),
		genID:      p.GenID,
		clock:      clk,
		policy:     p.Policy,
		store:      p.Store,
		repo:       p.Repo,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// CanView is the only visibility rule: privileged actors see every
// document, everyone else only their own.
func (s *Service) CanView(actor authorization.Actor, doc domain.Document) bool {
	if actor.ID == 0 {
		return false
	}
	return actor.Privileged || doc.OwnerID == actor.ID
}

// List yields every visible document, newest first. Each range over the
// returned sequence starts again from the newest row.
func (s *Service) List(ctx context.Context, actor authorization.Actor, req domain.ListDocumentsRequest) iter.Seq2[domain.Document, error] {
	owner, ok, err := listScope(actor, req)
	if err != nil {
		return func(yield func(domain.Document, error) bool) {
			yield(domain.Document{}, err)
		}
	}
	if !ok {
		return func(func(domain.Document, error) bool) {}
	}
	return s.scan(ctx, owner)
}

func (s *Service) ListPage(ctx context.Context, actor authorization.Actor, req domain.ListDocumentsRequest, page pagination.Pagination) (domain.ListDocumentsResponse, error) {
	resp := domain.ListDocumentsResponse{Documents: []domain.Document{}}

	owner, ok, err := listScope(actor, req)
	if err != nil {
		return domain.ListDocumentsResponse{}, err
	}

	var cursor *domain.DocumentCursor
	if strings.TrimSpace(page.PageToken) != "" {
		cursor, err = decodeCursor(page.PageToken)
		if err != nil {
			return domain.ListDocumentsResponse{}, err
		}
	}
	if !ok {
		return resp, nil
	}

	limit := page.Limit()
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		OwnerID: owner,
		Cursor:  cursor,
		Limit:   limit,
	})
	if err != nil {
		return domain.ListDocumentsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, limit, func(item *domain.Document) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > limit {
		items = items[:limit]
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		resp.Documents = append(resp.Documents, *item)
	}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Download(ctx context.Context, actor authorization.Actor, id snowflake.ID) (domain.Document, io.ReadCloser, error) {
	doc, err := s.visible(ctx, actor, id)
	if err != nil {
		return domain.Document{}, nil, err
	}

	rc, err := s.store.Open(ctx, doc.StorageHandle)
	if err != nil {
		s.obsMetrics.RecordStorageUnavailable(ctx, "open")
		logger.WithContext(ctx, s.log).Error("document blob unavailable",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err),
		)
		return domain.Document{}, nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	return doc, rc, nil
}

// Delete removes metadata first. A blob that cannot be removed afterwards is
// left for the integrity sweep.
func (s *Service) Delete(ctx context.Context, actor authorization.Actor, id snowflake.ID) error {
	doc, err := s.visible(ctx, actor, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err := s.repo.Delete(ctx, tx, doc.ID)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.discard(ctx, doc.StorageHandle)
	s.audit(ctx, "document.delete", doc.ID, map[string]any{
		"owner_id": doc.OwnerID.String(),
		"filename": doc.Filename,
	})
	return nil
}

func (s *Service) visible(ctx context.Context, actor authorization.Actor, id snowflake.ID) (domain.Document, error) {
	if id == 0 {
		return domain.Document{}, domain.ErrNotFound
	}
	doc, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Document{}, err
	}
	if doc == nil || !s.CanView(actor, *doc) {
		return domain.Document{}, domain.ErrNotFound
	}
	return *doc, nil
}

func (s *Service) scan(ctx context.Context, owner *snowflake.ID) iter.Seq2[domain.Document, error] {
	return func(yield func(domain.Document, error) bool) {
		var cursor *domain.DocumentCursor
		for {
			batch, err := s.repo.List(ctx, s.db, domain.ListFilter{
				OwnerID: owner,
				Cursor:  cursor,
				Limit:   listBatchSize,
			})
			if err != nil {
				yield(domain.Document{}, err)
				return
			}

			n := min(len(batch), listBatchSize)
			for _, doc := range batch[:n] {
				if !yield(*doc, nil) {
					return
				}
			}
			if len(batch) <= listBatchSize {
				return
			}
			last := batch[n-1]
			cursor = &domain.DocumentCursor{ID: last.ID, CreatedAt: last.CreatedAt}
		}
	}
}

// discard runs even when the request context is already cancelled.
func (s *Service) discard(ctx context.Context, handle string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), handle); err != nil {
		logger.WithContext(ctx, s.log).Warn("orphan blob left for integrity sweep",
			zap.String("handle", handle),
			zap.Error(err),
		)
	}
}

func (s *Service) audit(ctx context.Context, action string, docID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	var targetID *string
	if docID != 0 {
		id := docID.String()
		targetID = &id
	}
	if err := s.auditSvc.AuditLog(ctx, action, "document", targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

// listScope reports ok=false when the request can match nothing.
func listScope(actor authorization.Actor, req domain.ListDocumentsRequest) (*snowflake.ID, bool, error) {
	if actor.ID == 0 {
		return nil, false, domain.ErrPermission
	}
	requested := req.OwnerID != nil && *req.OwnerID != 0
	if actor.Privileged {
		if !requested {
			return nil, true, nil
		}
		owner := *req.OwnerID
		return &owner, true, nil
	}
	if requested && *req.OwnerID != actor.ID {
		return nil, false, nil
	}
	owner := actor.ID
	return &owner, true, nil
}

func decodeCursor(token string) (*domain.DocumentCursor, error) {
	decoded, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidPageToken
	}
	return &domain.DocumentCursor{ID: id, CreatedAt: createdAt}, nil
}
