package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolbill/internal/document/domain"
	"github.com/smallbiznis/schoolbill/internal/observability/logger"
	"github.com/smallbiznis/schoolbill/internal/storage"
	"go.uber.org/zap"
)

// CheckIntegrity reports metadata whose blob is gone and removes blobs that
// no metadata points at once they are older than the orphan grace period.
// Dangling metadata is only reported.
func (s *Service) CheckIntegrity(ctx context.Context) (domain.IntegrityReport, error) {
	log := logger.WithContext(ctx, s.log)
	report := domain.IntegrityReport{
		StartedAt:         s.clock.Now(),
		DanglingDocuments: []snowflake.ID{},
		OrphansRemoved:    []string{},
	}

	known := make(map[string]struct{})
	for doc, err := range s.scan(ctx, nil) {
		if err != nil {
			return report, err
		}
		report.CheckedDocuments++
		known[doc.StorageHandle] = struct{}{}

		ok, err := s.store.Exists(ctx, doc.StorageHandle)
		if err != nil {
			s.obsMetrics.RecordStorageUnavailable(ctx, "exists")
			return report, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
		}
		if !ok {
			report.DanglingDocuments = append(report.DanglingDocuments, doc.ID)
			log.Warn("document metadata without blob", zap.String("document_id", doc.ID.String()))
		}
	}

	grace := s.policy.Documents().OrphanGracePeriod
	now := s.clock.Now()
	err := s.store.Walk(ctx, func(info storage.BlobInfo) error {
		if _, ok := known[info.Handle]; ok {
			return nil
		}
		// Uploads in flight have a blob but no row yet.
		if now.Sub(info.ModifiedAt) < grace {
			report.OrphansRetained++
			return nil
		}
		if err := s.store.Delete(ctx, info.Handle); err != nil {
			return err
		}
		report.OrphansRemoved = append(report.OrphansRemoved, info.Handle)
		return nil
	})
	if err != nil {
		s.obsMetrics.RecordStorageUnavailable(ctx, "walk")
		return report, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}

	report.FinishedAt = s.clock.Now()
	log.Info("document integrity sweep finished",
		zap.Int("checked", report.CheckedDocuments),
		zap.Int("dangling", len(report.DanglingDocuments)),
		zap.Int("orphans_removed", len(report.OrphansRemoved)),
		zap.Int("orphans_retained", report.OrphansRetained),
	)
	if len(report.DanglingDocuments) > 0 || len(report.OrphansRemoved) > 0 {
		s.audit(ctx, "document.integrity_sweep", 0, map[string]any{
			"checked":         report.CheckedDocuments,
			"dangling":        len(report.DanglingDocuments),
			"orphans_removed": len(report.OrphansRemoved),
		})
	}
	return report, nil
}
