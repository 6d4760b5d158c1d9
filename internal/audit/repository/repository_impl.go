package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/schoolbill/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert is append only. Entries are never updated once written.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	stmt := db.WithContext(ctx).Model(&domain.AuditLog{})

	for column, value := range map[string]string{
		"action":      filter.Action,
		"target_type": filter.TargetType,
		"target_id":   filter.TargetID,
		"actor_id":    filter.ActorID,
		"actor_role":  strings.ToUpper(filter.ActorRole),
	} {
		if value = strings.TrimSpace(value); value != "" {
			stmt = stmt.Where(column+" = ?", value)
		}
	}
	if filter.Since != nil {
		stmt = stmt.Where("created_at >= ?", filter.Since.UTC())
	}
	if filter.Until != nil {
		stmt = stmt.Where("created_at < ?", filter.Until.UTC())
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
