package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/schoolbill/pkg/db/pagination"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string `form:"action"`
	TargetType string `form:"target_type"`
	TargetID   string `form:"target_id"`
	ActorID    string `form:"actor_id"`
	ActorRole  string `form:"actor_role"`
	Since      *time.Time
	Until      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

// Service records who did what. Callers write entries after their own
// transaction commits, so a failed audit write never undoes a billing change.
type Service interface {
	AuditLog(ctx context.Context, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)
