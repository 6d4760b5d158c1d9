package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const ActorRoleSystem = "SYSTEM"

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id,string"`
	ActorRole  string            `gorm:"type:text;not null" json:"actor_role"`
	ActorID    *string           `gorm:"type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:varchar(128);not null;index" json:"action"`
	TargetType string            `gorm:"type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"type:varchar(64);index" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	RequestID  *string           `gorm:"type:text" json:"request_id,omitempty"`
	IPAddress  *string           `gorm:"type:text" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

// ListFilter bounds are half open: Since is inclusive, Until is exclusive.
type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorID    string
	ActorRole  string
	Since      *time.Time
	Until      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
