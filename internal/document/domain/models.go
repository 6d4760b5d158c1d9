// Package domain holds document metadata. File bytes live in blob storage
// under StorageHandle and are never rewritten.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Document struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id,string"`
	OwnerID       snowflake.ID `gorm:"not null;index:idx_documents_owner_created,priority:1" json:"owner_id,string"`
	UploaderID    snowflake.ID `gorm:"not null" json:"uploader_id,string"`
	Filename      string       `gorm:"type:text;not null" json:"filename"`
	Extension     string       `gorm:"type:text;not null" json:"extension"`
	Size          int64        `gorm:"not null" json:"size"`
	ContentType   string       `gorm:"type:text;not null" json:"content_type"`
	Checksum      string       `gorm:"type:text;not null" json:"checksum"`
	StorageHandle string       `gorm:"type:varchar(200);not null;uniqueIndex:ux_documents_storage_handle" json:"-"`
	CreatedAt     time.Time    `gorm:"not null;index:idx_documents_owner_created,priority:2;index:idx_documents_created" json:"created_at"`
}

// TableName sets the database table name.
func (Document) TableName() string { return "documents" }

type DocumentCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	OwnerID *snowflake.ID
	Cursor  *DocumentCursor
	Limit   int
}

// IntegrityReport is the outcome of one sweep over metadata and blobs.
type IntegrityReport struct {
	CheckedDocuments  int            `json:"checked_documents"`
	DanglingDocuments []snowflake.ID `json:"dangling_documents"`
	OrphansRemoved    []string       `json:"orphans_removed"`
	OrphansRetained   int            `json:"orphans_retained"`
	StartedAt         time.Time      `json:"started_at"`
	FinishedAt        time.Time      `json:"finished_at"`
}
