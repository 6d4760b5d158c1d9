package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, doc *Document) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Document, error)
	// List returns up to Limit+1 rows ordered by created_at desc, id desc.
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Document, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}
