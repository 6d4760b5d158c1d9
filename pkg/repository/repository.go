package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolbill/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a thin generic gorm store for plain reads and inserts.
// Anything that needs row locks or multi-table consistency goes through the
// owning service's transaction instead.
type Repository[T any] interface {
	// WithTrx binds the store to tx. The receiver is left unchanged.
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	// Delete reports whether a row with id existed.
	Delete(ctx context.Context, id snowflake.ID) (bool, error)
}
