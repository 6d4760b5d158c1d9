package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolbill/pkg/db/option"
	"gorm.io/gorm"
)

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (r *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	return &store[T]{db: tx}
}

func (r *store[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	var rows []*T
	if err := r.scoped(ctx, query, opts).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindOne returns nil without error when nothing matches.
func (r *store[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	row := new(T)
	err := r.scoped(ctx, query, opts).Take(row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return row, nil
}

func (r *store[T]) Create(ctx context.Context, resource *T) error {
	return r.db.WithContext(ctx).Create(resource).Error
}

func (r *store[T]) Delete(ctx context.Context, id snowflake.ID) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	return result.RowsAffected > 0, result.Error
}

// scoped applies the zero-value-skipping struct filter first, then opts in
// order.
func (r *store[T]) scoped(ctx context.Context, filter *T, opts []option.QueryOption) *gorm.DB {
	stmt := r.db.WithContext(ctx).Model(new(T))
	if filter != nil {
		stmt = stmt.Where(filter)
	}
	for _, opt := range opts {
		if opt != nil {
			stmt = opt.Apply(stmt)
		}
	}
	return stmt
}
