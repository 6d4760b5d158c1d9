// Package option holds composable gorm query modifiers used by repositories.
package option

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
	IN  Operator = "IN"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a single comparison. Field names are not escaped, so
// they must come from code, never from request input.
func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(cond.Field)
		if field == "" {
			return db
		}
		switch cond.Operator {
		case IN:
			return db.Where(fmt.Sprintf("%s IN ?", field), cond.Value)
		case EQ, GT, GTE, LT, LTE:
			return db.Where(fmt.Sprintf("%s %s ?", field, cond.Operator), cond.Value)
		default:
			return db
		}
	})
}

type QuerySortBy struct {
	Allow  map[string]bool
	SortBy string
	Asc    bool
}

// WithSortBy orders by an allowlisted column, falling back to created_at
// with id as tie breaker.
func WithSortBy(sort QuerySortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		column := strings.TrimSpace(sort.SortBy)
		if column == "" || !sort.Allow[column] {
			column = "created_at"
		}
		direction := "desc"
		if sort.Asc {
			direction = "asc"
		}
		return db.Order(fmt.Sprintf("%s %s, id %s", column, direction, direction))
	})
}

// WithCursor continues a created_at desc, id desc keyset scan.
func WithCursor(createdAt time.Time, id int64) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	})
}

func WithLimit(limit int) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}
