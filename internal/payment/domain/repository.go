package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]Payment, error)
	// Deactivate reports false when the payment was already inactive.
	Deactivate(ctx context.Context, db *gorm.DB, id snowflake.ID, reversedAt time.Time, reason *string) (bool, error)
}
