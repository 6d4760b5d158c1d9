package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service posts entries inside the caller's transaction so a billing write
// and its ledger entry commit or roll back together.
type Service interface {
	Post(ctx context.Context, tx *gorm.DB, posting Posting) error
	AccountBalance(ctx context.Context, code AccountCode) (decimal.Decimal, error)
	InvoiceReceivable(ctx context.Context, invoiceID snowflake.ID) (decimal.Decimal, error)
}

var (
	ErrInvalidSourceType    = errors.New("invalid_source_type")
	ErrInvalidSourceID      = errors.New("invalid_source_id")
	ErrInvalidOccurredAt    = errors.New("invalid_occurred_at")
	ErrInvalidEntryLines    = errors.New("invalid_entry_lines")
	ErrInvalidLineAmount    = errors.New("invalid_line_amount")
	ErrInvalidLineDirection = errors.New("invalid_line_direction")
	ErrUnbalancedEntry      = errors.New("unbalanced_entry")
	ErrUnknownAccount       = errors.New("unknown_account")
)
