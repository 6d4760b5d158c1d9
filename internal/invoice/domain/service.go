package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolbill/pkg/db/pagination"
)

type CreateInvoiceRequest struct {
	StudentID      snowflake.ID `json:"student_id,string"`
	AcademicYearID snowflake.ID `json:"academic_year_id,string"`
	DueDate        time.Time    `json:"due_date"`
}

type ListInvoiceRequest struct {
	pagination.Pagination
	StudentID      *snowflake.ID
	AcademicYearID *snowflake.ID
	Status         *InvoiceStatus
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

// AddItemRequest leaves Amount nil to bill the fee type's catalog amount.
type AddItemRequest struct {
	InvoiceID   snowflake.ID
	FeeTypeID   snowflake.ID
	Amount      *decimal.Decimal
	Description string
}

type CancelInvoiceRequest struct {
	Force  bool   `json:"force"`
	Reason string `json:"reason"`
}

type Service interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	Get(ctx context.Context, id snowflake.ID) (Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	ListItems(ctx context.Context, invoiceID snowflake.ID) ([]InvoiceItem, error)

	AddItem(ctx context.Context, req AddItemRequest) (InvoiceItem, error)
	RemoveItem(ctx context.Context, invoiceID, itemID snowflake.ID) (Invoice, error)

	RecomputeTotals(ctx context.Context, invoiceID snowflake.ID) (Invoice, error)
	CancelInvoice(ctx context.Context, invoiceID snowflake.ID, req CancelInvoiceRequest) (Invoice, error)
}

var (
	ErrInvoiceNotFound      = errors.New("invoice_not_found")
	ErrItemNotFound         = errors.New("invoice_item_not_found")
	ErrStudentNotFound      = errors.New("student_not_found")
	ErrAcademicYearNotFound = errors.New("academic_year_not_found")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidDueDate       = errors.New("invalid_due_date")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidPageToken     = errors.New("invalid_page_token")
	ErrInvoiceCancelled     = errors.New("invoice_cancelled")
	ErrOutstandingPayment   = errors.New("invoice_has_payments")
	ErrAmountLimitExceeded  = errors.New("invoice_amount_limit_exceeded")
)

// MaxAmount is the largest value a NUMERIC(14,2) money column holds.
var MaxAmount = decimal.New(99999999999999, -2)

// ValidAmount reports whether v is a non-negative amount with at most two
// decimal places that fits a money column.
func ValidAmount(v decimal.Decimal) bool {
	return !v.IsNegative() && v.Equal(v.Round(2)) && v.LessThanOrEqual(MaxAmount)
}
