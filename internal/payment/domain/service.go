package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
)

type RecordPaymentRequest struct {
	InvoiceID snowflake.ID
	Amount    decimal.Decimal
	Method    string
	Reference string
}

type Service interface {
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (Payment, error)
	// ReversePayment returns the invoice as recomputed after the reversal.
	ReversePayment(ctx context.Context, paymentID snowflake.ID, reason string) (invoicedomain.Invoice, error)
	Get(ctx context.Context, id snowflake.ID) (Payment, error)
	ListByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]Payment, error)
}

var (
	ErrPaymentNotFound      = errors.New("payment_not_found")
	ErrInvalidAmount        = errors.New("invalid_payment_amount")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrAlreadyReversed      = errors.New("payment_already_reversed")
	ErrInvalidOperation     = errors.New("invoice_has_no_billable_items")
)
