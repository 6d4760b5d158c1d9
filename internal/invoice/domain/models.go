// Package domain contains persistence models for school fee invoices.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is derived from totals and payments; only CANCELLED is set
// directly.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid        InvoiceStatus = "UNPAID"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// Invoice bills one student for one academic year.
type Invoice struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id,string"`
	StudentID      snowflake.ID    `gorm:"not null;index" json:"student_id,string"`
	AcademicYearID snowflake.ID    `gorm:"not null;index" json:"academic_year_id,string"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total_amount"`
	AmountPaid     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"amount_paid"`
	DueDate        time.Time       `gorm:"type:date;not null" json:"due_date"`
	Status         InvoiceStatus   `gorm:"type:varchar(32);not null;default:'UNPAID';index" json:"status"`
	Version        int64           `gorm:"not null;default:0" json:"version"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason   *string         `gorm:"type:text" json:"cancel_reason,omitempty"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Balance is negative when the student has overpaid.
func (i Invoice) Balance() decimal.Decimal {
	return i.TotalAmount.Sub(i.AmountPaid)
}

func (i Invoice) IsCancelled() bool {
	return i.CancelledAt != nil || i.Status == InvoiceStatusCancelled
}

// InvoiceItem is one fee line. Amount may differ from the fee type's
// catalog amount.
type InvoiceItem struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id,string"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoice_id,string"`
	FeeTypeID   snowflake.ID    `gorm:"not null;index" json:"fee_type_id,string"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }
