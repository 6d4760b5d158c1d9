package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodMobileMoney  PaymentMethod = "MOBILE_MONEY"
	PaymentMethodCard         PaymentMethod = "CARD"
)

// ParsePaymentMethod accepts any casing and surrounding whitespace.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	method := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
	switch method {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodMobileMoney, PaymentMethodCard:
		return method, nil
	}
	return "", ErrInvalidPaymentMethod
}

// Payment is never deleted. Reversal only clears Active.
type Payment struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id,string"`
	InvoiceID      snowflake.ID    `gorm:"not null;index" json:"invoice_id,string"`
	Amount         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	PaymentDate    time.Time       `gorm:"not null" json:"payment_date"`
	PaymentMethod  PaymentMethod   `gorm:"type:text;not null" json:"payment_method"`
	Reference      *string         `gorm:"type:text" json:"reference,omitempty"`
	Active         bool            `gorm:"not null;default:true;index" json:"active"`
	ReversedAt     *time.Time      `json:"reversed_at,omitempty"`
	ReversalReason *string         `gorm:"type:text" json:"reversal_reason,omitempty"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
}

func (Payment) TableName() string { return "payments" }
