// Package domain holds the double-entry ledger that mirrors billing events.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

type SourceType string

const (
	SourceTypeInvoiceItem         SourceType = "invoice_item"
	SourceTypeInvoiceItemRemoval  SourceType = "invoice_item_removal"
	SourceTypePayment             SourceType = "payment"
	SourceTypePaymentReversal     SourceType = "payment_reversal"
	SourceTypeInvoiceCancellation SourceType = "invoice_cancellation"
)

type AccountCode string

const (
	AccountReceivable    AccountCode = "accounts_receivable"
	AccountCash          AccountCode = "cash"
	AccountRevenueFees   AccountCode = "revenue_fees"
	AccountFeeAdjustment AccountCode = "fee_adjustment"
)

var accountNames = map[AccountCode]string{
	AccountReceivable:    "Accounts receivable",
	AccountCash:          "Cash and bank",
	AccountRevenueFees:   "School fee revenue",
	AccountFeeAdjustment: "Fee write-offs",
}

// AccountName returns the display name of a chart-of-accounts code.
func AccountName(code AccountCode) string {
	if name, ok := accountNames[code]; ok {
		return name
	}
	return string(code)
}

type LedgerAccount struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Code      AccountCode  `gorm:"type:varchar(64);not null;uniqueIndex:ux_ledger_accounts_code"`
	Name      string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null"`
}

func (LedgerAccount) TableName() string { return "ledger_accounts" }

// LedgerEntry is the immutable header of one financial event. A source can
// be posted only once.
type LedgerEntry struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	SourceType SourceType   `gorm:"type:varchar(64);not null;uniqueIndex:ux_ledger_entries_source,priority:1"`
	SourceID   snowflake.ID `gorm:"not null;uniqueIndex:ux_ledger_entries_source,priority:2"`
	InvoiceID  snowflake.ID `gorm:"not null;index"`
	OccurredAt time.Time    `gorm:"not null"`
	CreatedAt  time.Time    `gorm:"not null"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

type LedgerEntryLine struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	LedgerEntryID snowflake.ID    `gorm:"not null;index"`
	AccountID     snowflake.ID    `gorm:"not null;index"`
	Direction     Direction       `gorm:"type:text;not null"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	CreatedAt     time.Time       `gorm:"not null"`
}

func (LedgerEntryLine) TableName() string { return "ledger_entry_lines" }
