package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type PostingLine struct {
	Account   AccountCode
	Direction Direction
	Amount    decimal.Decimal
}

type Posting struct {
	SourceType SourceType
	SourceID   snowflake.ID
	InvoiceID  snowflake.ID
	OccurredAt time.Time
	Lines      []PostingLine
}

// ValidateBalanced checks that debits equal credits and that no line is
// negative.
func ValidateBalanced(lines []PostingLine) error {
	if len(lines) < 2 {
		return ErrInvalidEntryLines
	}
	debits := decimal.Zero
	credits := decimal.Zero
	for _, line := range lines {
		if line.Amount.IsNegative() {
			return ErrInvalidLineAmount
		}
		switch line.Direction {
		case Debit:
			debits = debits.Add(line.Amount)
		case Credit:
			credits = credits.Add(line.Amount)
		default:
			return ErrInvalidLineDirection
		}
	}
	if !debits.Equal(credits) {
		return ErrUnbalancedEntry
	}
	return nil
}

func transfer(debit, credit AccountCode, amount decimal.Decimal) []PostingLine {
	return []PostingLine{
		{Account: debit, Direction: Debit, Amount: amount},
		{Account: credit, Direction: Credit, Amount: amount},
	}
}

// ItemCharged bills a fee line to the student.
func ItemCharged(itemID, invoiceID snowflake.ID, amount decimal.Decimal, at time.Time) Posting {
	return Posting{
		SourceType: SourceTypeInvoiceItem,
		SourceID:   itemID,
		InvoiceID:  invoiceID,
		OccurredAt: at,
		Lines:      transfer(AccountReceivable, AccountRevenueFees, amount),
	}
}

// ItemRemoved undoes ItemCharged.
func ItemRemoved(itemID, invoiceID snowflake.ID, amount decimal.Decimal, at time.Time) Posting {
	return Posting{
		SourceType: SourceTypeInvoiceItemRemoval,
		SourceID:   itemID,
		InvoiceID:  invoiceID,
		OccurredAt: at,
		Lines:      transfer(AccountRevenueFees, AccountReceivable, amount),
	}
}

func PaymentReceived(paymentID, invoiceID snowflake.ID, amount decimal.Decimal, at time.Time) Posting {
	return Posting{
		SourceType: SourceTypePayment,
		SourceID:   paymentID,
		InvoiceID:  invoiceID,
		OccurredAt: at,
		Lines:      transfer(AccountCash, AccountReceivable, amount),
	}
}

func PaymentReversed(paymentID, invoiceID snowflake.ID, amount decimal.Decimal, at time.Time) Posting {
	return Posting{
		SourceType: SourceTypePaymentReversal,
		SourceID:   paymentID,
		InvoiceID:  invoiceID,
		OccurredAt: at,
		Lines:      transfer(AccountReceivable, AccountCash, amount),
	}
}

// InvoiceWrittenOff clears the open receivable of a cancelled invoice.
func InvoiceWrittenOff(invoiceID snowflake.ID, balance decimal.Decimal, at time.Time) Posting {
	return Posting{
		SourceType: SourceTypeInvoiceCancellation,
		SourceID:   invoiceID,
		InvoiceID:  invoiceID,
		OccurredAt: at,
		Lines:      transfer(AccountFeeAdjustment, AccountReceivable, balance),
	}
}
