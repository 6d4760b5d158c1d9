// Package reconciliation keeps an invoice's derived fields consistent with
// its items and active payments.
//
// Every write that can change total_amount, amount_paid or status runs
// through Engine.Mutate. Mutate locks the invoice row, applies the caller's
// change, recomputes the sums from the child rows and writes the result with
// a compare-and-swap on the version column. Lost races and retryable database
// errors are retried a bounded number of times before ErrConcurrentUpdate is
// returned.
package reconciliation

import (
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
)

// DeriveStatus is the only place an invoice status is computed. Overpayment
// yields PAID.
func DeriveStatus(total, paid decimal.Decimal, cancelled bool) invoicedomain.InvoiceStatus {
	switch {
	case cancelled:
		return invoicedomain.InvoiceStatusCancelled
	case !paid.IsPositive():
		return invoicedomain.InvoiceStatusUnpaid
	case paid.LessThan(total):
		return invoicedomain.InvoiceStatusPartiallyPaid
	default:
		return invoicedomain.InvoiceStatusPaid
	}
}
