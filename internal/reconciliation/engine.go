package reconciliation

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolbill/internal/clock"
	"github.com/smallbiznis/schoolbill/internal/config"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	"github.com/smallbiznis/schoolbill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/schoolbill/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/schoolbill/internal/payment/domain"
	"github.com/smallbiznis/schoolbill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrConcurrentUpdate = errors.New("concurrent_update")

// errStale marks a lost compare-and-swap inside one attempt.
var errStale = errors.New("stale_invoice_version")

// Mutation changes child rows or cancellation fields of a locked invoice.
// It must use tx for every query and may run more than once.
type Mutation func(tx *gorm.DB, invoice *invoicedomain.Invoice) error

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Policy     *config.PolicyHolder
	Clock      clock.Clock         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Engine struct {
	db         *gorm.DB
	log        *zap.Logger
	policy     *config.PolicyHolder
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewEngine(p Params) *Engine {
	clk := p.Clock
	if clk == nil {
		clk = clock.System{}
	}
	policy := p.Policy
	if policy == nil {
		policy = config.NewStaticPolicyHolder(config.DefaultPolicy())
	}
	return &Engine{
		db:         p.DB,
		log:        p.Log.Named("reconciliation.engine"),
		policy:     policy,
		clock:      clk,
		obsMetrics: p.ObsMetrics,
	}
}

// Recompute re-derives the invoice from its rows. Calling it on a consistent
// invoice changes nothing, including the version.
func (e *Engine) Recompute(ctx context.Context, invoiceID snowflake.ID) (invoicedomain.Invoice, error) {
	return e.Mutate(ctx, invoiceID, nil)
}

func (e *Engine) Mutate(ctx context.Context, invoiceID snowflake.ID, fn Mutation) (invoicedomain.Invoice, error) {
	attempts := e.policy.Billing().MaxConflictRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		invoice, err := e.attempt(ctx, invoiceID, fn)
		if err == nil {
			return invoice, nil
		}
		if !errors.Is(err, errStale) && !db.IsRetryableErr(err) {
			return invoicedomain.Invoice{}, err
		}
		lastErr = err
		e.obsMetrics.RecordReconcileConflict(ctx, "retry")
		logger.WithContext(ctx, e.log).Info("invoice reconciliation conflict",
			zap.String("invoice_id", invoiceID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	e.obsMetrics.RecordReconcileConflict(ctx, "exhausted")
	logger.WithContext(ctx, e.log).Warn("invoice reconciliation gave up",
		zap.String("invoice_id", invoiceID.String()),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	return invoicedomain.Invoice{}, ErrConcurrentUpdate
}

func (e *Engine) attempt(ctx context.Context, invoiceID snowflake.ID, fn Mutation) (invoicedomain.Invoice, error) {
	var result invoicedomain.Invoice
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoice invoicedomain.Invoice
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", invoiceID).
			Take(&invoice).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invoicedomain.ErrInvoiceNotFound
			}
			return err
		}
		before := invoice

		if fn != nil {
			if err := fn(tx, &invoice); err != nil {
				return err
			}
		}

		total, paid, err := Sums(tx, invoiceID)
		if err != nil {
			return err
		}
		if total.GreaterThan(invoicedomain.MaxAmount) || paid.GreaterThan(invoicedomain.MaxAmount) {
			return invoicedomain.ErrAmountLimitExceeded
		}
		invoice.TotalAmount = total
		invoice.AmountPaid = paid
		invoice.Status = DeriveStatus(total, paid, invoice.CancelledAt != nil)

		if !changed(before, invoice) {
			result = before
			return nil
		}

		invoice.Version = before.Version + 1
		invoice.UpdatedAt = e.clock.Now()
		res := tx.Model(&invoicedomain.Invoice{}).
			Where("id = ? AND version = ?", invoiceID, before.Version).
			Updates(map[string]any{
				"total_amount":  invoice.TotalAmount,
				"amount_paid":   invoice.AmountPaid,
				"status":        invoice.Status,
				"version":       invoice.Version,
				"cancelled_at":  invoice.CancelledAt,
				"cancel_reason": invoice.CancelReason,
				"updated_at":    invoice.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStale
		}
		result = invoice
		return nil
	})
	return result, err
}

type amountRow struct {
	Amount decimal.Decimal
}

// Sums reads the item total and the active payment total of one invoice.
// Amounts are added in decimal on the Go side so every dialect agrees.
func Sums(tx *gorm.DB, invoiceID snowflake.ID) (total, paid decimal.Decimal, err error) {
	var items []amountRow
	if err = tx.Model(&invoicedomain.InvoiceItem{}).
		Select("amount").
		Where("invoice_id = ?", invoiceID).
		Scan(&items).Error; err != nil {
		return
	}
	var payments []amountRow
	if err = tx.Model(&paymentdomain.Payment{}).
		Select("amount").
		Where("invoice_id = ? AND active = ?", invoiceID, true).
		Scan(&payments).Error; err != nil {
		return
	}
	return sum(items), sum(payments), nil
}

func sum(rows []amountRow) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Amount)
	}
	return total.Round(2)
}

func changed(before, after invoicedomain.Invoice) bool {
	if !before.TotalAmount.Equal(after.TotalAmount) ||
		!before.AmountPaid.Equal(after.AmountPaid) ||
		before.Status != after.Status {
		return true
	}
	if (before.CancelledAt == nil) != (after.CancelledAt == nil) {
		return true
	}
	if (before.CancelReason == nil) != (after.CancelReason == nil) {
		return true
	}
	return before.CancelReason != nil && *before.CancelReason != *after.CancelReason
}
