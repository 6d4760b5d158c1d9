package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolbill/internal/clock"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
	"github.com/smallbiznis/schoolbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	db := testutil.OpenDB(t,
		&ledgerdomain.LedgerAccount{},
		&ledgerdomain.LedgerEntry{},
		&ledgerdomain.LedgerEntryLine{},
	)
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.Node(t),
		Clock: clock.NewFakeClock(time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)),
	})
	return svc.(*Service), db
}

func TestPost_ReceivableFollowsChargesAndPayments(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	node := testutil.Node(t)
	invoiceID := node.Generate()
	at := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

	itemA, itemB, payment := node.Generate(), node.Generate(), node.Generate()
	postings := []ledgerdomain.Posting{
		ledgerdomain.ItemCharged(itemA, invoiceID, decimal.RequireFromString("1200.00"), at),
		ledgerdomain.ItemCharged(itemB, invoiceID, decimal.RequireFromString("300.50"), at),
		ledgerdomain.PaymentReceived(payment, invoiceID, decimal.RequireFromString("500.00"), at),
		ledgerdomain.ItemRemoved(itemB, invoiceID, decimal.RequireFromString("300.50"), at),
	}
	for _, posting := range postings {
		require.NoError(t, svc.Post(ctx, db, posting))
	}

	ar, err := svc.InvoiceReceivable(ctx, invoiceID)
	require.NoError(t, err)
	assert.True(t, ar.Equal(decimal.RequireFromString("700.00")), ar.String())

	revenue, err := svc.AccountBalance(ctx, ledgerdomain.AccountRevenueFees)
	require.NoError(t, err)
	assert.True(t, revenue.Equal(decimal.RequireFromString("1200.00")), revenue.String())

	cash, err := svc.AccountBalance(ctx, ledgerdomain.AccountCash)
	require.NoError(t, err)
	assert.True(t, cash.Equal(decimal.RequireFromString("500.00")), cash.String())
}

func TestPost_IdempotentPerSource(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	node := testutil.Node(t)
	invoiceID, paymentID := node.Generate(), node.Generate()
	posting := ledgerdomain.PaymentReceived(paymentID, invoiceID, decimal.NewFromInt(250), time.Now())

	require.NoError(t, svc.Post(ctx, db, posting))
	require.NoError(t, svc.Post(ctx, db, posting))

	var entries int64
	require.NoError(t, db.Model(&ledgerdomain.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(1), entries)

	var lines int64
	require.NoError(t, db.Model(&ledgerdomain.LedgerEntryLine{}).Count(&lines).Error)
	assert.Equal(t, int64(2), lines)
}

func TestPost_SkipsZeroAmounts(t *testing.T) {
	svc, db := newTestService(t)
	node := testutil.Node(t)

	err := svc.Post(context.Background(), db,
		ledgerdomain.ItemCharged(node.Generate(), node.Generate(), decimal.Zero, time.Now()))
	require.NoError(t, err)

	var entries int64
	require.NoError(t, db.Model(&ledgerdomain.LedgerEntry{}).Count(&entries).Error)
	assert.Zero(t, entries)
}

func TestPost_RejectsUnbalancedLines(t *testing.T) {
	svc, db := newTestService(t)
	node := testutil.Node(t)

	err := svc.Post(context.Background(), db, ledgerdomain.Posting{
		SourceType: ledgerdomain.SourceTypePayment,
		SourceID:   node.Generate(),
		InvoiceID:  node.Generate(),
		OccurredAt: time.Now(),
		Lines: []ledgerdomain.PostingLine{
			{Account: ledgerdomain.AccountCash, Direction: ledgerdomain.Debit, Amount: decimal.NewFromInt(10)},
			{Account: ledgerdomain.AccountReceivable, Direction: ledgerdomain.Credit, Amount: decimal.NewFromInt(9)},
		},
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrUnbalancedEntry)
}

func TestPost_RollsBackWithCallerTransaction(t *testing.T) {
	svc, db := newTestService(t)
	node := testutil.Node(t)
	ctx := context.Background()

	_ = db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, svc.Post(ctx, tx,
			ledgerdomain.ItemCharged(node.Generate(), node.Generate(), decimal.NewFromInt(40), time.Now())))
		return assert.AnError
	})

	var entries int64
	require.NoError(t, db.Model(&ledgerdomain.LedgerEntry{}).Count(&entries).Error)
	assert.Zero(t, entries)
}
