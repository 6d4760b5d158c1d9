// Package billingfixture wires the billing services against an in-memory
// database for tests.
package billingfixture

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/schoolbill/internal/audit/domain"
	auditrepo "github.com/smallbiznis/schoolbill/internal/audit/repository"
	auditservice "github.com/smallbiznis/schoolbill/internal/audit/service"
	"github.com/smallbiznis/schoolbill/internal/catalog"
	"github.com/smallbiznis/schoolbill/internal/clock"
	"github.com/smallbiznis/schoolbill/internal/config"
	feetypedomain "github.com/smallbiznis/schoolbill/internal/feetype/domain"
	feetypeservice "github.com/smallbiznis/schoolbill/internal/feetype/service"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	invoiceservice "github.com/smallbiznis/schoolbill/internal/invoice/service"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/schoolbill/internal/ledger/service"
	paymentdomain "github.com/smallbiznis/schoolbill/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/schoolbill/internal/payment/repository"
	paymentservice "github.com/smallbiznis/schoolbill/internal/payment/service"
	"github.com/smallbiznis/schoolbill/internal/reconciliation"
	"github.com/smallbiznis/schoolbill/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table the billing services touch.
func Models() []any {
	return []any{
		&catalog.Student{},
		&catalog.AcademicYear{},
		&feetypedomain.FeeType{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&paymentdomain.Payment{},
		&ledgerdomain.LedgerAccount{},
		&ledgerdomain.LedgerEntry{},
		&ledgerdomain.LedgerEntryLine{},
		&auditdomain.AuditLog{},
	}
}

type Fixture struct {
	DB    *gorm.DB
	Node  *snowflake.Node
	Clock *clock.FakeClock

	Engine   *reconciliation.Engine
	Ledger   ledgerdomain.Service
	Audit    auditdomain.Service
	FeeTypes feetypedomain.Service
	Invoices invoicedomain.Service
	Payments paymentdomain.Service
}

func New(t testing.TB) *Fixture {
	t.Helper()

	db := testutil.OpenDB(t, Models()...)
	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	audit := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: auditrepo.Provide(),
	})
	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
	})
	engine := reconciliation.NewEngine(reconciliation.Params{
		DB: db, Log: log, Clock: clk,
		Policy: config.NewStaticPolicyHolder(config.DefaultPolicy()),
	})

	return &Fixture{
		DB:     db,
		Node:   node,
		Clock:  clk,
		Engine: engine,
		Ledger: ledger,
		Audit:  audit,
		FeeTypes: feetypeservice.NewService(feetypeservice.Params{
			DB: db, Log: log, GenID: node, Clock: clk, AuditSvc: audit,
		}),
		Invoices: invoiceservice.NewService(invoiceservice.ServiceParam{
			DB: db, Log: log, GenID: node, Clock: clk,
			Catalog:   catalog.NewGormCatalog(db),
			Engine:    engine,
			LedgerSvc: ledger,
			AuditSvc:  audit,
		}),
		Payments: paymentservice.NewService(paymentservice.Params{
			DB: db, Log: log, GenID: node, Clock: clk,
			Repo:      paymentrepo.Provide(),
			Engine:    engine,
			LedgerSvc: ledger,
			AuditSvc:  audit,
		}),
	}
}

// Student inserts a catalog student and academic year.
func (f *Fixture) Student(t testing.TB) (studentID, yearID snowflake.ID) {
	t.Helper()
	student := catalog.Student{ID: f.Node.Generate(), FullName: "Kofi Boateng", Active: true}
	year := catalog.AcademicYear{ID: f.Node.Generate(), Label: "2025/2026"}
	require.NoError(t, f.DB.Create(&student).Error)
	require.NoError(t, f.DB.Create(&year).Error)
	return student.ID, year.ID
}

func (f *Fixture) FeeType(t testing.TB, name, amount string) feetypedomain.FeeType {
	t.Helper()
	ft, err := f.FeeTypes.Create(context.Background(), feetypedomain.CreateFeeTypeRequest{
		Name:   name,
		Amount: decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	return ft
}

// Invoice creates an invoice and adds one item per amount.
func (f *Fixture) Invoice(t testing.TB, amounts ...string) invoicedomain.Invoice {
	t.Helper()
	ctx := context.Background()
	studentID, yearID := f.Student(t)
	invoice, err := f.Invoices.CreateInvoice(ctx, invoicedomain.CreateInvoiceRequest{
		StudentID:      studentID,
		AcademicYearID: yearID,
		DueDate:        f.Clock.Now().AddDate(0, 1, 0),
	})
	require.NoError(t, err)

	if len(amounts) == 0 {
		return invoice
	}
	feeType := f.FeeType(t, "Tuition "+f.Node.Generate().String(), "0")
	for _, amount := range amounts {
		value := decimal.RequireFromString(amount)
		_, err := f.Invoices.AddItem(ctx, invoicedomain.AddItemRequest{
			InvoiceID: invoice.ID,
			FeeTypeID: feeType.ID,
			Amount:    &value,
		})
		require.NoError(t, err)
	}
	invoice, err = f.Invoices.Get(ctx, invoice.ID)
	require.NoError(t, err)
	return invoice
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
