package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolbill/internal/catalog"
	"github.com/smallbiznis/schoolbill/internal/config"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/schoolbill/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"0":         "0.00",
		"50000":     "50,000.00",
		"1234567.5": "1,234,567.50",
		"999.999":   "1,000.00",
		"-2500":     "-2,500.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatAmount(decimal.RequireFromString(in)), in)
	}
}

func fixtures() (invoicedomain.Invoice, []invoicedomain.InvoiceItem, []paymentdomain.Payment) {
	day := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	ref := "MPESA-QX81KL12"
	invoice := invoicedomain.Invoice{
		ID:          1001,
		TotalAmount: decimal.RequireFromString("50000"),
		AmountPaid:  decimal.RequireFromString("60000"),
		Status:      invoicedomain.InvoiceStatusPaid,
		DueDate:     day.AddDate(0, 1, 0),
		CreatedAt:   day,
	}
	items := []invoicedomain.InvoiceItem{
		{Description: "Tuition", Amount: decimal.RequireFromString("30000")},
		{Description: "Transport", Amount: decimal.RequireFromString("20000")},
	}
	payments := []paymentdomain.Payment{
		{ID: 1, Amount: decimal.RequireFromString("60000"), PaymentDate: day, PaymentMethod: paymentdomain.PaymentMethodMobileMoney, Reference: &ref, Active: true},
		{ID: 2, Amount: decimal.RequireFromString("5000"), PaymentDate: day, PaymentMethod: paymentdomain.PaymentMethodCash, Active: false},
	}
	return invoice, items, payments
}

func TestNewStatement(t *testing.T) {
	invoice, items, payments := fixtures()

	data := NewStatement(invoice, items, payments, catalog.Labels{StudentName: "Ama Mensah"})
	assert.Equal(t, "1001", data.InvoiceNumber)
	assert.Equal(t, "Ama Mensah", data.StudentName)
	assert.Equal(t, "-", data.AcademicYear)
	assert.Equal(t, "Paid", data.Status)
	assert.Equal(t, "Credit", data.BalanceLabel)
	assert.Equal(t, "10,000.00", data.Balance)
	require.Len(t, data.Payments, 2)
	assert.Equal(t, "Mobile Money", data.Payments[0].Method)
	assert.Equal(t, "MPESA-****KL12", data.Payments[0].Reference)
	assert.True(t, data.Payments[1].Reversed)
	assert.Equal(t, "-", data.Payments[1].Reference)
}

func TestGenerateDocuments(t *testing.T) {
	invoice, items, payments := fixtures()
	r := New(config.Config{School: config.SchoolConfig{Name: "Lycée Central", Email: "bursar@example.org"}})
	ctx := context.Background()

	out, err := r.GenerateStatement(ctx, NewStatement(invoice, items, payments, catalog.Labels{}))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	out, err = r.GenerateReceipt(ctx, NewReceipt(invoice, payments[0], catalog.Labels{}))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	reversed := NewReceipt(invoice, payments[1], catalog.Labels{})
	assert.True(t, reversed.Reversed)
	out, err = r.GenerateReceipt(ctx, reversed)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.GenerateStatement(cancelled, Statement{})
	assert.ErrorIs(t, err, context.Canceled)
}
