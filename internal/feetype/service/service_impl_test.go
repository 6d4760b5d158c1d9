package service_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolbill/internal/feetype/domain"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	"github.com/smallbiznis/schoolbill/internal/testutil/billingfixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_Validation(t *testing.T) {
	f := billingfixture.New(t)
	ctx := context.Background()

	_, err := f.FeeTypes.Create(ctx, domain.CreateFeeTypeRequest{Name: "  ", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = f.FeeTypes.Create(ctx, domain.CreateFeeTypeRequest{Name: "Bus", Amount: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.FeeTypes.Create(ctx, domain.CreateFeeTypeRequest{Name: "Bus", Amount: billingfixture.Dec("1000000000000")})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	created, err := f.FeeTypes.Create(ctx, domain.CreateFeeTypeRequest{Name: " Bus ", Amount: billingfixture.Dec("75.50")})
	require.NoError(t, err)
	assert.Equal(t, "Bus", created.Name)

	_, err = f.FeeTypes.Create(ctx, domain.CreateFeeTypeRequest{Name: "Bus", Amount: decimal.NewFromInt(80)})
	assert.ErrorIs(t, err, domain.ErrDuplicateName)
}

func TestList_SortedByName(t *testing.T) {
	f := billingfixture.New(t)
	f.FeeType(t, "Uniform", "40")
	f.FeeType(t, "Exam", "25")
	f.FeeType(t, "Library", "10")

	items, err := f.FeeTypes.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"Exam", "Library", "Uniform"}, []string{items[0].Name, items[1].Name, items[2].Name})
}

func TestDelete_ProtectedWhileReferenced(t *testing.T) {
	f := billingfixture.New(t)
	ctx := context.Background()
	invoice := f.Invoice(t)
	feeType := f.FeeType(t, "Tuition", "500")

	item, err := f.Invoices.AddItem(ctx, invoicedomain.AddItemRequest{InvoiceID: invoice.ID, FeeTypeID: feeType.ID})
	require.NoError(t, err)

	err = f.FeeTypes.Delete(ctx, feeType.ID)
	assert.ErrorIs(t, err, domain.ErrReferentialIntegrity)

	_, err = f.FeeTypes.Get(ctx, feeType.ID)
	require.NoError(t, err)

	_, err = f.Invoices.RemoveItem(ctx, invoice.ID, item.ID)
	require.NoError(t, err)

	require.NoError(t, f.FeeTypes.Delete(ctx, feeType.ID))
	_, err = f.FeeTypes.Get(ctx, feeType.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, f.FeeTypes.Delete(ctx, feeType.ID), domain.ErrNotFound)
}
