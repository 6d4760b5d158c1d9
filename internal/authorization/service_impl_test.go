package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/schoolbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	db := testutil.OpenDB(t)
	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestResolve_Privilege(t *testing.T) {
	svc := newTestService(t)
	node := testutil.Node(t)
	ctx := context.Background()

	cases := map[string]bool{
		"ADMIN":      true,
		"director":   true,
		"Accountant": true,
		"TEACHER":    true,
		"PARENT":     false,
		"STUDENT":    false,
	}
	for role, privileged := range cases {
		actor, err := svc.Resolve(ctx, node.Generate(), role)
		require.NoError(t, err, role)
		assert.Equal(t, privileged, actor.Privileged, role)
	}

	_, err := svc.Resolve(ctx, node.Generate(), "JANITOR")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.Resolve(ctx, 0, "ADMIN")
	assert.ErrorIs(t, err, ErrInvalidActor)
}

func TestAuthorize_BillingCapabilities(t *testing.T) {
	svc := newTestService(t)
	node := testutil.Node(t)
	ctx := context.Background()

	accountant, err := svc.Resolve(ctx, node.Generate(), "ACCOUNTANT")
	require.NoError(t, err)
	teacher, err := svc.Resolve(ctx, node.Generate(), "TEACHER")
	require.NoError(t, err)
	parent, err := svc.Resolve(ctx, node.Generate(), "PARENT")
	require.NoError(t, err)

	assert.NoError(t, svc.Authorize(ctx, accountant, ObjectPayment, ActionPaymentRecord))
	assert.NoError(t, svc.Authorize(ctx, accountant, ObjectInvoice, ActionInvoiceManage))
	assert.ErrorIs(t, svc.Authorize(ctx, accountant, ObjectInvoice, ActionInvoiceCancel), ErrForbidden)

	assert.NoError(t, svc.Authorize(ctx, teacher, ObjectInvoice, ActionInvoiceView))
	assert.ErrorIs(t, svc.Authorize(ctx, teacher, ObjectPayment, ActionPaymentRecord), ErrForbidden)

	assert.ErrorIs(t, svc.Authorize(ctx, parent, ObjectInvoice, ActionInvoiceView), ErrForbidden)
}

func TestResolve_RoleChangeReplacesLink(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	userID := testutil.Node(t).Generate()

	actor, err := svc.Resolve(ctx, userID, "TEACHER")
	require.NoError(t, err)
	assert.True(t, actor.Privileged)

	actor, err = svc.Resolve(ctx, userID, "PARENT")
	require.NoError(t, err)
	assert.False(t, actor.Privileged)
}
