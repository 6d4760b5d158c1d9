package migration

import (
	auditdomain "github.com/smallbiznis/schoolbill/internal/audit/domain"
	"github.com/smallbiznis/schoolbill/internal/catalog"
	documentdomain "github.com/smallbiznis/schoolbill/internal/document/domain"
	feetypedomain "github.com/smallbiznis/schoolbill/internal/feetype/domain"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/schoolbill/internal/payment/domain"
)

// Models is the schema for dialects without SQL migrations, in dependency
// order.
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
		&documentdomain.Document{},
	}
}
