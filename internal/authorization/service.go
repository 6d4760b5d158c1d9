package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

const (
	ObjectFeeType  = "fee_type"
	ObjectInvoice  = "invoice"
	ObjectPayment  = "payment"
	ObjectDocument = "document"
	ObjectAuditLog = "audit_log"
)

const (
	ActionFeeTypeManage  = "fee_type.manage"
	ActionInvoiceView    = "invoice.view"
	ActionInvoiceManage  = "invoice.manage"
	ActionInvoiceCancel  = "invoice.cancel"
	ActionPaymentRecord  = "payment.record"
	ActionPaymentReverse = "payment.reverse"

	ActionDocumentViewAll        = "document.view_all"
	ActionDocumentUploadOnBehalf = "document.upload_on_behalf"

	ActionAuditLogView = "audit_log.view"
)

type Service interface {
	// Resolve validates the role and decides document privilege.
	Resolve(ctx context.Context, userID snowflake.ID, role string) (Actor, error)
	Authorize(ctx context.Context, actor Actor, object string, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidRole   = errors.New("invalid_role")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
