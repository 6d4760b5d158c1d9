package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/schoolbill/internal/audit/domain"
	"github.com/smallbiznis/schoolbill/internal/audit/masking"
	"github.com/smallbiznis/schoolbill/internal/clock"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
	"github.com/smallbiznis/schoolbill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/schoolbill/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/schoolbill/internal/payment/domain"
	"github.com/smallbiznis/schoolbill/internal/reconciliation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       paymentdomain.Repository
	Engine     *reconciliation.Engine
	LedgerSvc  ledgerdomain.Service
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       paymentdomain.Repository
	engine     *reconciliation.Engine
	ledgerSvc  ledgerdomain.Service
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		engine:     p.Engine,
		ledgerSvc:  p.LedgerSvc,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) RecordPayment(ctx context.Context, req paymentdomain.RecordPaymentRequest) (paymentdomain.Payment, error) {
	if !req.Amount.IsPositive() || !invoicedomain.ValidAmount(req.Amount) {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidAmount
	}
	method, err := paymentdomain.ParsePaymentMethod(req.Method)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	var reference *string
	if ref := strings.TrimSpace(req.Reference); ref != "" {
		reference = &ref
	}

	var payment paymentdomain.Payment
	invoice, err := s.engine.Mutate(ctx, req.InvoiceID, func(tx *gorm.DB, invoice *invoicedomain.Invoice) error {
		if invoice.IsCancelled() {
			return invoicedomain.ErrInvoiceCancelled
		}
		total, _, err := reconciliation.Sums(tx, invoice.ID)
		if err != nil {
			return err
		}
		if !total.IsPositive() {
			return paymentdomain.ErrInvalidOperation
		}

		now := s.clock.Now()
		payment = paymentdomain.Payment{
			ID:            s.genID.Generate(),
			InvoiceID:     invoice.ID,
			Amount:        req.Amount,
			PaymentDate:   now,
			PaymentMethod: method,
			Reference:     reference,
			Active:        true,
			CreatedAt:     now,
		}
		if err := s.repo.Insert(ctx, tx, &payment); err != nil {
			return err
		}
		return s.ledgerSvc.Post(ctx, tx, ledgerdomain.PaymentReceived(payment.ID, invoice.ID, payment.Amount, now))
	})
	if err != nil {
		return paymentdomain.Payment{}, err
	}

	s.obsMetrics.RecordPayment(ctx, string(method))
	logger.WithContext(ctx, s.log).Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("status", string(invoice.Status)),
	)
	metadata := map[string]any{
		"invoice_id":     invoice.ID.String(),
		"amount":         payment.Amount.StringFixed(2),
		"payment_method": string(method),
		"invoice_status": string(invoice.Status),
	}
	if reference != nil {
		metadata["reference"] = *reference
	}
	s.audit(ctx, "payment.record", payment.ID, masking.MaskMetadata(metadata, "reference"))
	return payment, nil
}

func (s *Service) ReversePayment(ctx context.Context, paymentID snowflake.ID, reason string) (invoicedomain.Invoice, error) {
	existing, err := s.Get(ctx, paymentID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if !existing.Active {
		return invoicedomain.Invoice{}, paymentdomain.ErrAlreadyReversed
	}

	reason = strings.TrimSpace(reason)
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	invoice, err := s.engine.Mutate(ctx, existing.InvoiceID, func(tx *gorm.DB, invoice *invoicedomain.Invoice) error {
		if invoice.IsCancelled() {
			return invoicedomain.ErrInvoiceCancelled
		}
		now := s.clock.Now()
		ok, err := s.repo.Deactivate(ctx, tx, paymentID, now, reasonPtr)
		if err != nil {
			return err
		}
		if !ok {
			return paymentdomain.ErrAlreadyReversed
		}
		return s.ledgerSvc.Post(ctx, tx, ledgerdomain.PaymentReversed(paymentID, invoice.ID, existing.Amount, now))
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.obsMetrics.RecordPaymentReversal(ctx)
	s.audit(ctx, "payment.reverse", paymentID, map[string]any{
		"invoice_id":     invoice.ID.String(),
		"amount":         existing.Amount.StringFixed(2),
		"reason":         reason,
		"invoice_status": string(invoice.Status),
	})
	return invoice, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (paymentdomain.Payment, error) {
	if id == 0 {
		return paymentdomain.Payment{}, paymentdomain.ErrPaymentNotFound
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	if item == nil {
		return paymentdomain.Payment{}, paymentdomain.ErrPaymentNotFound
	}
	return *item, nil
}

func (s *Service) ListByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]paymentdomain.Payment, error) {
	var invoice invoicedomain.Invoice
	if err := s.db.WithContext(ctx).Select("id").Where("id = ?", invoiceID).Take(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoicedomain.ErrInvoiceNotFound
		}
		return nil, err
	}
	return s.repo.ListByInvoice(ctx, s.db, invoiceID)
}

func (s *Service) audit(ctx context.Context, action string, paymentID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := paymentID.String()
	if err := s.auditSvc.AuditLog(ctx, action, "payment", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
