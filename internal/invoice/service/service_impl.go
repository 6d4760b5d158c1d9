package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/schoolbill/internal/audit/domain"
	"github.com/smallbiznis/schoolbill/internal/catalog"
	"github.com/smallbiznis/schoolbill/internal/clock"
	feetypedomain "github.com/smallbiznis/schoolbill/internal/feetype/domain"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/schoolbill/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/schoolbill/internal/observability/metrics"
	"github.com/smallbiznis/schoolbill/internal/reconciliation"
	"github.com/smallbiznis/schoolbill/pkg/db/option"
	"github.com/smallbiznis/schoolbill/pkg/db/pagination"
	"github.com/smallbiznis/schoolbill/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Catalog    catalog.Catalog
	Engine     *reconciliation.Engine
	LedgerSvc  ledgerdomain.Service
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	catalog    catalog.Catalog
	engine     *reconciliation.Engine
	ledgerSvc  ledgerdomain.Service
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics

	invoicerepo repository.Repository[invoicedomain.Invoice]
	itemrepo    repository.Repository[invoicedomain.InvoiceItem]
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,

		clock:      p.Clock,
		catalog:    p.Catalog,
		engine:     p.Engine,
		ledgerSvc:  p.LedgerSvc,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,

		invoicerepo: repository.ProvideStore[invoicedomain.Invoice](p.DB),
		itemrepo:    repository.ProvideStore[invoicedomain.InvoiceItem](p.DB),
	}
}

func (s *Service) CreateInvoice(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	if req.DueDate.IsZero() {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidDueDate
	}

	ok, err := s.catalog.StudentExists(ctx, req.StudentID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if !ok {
		return invoicedomain.Invoice{}, invoicedomain.ErrStudentNotFound
	}
	ok, err = s.catalog.AcademicYearExists(ctx, req.AcademicYearID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if !ok {
		return invoicedomain.Invoice{}, invoicedomain.ErrAcademicYearNotFound
	}

	now := s.clock.Now()
	dueDate := req.DueDate.UTC()
	invoice := invoicedomain.Invoice{
		ID:             s.genID.Generate(),
		StudentID:      req.StudentID,
		AcademicYearID: req.AcademicYearID,
		TotalAmount:    zero,
		AmountPaid:     zero,
		DueDate:        time.Date(dueDate.Year(), dueDate.Month(), dueDate.Day(), 0, 0, 0, 0, time.UTC),
		Status:         invoicedomain.InvoiceStatusUnpaid,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.invoicerepo.Create(ctx, &invoice); err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.audit(ctx, "invoice.create", invoice.ID, map[string]any{
		"student_id":       invoice.StudentID.String(),
		"academic_year_id": invoice.AcademicYearID.String(),
	})
	return invoice, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (invoicedomain.Invoice, error) {
	if id == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	item, err := s.invoicerepo.FindOne(ctx, &invoicedomain.Invoice{ID: id})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if item == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	filter := &invoicedomain.Invoice{}
	if req.StudentID != nil {
		filter.StudentID = *req.StudentID
	}
	if req.AcademicYearID != nil {
		filter.AcademicYearID = *req.AcademicYearID
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidStatus
		}
		filter.Status = *req.Status
	}

	limit := req.Pagination.Limit()
	options := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}}),
		option.WithLimit(limit + 1),
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := decodeCursor(token)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		options = append(options, cursor)
	}

	items, err := s.invoicerepo.Find(ctx, filter, options...)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, limit, func(invoice *invoicedomain.Invoice) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        invoice.ID.String(),
			CreatedAt: invoice.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > limit {
		items = items[:limit]
	}

	invoices := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	resp := invoicedomain.ListInvoiceResponse{Invoices: invoices}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) ListItems(ctx context.Context, invoiceID snowflake.ID) ([]invoicedomain.InvoiceItem, error) {
	if _, err := s.Get(ctx, invoiceID); err != nil {
		return nil, err
	}
	items, err := s.itemrepo.Find(ctx, &invoicedomain.InvoiceItem{InvoiceID: invoiceID},
		option.WithSortBy(option.QuerySortBy{Asc: true}),
	)
	if err != nil {
		return nil, err
	}
	out := make([]invoicedomain.InvoiceItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) AddItem(ctx context.Context, req invoicedomain.AddItemRequest) (invoicedomain.InvoiceItem, error) {
	if req.InvoiceID == 0 {
		return invoicedomain.InvoiceItem{}, invoicedomain.ErrInvoiceNotFound
	}
	if req.FeeTypeID == 0 {
		return invoicedomain.InvoiceItem{}, feetypedomain.ErrNotFound
	}
	if req.Amount != nil && !invoicedomain.ValidAmount(*req.Amount) {
		return invoicedomain.InvoiceItem{}, invoicedomain.ErrInvalidAmount
	}

	var created invoicedomain.InvoiceItem
	_, err := s.engine.Mutate(ctx, req.InvoiceID, func(tx *gorm.DB, invoice *invoicedomain.Invoice) error {
		if invoice.IsCancelled() {
			return invoicedomain.ErrInvoiceCancelled
		}

		var feeType feetypedomain.FeeType
		if err := tx.Where("id = ?", req.FeeTypeID).Take(&feeType).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return feetypedomain.ErrNotFound
			}
			return err
		}

		amount := feeType.Amount
		if req.Amount != nil {
			amount = *req.Amount
		}
		description := strings.TrimSpace(req.Description)
		if description == "" {
			description = feeType.Name
		}

		now := s.clock.Now()
		created = invoicedomain.InvoiceItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoice.ID,
			FeeTypeID:   feeType.ID,
			Description: description,
			Amount:      amount,
			CreatedAt:   now,
		}
		if err := s.itemrepo.WithTrx(tx).Create(ctx, &created); err != nil {
			return err
		}
		return s.ledgerSvc.Post(ctx, tx, ledgerdomain.ItemCharged(created.ID, invoice.ID, amount, now))
	})
	if err != nil {
		return invoicedomain.InvoiceItem{}, err
	}

	s.audit(ctx, "invoice.item_add", req.InvoiceID, map[string]any{
		"item_id":     created.ID.String(),
		"fee_type_id": created.FeeTypeID.String(),
		"amount":      created.Amount.StringFixed(2),
	})
	return created, nil
}

func (s *Service) RemoveItem(ctx context.Context, invoiceID, itemID snowflake.ID) (invoicedomain.Invoice, error) {
	if itemID == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrItemNotFound
	}

	var removed invoicedomain.InvoiceItem
	invoice, err := s.engine.Mutate(ctx, invoiceID, func(tx *gorm.DB, invoice *invoicedomain.Invoice) error {
		if invoice.IsCancelled() {
			return invoicedomain.ErrInvoiceCancelled
		}
		item, err := s.itemrepo.WithTrx(tx).FindOne(ctx, &invoicedomain.InvoiceItem{ID: itemID, InvoiceID: invoice.ID})
		if err != nil {
			return err
		}
		if item == nil {
			return invoicedomain.ErrItemNotFound
		}
		removed = *item
		if _, err := s.itemrepo.WithTrx(tx).Delete(ctx, item.ID); err != nil {
			return err
		}
		return s.ledgerSvc.Post(ctx, tx, ledgerdomain.ItemRemoved(item.ID, invoice.ID, item.Amount, s.clock.Now()))
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.audit(ctx, "invoice.item_remove", invoiceID, map[string]any{
		"item_id": removed.ID.String(),
		"amount":  removed.Amount.StringFixed(2),
	})
	return invoice, nil
}

func (s *Service) RecomputeTotals(ctx context.Context, invoiceID snowflake.ID) (invoicedomain.Invoice, error) {
	return s.engine.Recompute(ctx, invoiceID)
}

func (s *Service) CancelInvoice(ctx context.Context, invoiceID snowflake.ID, req invoicedomain.CancelInvoiceRequest) (invoicedomain.Invoice, error) {
	reason := strings.TrimSpace(req.Reason)

	var paidAtCancel bool
	invoice, err := s.engine.Mutate(ctx, invoiceID, func(tx *gorm.DB, invoice *invoicedomain.Invoice) error {
		if invoice.IsCancelled() {
			return invoicedomain.ErrInvoiceCancelled
		}
		total, paid, err := reconciliation.Sums(tx, invoice.ID)
		if err != nil {
			return err
		}
		paidAtCancel = paid.IsPositive()
		if paidAtCancel && !req.Force {
			return invoicedomain.ErrOutstandingPayment
		}

		now := s.clock.Now()
		invoice.CancelledAt = &now
		if reason != "" {
			invoice.CancelReason = &reason
		}

		balance := total.Sub(paid)
		if !balance.IsPositive() {
			return nil
		}
		return s.ledgerSvc.Post(ctx, tx, ledgerdomain.InvoiceWrittenOff(invoice.ID, balance, now))
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.obsMetrics.RecordInvoiceCancelled(ctx, paidAtCancel)
	s.audit(ctx, "invoice.cancel", invoiceID, map[string]any{
		"had_payments": paidAtCancel,
		"reason":       reason,
	})
	return invoice, nil
}

func (s *Service) audit(ctx context.Context, action string, invoiceID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := invoiceID.String()
	if err := s.auditSvc.AuditLog(ctx, action, "invoice", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
