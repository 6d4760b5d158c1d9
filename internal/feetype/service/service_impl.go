package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/schoolbill/internal/audit/domain"
	"github.com/smallbiznis/schoolbill/internal/clock"
	"github.com/smallbiznis/schoolbill/internal/feetype/domain"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	"github.com/smallbiznis/schoolbill/pkg/db"
	"github.com/smallbiznis/schoolbill/pkg/db/option"
	"github.com/smallbiznis/schoolbill/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	auditSvc auditdomain.Service

	feetyperepo repository.Repository[domain.FeeType]
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("feetype.service"),
		genID:    p.GenID,
		clock:    clk,
		auditSvc: p.AuditSvc,

		feetyperepo: repository.ProvideStore[domain.FeeType](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateFeeTypeRequest) (domain.FeeType, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 100 {
		return domain.FeeType{}, domain.ErrInvalidName
	}
	if !invoicedomain.ValidAmount(req.Amount) {
		return domain.FeeType{}, domain.ErrInvalidAmount
	}

	feeType := domain.FeeType{
		ID:        s.genID.Generate(),
		Name:      name,
		Amount:    req.Amount,
		CreatedAt: s.clock.Now(),
	}
	if err := s.feetyperepo.Create(ctx, &feeType); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.FeeType{}, domain.ErrDuplicateName
		}
		return domain.FeeType{}, err
	}

	s.audit(ctx, "fee_type.create", feeType.ID, map[string]any{
		"name":   feeType.Name,
		"amount": feeType.Amount.StringFixed(2),
	})
	return feeType, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.FeeType, error) {
	if id == 0 {
		return domain.FeeType{}, domain.ErrNotFound
	}
	item, err := s.feetyperepo.FindOne(ctx, &domain.FeeType{ID: id})
	if err != nil {
		return domain.FeeType{}, err
	}
	if item == nil {
		return domain.FeeType{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context) ([]domain.FeeType, error) {
	items, err := s.feetyperepo.Find(ctx, &domain.FeeType{},
		option.WithSortBy(option.QuerySortBy{
			Allow:  map[string]bool{"name": true},
			SortBy: "name",
			Asc:    true,
		}),
	)
	if err != nil {
		return nil, err
	}

	out := make([]domain.FeeType, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrNotFound
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var feeType domain.FeeType
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Take(&feeType).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		var refs int64
		if err := tx.Model(&invoicedomain.InvoiceItem{}).
			Where("fee_type_id = ?", id).
			Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return domain.ErrReferentialIntegrity
		}

		if _, err := s.feetyperepo.WithTrx(tx).Delete(ctx, id); err != nil {
			if db.IsForeignKeyErr(err) {
				return domain.ErrReferentialIntegrity
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, "fee_type.delete", id, nil)
	return nil
}

func (s *Service) audit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	if err := s.auditSvc.AuditLog(ctx, action, "fee_type", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
