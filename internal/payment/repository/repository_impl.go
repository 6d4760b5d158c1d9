package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolbill/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).Where("id = ?", id).Take(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repo) ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("payment_date asc, id asc").
		Find(&items).Error
	return items, err
}

func (r *repo) Deactivate(ctx context.Context, db *gorm.DB, id snowflake.ID, reversedAt time.Time, reason *string) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET active = ?, reversed_at = ?, reversal_reason = ?
		 WHERE id = ? AND active = ?`,
		false,
		reversedAt,
		reason,
		id,
		true,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
