package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type CreateFeeTypeRequest struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type Service interface {
	Create(ctx context.Context, req CreateFeeTypeRequest) (FeeType, error)
	Get(ctx context.Context, id snowflake.ID) (FeeType, error)
	List(ctx context.Context) ([]FeeType, error)
	// Delete fails with ErrReferentialIntegrity while any invoice item
	// still points at the fee type.
	Delete(ctx context.Context, id snowflake.ID) error
}

var (
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrDuplicateName        = errors.New("fee_type_name_taken")
	ErrNotFound             = errors.New("fee_type_not_found")
	ErrReferentialIntegrity = errors.New("fee_type_in_use")
)
