// Package domain contains the fee catalog model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// FeeType is a catalog entry such as tuition or transport. The amount is the
// suggested price; invoice items may override it.
type FeeType struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id,string"`
	Name      string          `gorm:"type:varchar(100);not null;uniqueIndex:ux_fee_types_name" json:"name"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (FeeType) TableName() string { return "fee_types" }
