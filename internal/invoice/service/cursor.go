package service

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	"github.com/smallbiznis/schoolbill/pkg/db/option"
	"github.com/smallbiznis/schoolbill/pkg/db/pagination"
)

var zero = decimal.Zero

func decodeCursor(token string) (option.QueryOption, error) {
	decoded, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, invoicedomain.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
	if err != nil {
		return nil, invoicedomain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
	if err != nil || id == 0 {
		return nil, invoicedomain.ErrInvalidPageToken
	}
	return option.WithCursor(createdAt, int64(id)), nil
}
