// Package pdf renders fee statements and payment receipts.
package pdf

import (
	"context"

	"github.com/smallbiznis/schoolbill/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

type Provider interface {
	GenerateStatement(ctx context.Context, data Statement) ([]byte, error)
	GenerateReceipt(ctx context.Context, data Receipt) ([]byte, error)
}

type Renderer struct {
	school config.SchoolConfig
}

func New(cfg config.Config) Provider {
	return &Renderer{school: cfg.School}
}
