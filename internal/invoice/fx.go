package invoice

import (
	"github.com/smallbiznis/schoolbill/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(service.NewService),
)
