package feetype

import (
	"github.com/smallbiznis/schoolbill/internal/feetype/service"
	"go.uber.org/fx"
)

var Module = fx.Module("feetype.service",
	fx.Provide(service.NewService),
)
