package reconciliation

import "go.uber.org/fx"

var Module = fx.Module("reconciliation.engine",
	fx.Provide(NewEngine),
)
