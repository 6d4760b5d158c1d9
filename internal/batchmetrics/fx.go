package batchmetrics

import "go.uber.org/fx"

var Module = fx.Module("batch.metrics",
	fx.Provide(NewPusher),
	fx.Provide(NewSweepRecorder),
)
