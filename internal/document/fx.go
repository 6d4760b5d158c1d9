package document

import (
	"context"

	"github.com/smallbiznis/schoolbill/internal/document/repository"
	"github.com/smallbiznis/schoolbill/internal/document/service"
	"go.uber.org/fx"
)

var Module = fx.Module("document.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(service.NewIntegrityWorker),
	fx.Invoke(startIntegrityWorker),
)

func startIntegrityWorker(lc fx.Lifecycle, worker *service.IntegrityWorker) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go worker.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
