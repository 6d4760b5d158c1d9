package service

import (
	"context"
	"time"

	auditdomain "github.com/smallbiznis/schoolbill/internal/audit/domain"
	"github.com/smallbiznis/schoolbill/internal/batchmetrics"
	"github.com/smallbiznis/schoolbill/internal/config"
	"github.com/smallbiznis/schoolbill/internal/document/domain"
	obscontext "github.com/smallbiznis/schoolbill/internal/observability/context"
	"github.com/smallbiznis/schoolbill/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// pollInterval is how often a disabled sweep looks for a policy reload.
	pollInterval = time.Minute
	sweepTimeout = 10 * time.Minute
	sweepLockKey = "documents:integrity:sweep"
)

// IntegrityWorker runs CheckIntegrity on the documents.integrityInterval
// cadence. The interval is re-read before every wait so policy reloads apply
// without a restart; zero disables the sweep. With a redis locker only one
// replica sweeps per tick.
type IntegrityWorker struct {
	svc      domain.Service
	policy   *config.PolicyHolder
	locker   *ratelimit.Locker
	recorder *batchmetrics.SweepRecorder
	log      *zap.Logger
}

type WorkerParams struct {
	fx.In

	Svc      domain.Service
	Policy   *config.PolicyHolder
	Locker   *ratelimit.Locker           `optional:"true"`
	Recorder *batchmetrics.SweepRecorder `optional:"true"`
	Log      *zap.Logger
}

func NewIntegrityWorker(p WorkerParams) *IntegrityWorker {
	return &IntegrityWorker{
		svc:      p.Svc,
		policy:   p.Policy,
		locker:   p.Locker,
		recorder: p.Recorder,
		log:      p.Log.Named("document.integrity"),
	}
}

func (w *IntegrityWorker) RunForever(ctx context.Context) {
	for {
		interval := w.policy.Documents().IntegrityInterval
		enabled := interval > 0
		if !enabled {
			interval = pollInterval
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if enabled {
			w.RunOnce(ctx)
		}
	}
}

func (w *IntegrityWorker) RunOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, sweepTimeout)
	defer cancel()

	if w.locker != nil {
		lease, err := w.locker.Acquire(ctx, sweepLockKey, sweepTimeout)
		if err != nil {
			w.log.Warn("document integrity lock failed", zap.Error(err))
			return
		}
		if lease == nil {
			w.log.Debug("document integrity sweep running elsewhere")
			return
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				w.log.Warn("document integrity lock release failed", zap.Error(err))
			}
		}()
	}

	ctx = obscontext.WithActor(ctx, auditdomain.ActorRoleSystem, "document-integrity")
	report, err := w.svc.CheckIntegrity(ctx)
	if err != nil {
		w.log.Warn("document integrity sweep failed", zap.Error(err))
		w.recorder.RecordFailure(ctx)
		return
	}
	w.recorder.RecordSweep(ctx, report)
}
