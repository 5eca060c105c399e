package worker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemora/pkg/usecase"
	"github.com/secmon-lab/mnemora/pkg/utils/async"
	"github.com/secmon-lab/mnemora/pkg/utils/logging"
)

// Maintainer is the surface of the engine the maintenance loop drives
type Maintainer interface {
	Consolidate(ctx context.Context) (*usecase.ConsolidateResult, error)
	Cleanup(ctx context.Context) (int, error)
}

// MaintenanceWorker periodically consolidates near-duplicate records and
// reaps expired ones.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type MaintenanceWorker struct {
	engine   Maintainer
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewMaintenanceWorker creates a worker running a maintenance pass every interval
func NewMaintenanceWorker(engine Maintainer, interval time.Duration) *MaintenanceWorker {
	return &MaintenanceWorker{
		engine:   engine,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background maintenance loop
// - Initial pass and periodic passes both run in a background goroutine
// - Does not block startup
func (w *MaintenanceWorker) Start(ctx context.Context) error {
	logging.Default().Info("maintenance worker starting",
		"interval", w.interval.String())

	async.Dispatch(ctx, func(ctx context.Context) error {
		w.run(ctx)
		return nil
	})

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *MaintenanceWorker) Stop() {
	logging.Default().Info("maintenance worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("maintenance worker stopped")
}

func (w *MaintenanceWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	if err := w.RunOnce(ctx); err != nil {
		logging.Default().Error("initial maintenance pass failed (will retry next interval)",
			"error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				// Log error but continue worker
				logging.Default().Error("maintenance pass failed (will retry next interval)",
					"error", err.Error())
			}

		case <-w.stopCh:
			logging.Default().Info("maintenance worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("maintenance worker context cancelled")
			return
		}
	}
}

// RunOnce performs a single maintenance pass: consolidation and expiry
// cleanup run concurrently, both against snapshot scans.
func (w *MaintenanceWorker) RunOnce(ctx context.Context) error {
	startTime := time.Now()

	var consolidated *usecase.ConsolidateResult
	var reaped int

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		result, err := w.engine.Consolidate(egCtx)
		if err != nil {
			return goerr.Wrap(err, "consolidation failed")
		}
		consolidated = result
		return nil
	})
	eg.Go(func() error {
		deleted, err := w.engine.Cleanup(egCtx)
		if err != nil {
			return goerr.Wrap(err, "expiry cleanup failed")
		}
		reaped = deleted
		return nil
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	logging.From(ctx).Info("maintenance pass finished",
		"merged", consolidated.Merged,
		"duplicates_deleted", consolidated.Deleted,
		"expired_deleted", reaped,
		"elapsed", time.Since(startTime).String(),
	)
	return nil
}
