package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/leapstack-labs/sparkify/pkg/core"
)

// Run executes the catalog stage and then the usage stage, recording the
// run, its stages, table writes and stats in the ledger. Any error fails the
// run; a failed catalog stage marks the usage stage skipped.
func (e *Engine) Run(ctx context.Context, req core.RunRequest) (*core.Run, error) {
	e.logger.Info("starting run", "environment", e.environment, "write_mode", req.Mode.String())

	run, err := e.store.CreateRun(e.environment, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	e.logger.Debug("created run", "run_id", run.ID)

	runErr := e.execute(ctx, run.ID, req)

	if runErr != nil {
		e.logger.Error("run failed", "run_id", run.ID, "error", runErr.Error())
		_ = e.store.CompleteRun(run.ID, core.RunStatusFailed, runErr.Error())
	} else {
		e.logger.Info("run completed", "run_id", run.ID)
		_ = e.store.CompleteRun(run.ID, core.RunStatusCompleted, "")
	}

	if final, err := e.store.GetRun(run.ID); err == nil {
		run = final
	}
	e.metrics.ObserveRun(run)
	return run, runErr
}

func (e *Engine) execute(ctx context.Context, runID string, req core.RunRequest) error {
	var catalog *CatalogOutput
	err := e.stage(runID, core.StageCatalog, func() error {
		out, err := e.RunCatalog(ctx, req.Catalog, req.Mode)
		if err != nil {
			return err
		}
		catalog = out
		return e.record(runID, out.Stats.Flatten(), out.Writes())
	})
	if err != nil {
		e.skip(runID, core.StageUsage, "catalog stage failed")
		return err
	}

	return e.stage(runID, core.StageUsage, func() error {
		out, err := e.RunUsage(ctx, req.Usage, req.Mode, catalog)
		if err != nil {
			return err
		}
		return e.record(runID, out.Stats.Flatten(), out.Writes())
	})
}

// stage brackets fn with ledger and metrics bookkeeping.
func (e *Engine) stage(runID string, stage core.Stage, fn func() error) error {
	sr, err := e.store.StartStage(runID, stage)
	if err != nil {
		return fmt.Errorf("failed to record %s stage: %w", stage, err)
	}

	start := time.Now()
	runErr := fn()

	status, msg := core.RunStatusCompleted, ""
	if runErr != nil {
		status, msg = core.RunStatusFailed, runErr.Error()
		runErr = fmt.Errorf("%s stage: %w", stage, runErr)
	}
	e.metrics.ObserveStage(stage, status, time.Since(start))

	if err := e.store.CompleteStage(sr.ID, status, msg); err != nil && runErr == nil {
		return fmt.Errorf("failed to complete %s stage: %w", stage, err)
	}
	return runErr
}

func (e *Engine) skip(runID string, stage core.Stage, reason string) {
	sr, err := e.store.StartStage(runID, stage)
	if err != nil {
		e.logger.Warn("failed to record skipped stage", "stage", stage, "error", err)
		return
	}
	_ = e.store.CompleteStage(sr.ID, core.RunStatusSkipped, reason)
}

func (e *Engine) record(runID string, stats map[string]int64, writes []*core.WriteResult) error {
	for _, w := range writes {
		if err := e.store.RecordTableWrite(runID, w); err != nil {
			return fmt.Errorf("failed to record %s write: %w", w.Table, err)
		}
	}
	if err := e.store.RecordStats(runID, stats); err != nil {
		return fmt.Errorf("failed to record stats: %w", err)
	}
	return nil
}
