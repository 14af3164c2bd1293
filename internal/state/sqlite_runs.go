package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sparkify/pkg/core"
)

const runColumns = `id, environment, status, catalog_input, catalog_output, usage_input, usage_output, write_mode, started_at, completed_at, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*core.Run, error) {
	run := &core.Run{}
	var status, mode string
	var startedAt int64
	var completedAt sql.NullInt64
	var errMsg sql.NullString

	err := row.Scan(
		&run.ID, &run.Environment, &status,
		&run.Request.Catalog.Input, &run.Request.Catalog.Output,
		&run.Request.Usage.Input, &run.Request.Usage.Output,
		&mode, &startedAt, &completedAt, &errMsg,
	)
	if err != nil {
		return nil, err
	}

	run.Status = core.RunStatus(status)
	run.Request.Mode, _ = core.ParseWriteMode(mode)
	run.StartedAt = fromMicros(startedAt)
	run.CompletedAt = optionalTime(completedAt)
	run.Error = errMsg.String
	return run, nil
}

// CreateRun records the start of a pipeline run.
func (s *SQLiteStore) CreateRun(env string, req core.RunRequest) (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &core.Run{
		ID:          generateID(),
		Environment: env,
		Status:      core.RunStatusRunning,
		Request:     req,
	}
	started := s.stamp()
	run.StartedAt = fromMicros(started)

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("environment", env))

	_, err := s.db.Exec(
		`INSERT INTO runs (id, environment, status, catalog_input, catalog_output, usage_input, usage_output, write_mode, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, env, string(run.Status),
		req.Catalog.Input, req.Catalog.Output, req.Usage.Input, req.Usage.Output,
		req.Mode.String(), started,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(id string, status core.RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	result, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), s.stamp(), optionalString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetLatestRun retrieves the most recent run for an environment.
// Returns nil without error when the environment has no runs.
func (s *SQLiteStore) GetLatestRun(env string) (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := scanRun(s.db.QueryRow(
		`SELECT `+runColumns+` FROM runs WHERE environment = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`, env))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A non-positive limit
// returns every run.
func (s *SQLiteStore) ListRuns(limit int) ([]*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// --- Stage operations ---

// StartStage records the start of a stage within a run.
func (s *SQLiteStore) StartStage(runID string, stage core.Stage) (*core.StageRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	sr := &core.StageRun{
		ID:     generateID(),
		RunID:  runID,
		Stage:  stage,
		Status: core.RunStatusRunning,
	}
	started := s.stamp()
	sr.StartedAt = fromMicros(started)

	_, err := s.db.Exec(
		`INSERT INTO stage_runs (id, run_id, stage, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		sr.ID, runID, string(stage), string(sr.Status), started,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start stage %s: %w", stage, err)
	}
	return sr, nil
}

// CompleteStage marks a stage as finished with the given status.
func (s *SQLiteStore) CompleteStage(id string, status core.RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	result, err := s.db.Exec(
		`UPDATE stage_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), s.stamp(), optionalString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete stage: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stage run not found: %s", id)
	}
	return nil
}

// GetStages returns the stages of a run in execution order.
func (s *SQLiteStore) GetStages(runID string) ([]*core.StageRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, stage, status, started_at, completed_at, error
		 FROM stage_runs WHERE run_id = ? ORDER BY started_at, rowid`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stages []*core.StageRun
	for rows.Next() {
		sr := &core.StageRun{}
		var stage, status string
		var startedAt int64
		var completedAt sql.NullInt64
		var errMsg sql.NullString

		if err := rows.Scan(&sr.ID, &sr.RunID, &stage, &status, &startedAt, &completedAt, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan stage run: %w", err)
		}
		sr.Stage = core.Stage(stage)
		sr.Status = core.RunStatus(status)
		sr.StartedAt = fromMicros(startedAt)
		sr.CompletedAt = optionalTime(completedAt)
		sr.Error = errMsg.String
		stages = append(stages, sr)
	}
	return stages, rows.Err()
}
