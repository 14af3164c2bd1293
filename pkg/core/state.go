package core

import "time"

// Store defines the run ledger operations.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Run operations
	CreateRun(env string, req RunRequest) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetLatestRun(env string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	// Stage operations
	StartStage(runID string, stage Stage) (*StageRun, error)
	CompleteStage(id string, status RunStatus, errMsg string) error
	GetStages(runID string) ([]*StageRun, error)

	// Output bookkeeping
	RecordTableWrite(runID string, res *WriteResult) error
	GetTableWrites(runID string) ([]*WriteResult, error)
	RecordStats(runID string, stats map[string]int64) error
	GetStats(runID string) (map[string]int64, error)
}

// Stage names the two top-level pipeline stages.
type Stage string

// Pipeline stages in execution order.
const (
	StageCatalog Stage = "catalog"
	StageUsage   Stage = "usage"
)

// RunStatus represents the status of a run or stage.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusSkipped   RunStatus = "skipped"
)

// StagePaths is one (input, output) pair handed to a stage.
type StagePaths struct {
	// Input is a glob of newline-delimited JSON files, local or s3://.
	Input string `json:"input"`
	// Output is the directory or object prefix the stage's tables go under.
	Output string `json:"output"`
}

// RunRequest is everything a full pipeline run needs.
type RunRequest struct {
	Catalog StagePaths
	Usage   StagePaths
	Mode    WriteMode
}

// Run represents one pipeline execution.
type Run struct {
	ID          string
	Environment string
	Status      RunStatus
	Request     RunRequest
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// StageRun represents the execution of one stage within a run.
type StageRun struct {
	ID          string
	RunID       string
	Stage       Stage
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}
