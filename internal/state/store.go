// Package state records pipeline runs in a SQLite ledger: one row per run,
// per stage, per table written, and per counter reported.
package state

import (
	"github.com/leapstack-labs/sparkify/pkg/core"
)

// Type aliases so callers can depend on the state package alone.
type (
	// Store is an alias for core.Store.
	Store = core.Store

	// Run is an alias for core.Run.
	Run = core.Run

	// RunStatus is an alias for core.RunStatus.
	RunStatus = core.RunStatus

	// StageRun is an alias for core.StageRun.
	StageRun = core.StageRun
)

// Re-exported status constants.
const (
	RunStatusRunning   = core.RunStatusRunning
	RunStatusCompleted = core.RunStatusCompleted
	RunStatusFailed    = core.RunStatusFailed
	RunStatusSkipped   = core.RunStatusSkipped
)
