package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/sparkify/internal/cli/output"
	"github.com/spf13/cobra"
)

// HistoryEntry is one row of the history listing.
type HistoryEntry struct {
	ID          string    `json:"id"`
	Environment string    `json:"environment"`
	Status      string    `json:"status"`
	WriteMode   string    `json:"write_mode"`
	StartedAt   time.Time `json:"started_at"`
	Duration    string    `json:"duration,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent pipeline runs",
		Long:  `List runs recorded in the state database, newest first.`,
		Example: `  sparkify history
  sparkify history --limit 5 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")

	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := cmdCtx.Engine.GetStateStore().ListRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(runs))
	for _, run := range runs {
		e := HistoryEntry{
			ID:          run.ID,
			Environment: run.Environment,
			Status:      string(run.Status),
			WriteMode:   run.Request.Mode.String(),
			StartedAt:   run.StartedAt,
			Error:       run.Error,
		}
		if d := run.Duration(); d > 0 {
			e.Duration = d.Round(time.Millisecond).String()
		}
		entries = append(entries, e)
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(entries)
	}

	if len(entries) == 0 {
		r.Println("No runs recorded yet. Use 'sparkify run' to start one.")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.ID,
			e.Environment,
			e.Status,
			e.WriteMode,
			e.StartedAt.Local().Format(time.DateTime),
			e.Duration,
		})
	}
	r.Table([]string{"run", "env", "status", "write mode", "started", "duration"}, rows)
	return nil
}
