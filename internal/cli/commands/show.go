package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewShowCommand creates the show command.
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id|latest>",
		Short: "Show the stages, tables and counters of a run",
		Long: `Show one recorded run: its stages, the tables it wrote with their
row counts and partition columns, and the ingest and join counters.

"latest" selects the most recent run of the current environment.`,
		Example: `  sparkify show latest
  sparkify show 3f1c2a9e-8d41-4f0b-9a57-1f2e3d4c5b6a -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0])
		},
	}
}

func runShow(cmd *cobra.Command, id string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	store := cmdCtx.Engine.GetStateStore()

	if id == "latest" {
		latest, err := store.GetLatestRun(cmdCtx.Cfg.Environment)
		if err != nil {
			return fmt.Errorf("failed to load latest run: %w", err)
		}
		if latest == nil {
			return fmt.Errorf("no runs recorded for environment %q", cmdCtx.Cfg.Environment)
		}
		id = latest.ID
	}

	found, err := store.GetRun(id)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", id, err)
	}

	summary, err := buildRunSummary(store, found)
	if err != nil {
		return err
	}
	return renderRunSummary(cmdCtx.Renderer, summary)
}
