package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the star schema from song and log data",
		Long: `Run the catalog stage and then the usage stage.

The catalog stage reads song records and writes the songs and artists
tables. The usage stage reads log records, keeps NextSong events, and
writes the users, times and songplays tables, joining against the songs
table the catalog stage just wrote.

Stage locations come from the pipeline section of sparkify.yaml or from
flags. Existing output is never replaced unless --overwrite is given.`,
		Example: `  # Run with locations from sparkify.yaml
  sparkify run

  # Run against local data
  sparkify run --song-input 'data/song_data/*/*/*/*.json' --song-output out/ \
    --log-input 'data/log_data/*/*/*.json' --log-output out/

  # Rebuild the prod tables and export metrics
  sparkify run --env prod --overwrite --metrics-file /var/lib/node_exporter/sparkify.prom

  # JSON summary for CI
  sparkify run -o json`,
		Aliases: []string{"etl"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd)
		},
	}

	cmd.Flags().String("song-input", "", "Glob of song JSON files (local path or s3://)")
	cmd.Flags().String("song-output", "", "Location the songs and artists tables are written under")
	cmd.Flags().String("log-input", "", "Glob of log JSON files (local path or s3://)")
	cmd.Flags().String("log-output", "", "Location the users, times and songplays tables are written under")
	cmd.Flags().Bool("overwrite", false, "Replace existing output instead of failing")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this textfile after the run")

	return cmd
}

func runRun(cmd *cobra.Command) error {
	if err := getConfig().ValidateRun(); err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	run, runErr := eng.Run(cmd.Context(), cfg.Pipeline.RunRequest())
	if run == nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	summary, err := buildRunSummary(eng.GetStateStore(), run)
	if err != nil {
		return err
	}
	if err := renderRunSummary(r, summary); err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		if err := cmdCtx.Metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			return err
		}
		cmdCtx.Logger.Debug("wrote metrics", "path", cfg.MetricsFile)
	}

	if runErr != nil {
		return fmt.Errorf("run %s failed: %w", run.ID, runErr)
	}
	return nil
}
