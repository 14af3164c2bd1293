package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sparkify/internal/cli/config"
	"github.com/leapstack-labs/sparkify/internal/cli/output"
	"github.com/leapstack-labs/sparkify/internal/state"
	"github.com/leapstack-labs/sparkify/internal/testutil"
	"github.com/leapstack-labs/sparkify/pkg/core"
)

func TestNewRunCommand(t *testing.T) {
	cmd := NewRunCommand()

	assert.Equal(t, "run", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	flags := []string{"song-input", "song-output", "log-input", "log-output", "overwrite", "metrics-file"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewHistoryCommand(t *testing.T) {
	cmd := NewHistoryCommand()

	assert.Equal(t, "history", cmd.Use)
	f := cmd.Flags().Lookup("limit")
	require.NotNil(t, f)
	assert.Equal(t, "20", f.DefValue)
}

func TestNewShowCommand(t *testing.T) {
	cmd := NewShowCommand()

	assert.Equal(t, "show <run-id|latest>", cmd.Use)
	assert.Error(t, cmd.Args(cmd, nil), "requires a run id")
}

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantOut []string
	}{
		{name: "default version", version: "0.1.0", wantOut: []string{"sparkify v0.1.0", "DuckDB"}},
		{name: "dev version", version: "dev", wantOut: []string{"sparkify vdev"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.version)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)

			require.NoError(t, cmd.Execute())
			for _, want := range tt.wantOut {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestRunInit(t *testing.T) {
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	dir := t.TempDir()
	out := &bytes.Buffer{}
	r := output.NewRendererWithTTY(out, out, false, output.ModeMarkdown)

	require.NoError(t, runInit(r, dir, false, false))
	assert.FileExists(t, filepath.Join(dir, config.ConfigFileName))
	assert.NoDirExists(t, filepath.Join(dir, "data"))
	assert.Contains(t, out.String(), "sparkify project initialized!")

	err := runInit(r, dir, false, false)
	assert.ErrorContains(t, err, "already exists")

	require.NoError(t, runInit(r, dir, true, true))
	assert.FileExists(t, filepath.Join(dir, "data", "song_data", "A", "A", "A", "TRAAAAW128F429D538.json"))
	assert.FileExists(t, filepath.Join(dir, "data", "log_data", "2018", "11", "2018-11-21-events.json"))
	assert.FileExists(t, filepath.Join(dir, ".gitignore"))

	// The written file is a valid configuration for the loader.
	cfg, err := config.LoadConfig(filepath.Join(dir, config.ConfigFileName), nil)
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateRun())
	assert.Equal(t, filepath.Join(dir, "data/song_data/*/*/*/*.json"), cfg.Pipeline.Songs.Input)
	assert.Equal(t, filepath.Join(dir, "out"), cfg.Pipeline.Logs.Output)
	assert.Equal(t, "duckdb", cfg.Engine.Type)
	require.Contains(t, cfg.Environments, "prod")
	assert.Equal(t, "s3a://udacity-dend/log_data/*/*/*.json", cfg.Environments["prod"].Pipeline.Logs.Input)
}

func TestListTemplateFiles(t *testing.T) {
	files, err := listTemplateFiles("example")
	require.NoError(t, err)
	assert.Contains(t, files, ".gitignore")

	songs := 0
	for _, f := range files {
		if strings.HasPrefix(filepath.ToSlash(f), "data/song_data/") {
			songs++
		}
	}
	assert.Equal(t, 4, songs)
}

func TestCopyTemplate_SkipsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("keep\n"), 0o600))

	require.NoError(t, copyTemplate("example", dir, false))
	got, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, "keep\n", string(got))

	require.NoError(t, copyTemplate("example", dir, true))
	got, err = os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(got), ".sparkify/")
}

func TestUsesObjectStore(t *testing.T) {
	local := config.PipelineConfig{
		Songs: config.StageConfig{Input: "data/*.json", Output: "out"},
		Logs:  config.StageConfig{Input: "logs/*.json", Output: "out"},
	}
	assert.False(t, usesObjectStore(local))

	remote := local
	remote.Logs.Output = "s3a://lake/"
	assert.True(t, usesObjectStore(remote))
}

func newLedger(t *testing.T) core.Store {
	t.Helper()
	store := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedRun(t *testing.T, store core.Store) *core.Run {
	t.Helper()
	run, err := store.CreateRun("dev", core.RunRequest{
		Catalog: core.StagePaths{Input: "data/song_data/*/*/*/*.json", Output: "out"},
		Usage:   core.StagePaths{Input: "data/log_data/*/*/*.json", Output: "out"},
		Mode:    core.ModeOverwrite,
	})
	require.NoError(t, err)

	sr, err := store.StartStage(run.ID, core.StageCatalog)
	require.NoError(t, err)
	require.NoError(t, store.CompleteStage(sr.ID, core.RunStatusCompleted, ""))
	sr, err = store.StartStage(run.ID, core.StageUsage)
	require.NoError(t, err)
	require.NoError(t, store.CompleteStage(sr.ID, core.RunStatusFailed, "no input files matched"))

	require.NoError(t, store.RecordTableWrite(run.ID, &core.WriteResult{
		Table:       "songs",
		Destination: "out/songs",
		PartitionBy: []string{"year", "artist_id"},
		Rows:        4,
		Replaced:    true,
		WrittenAt:   time.Now(),
	}))
	require.NoError(t, store.RecordStats(run.ID, map[string]int64{"catalog.songs": 4, "catalog.read": 4}))
	require.NoError(t, store.CompleteRun(run.ID, core.RunStatusFailed, "usage stage: no input files matched"))

	final, err := store.GetRun(run.ID)
	require.NoError(t, err)
	return final
}

func TestBuildRunSummary(t *testing.T) {
	store := newLedger(t)
	run := seedRun(t, store)

	s, err := buildRunSummary(store, run)
	require.NoError(t, err)

	assert.Equal(t, run.ID, s.ID)
	assert.Equal(t, "failed", s.Status)
	assert.Equal(t, "overwrite", s.WriteMode)
	assert.Equal(t, "out", s.Catalog.Output)
	require.Len(t, s.Stages, 2)
	assert.Equal(t, "catalog", s.Stages[0].Stage)
	assert.Equal(t, "failed", s.Stages[1].Status)
	require.Len(t, s.Tables, 1)
	assert.Equal(t, []string{"year", "artist_id"}, s.Tables[0].PartitionBy)
	assert.Equal(t, int64(4), s.Stats["catalog.songs"])
}

func TestRenderRunSummary(t *testing.T) {
	store := newLedger(t)
	s, err := buildRunSummary(store, seedRun(t, store))
	require.NoError(t, err)

	t.Run("markdown", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := output.NewRendererWithTTY(out, out, false, output.ModeAuto)
		require.NoError(t, renderRunSummary(r, s))

		got := out.String()
		assert.Contains(t, got, "# Run "+s.ID)
		assert.Contains(t, got, "- **Status**: failed")
		assert.Contains(t, got, "- [ok] catalog")
		assert.Contains(t, got, "- [failed] usage (no input files matched)")
		assert.Contains(t, got, "| songs")
		assert.Contains(t, got, "| catalog.read")
		assert.Less(t, strings.Index(got, "catalog.read"), strings.Index(got, "catalog.songs"), "counters are sorted")
	})

	t.Run("json", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := output.NewRendererWithTTY(out, out, false, output.ModeJSON)
		require.NoError(t, renderRunSummary(r, s))

		got := out.String()
		assert.Contains(t, got, `"status": "failed"`)
		assert.Contains(t, got, `"partition_by": [`)
		assert.Contains(t, got, `"input": "data/song_data/*/*/*/*.json"`)
	})

	t.Run("text", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := output.NewRendererWithTTY(out, out, false, output.ModeText)
		require.NoError(t, renderRunSummary(r, s))

		got := out.String()
		assert.Contains(t, got, "Environment: dev | Write mode: overwrite")
		assert.Contains(t, got, "✗ usage")
	})
}
