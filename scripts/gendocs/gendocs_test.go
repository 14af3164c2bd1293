package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCLIDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateCLIDocs(dir))

	index, err := os.ReadFile(filepath.Join(dir, "index.md"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "[`run`](/cli/run)")
	assert.Contains(t, string(index), "| `SPARKIFY_PIPELINE__SONGS__INPUT` | `--song-input` |")
	assert.Contains(t, string(index), "| `SPARKIFY_ENVIRONMENT` | `--env` |")

	run, err := os.ReadFile(filepath.Join(dir, "run.md"))
	require.NoError(t, err)
	page := string(run)
	assert.Contains(t, page, "sparkify run")
	assert.Contains(t, page, "| `--song-input` |  | `pipeline.songs.input` |")
	assert.Contains(t, page, "| `catalog` | song records | `--song-input` (`pipeline.songs.input`) | `--song-output` (`pipeline.songs.output`) | `songs`, `artists` |")
	assert.Contains(t, page, "`--log-output` (`pipeline.logs.output`) | `users`, `times`, `songplays` |")
	assert.Contains(t, page, "## Exit Codes")
	assert.Contains(t, page, "recorded as `failed` in history")

	show, err := os.ReadFile(filepath.Join(dir, "show.md"))
	require.NoError(t, err)
	assert.NotContains(t, string(show), "## Stages")
	assert.NotContains(t, string(show), "## Exit Codes")
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "SPARKIFY_PIPELINE__WRITE_MODE", envVar("pipeline.write_mode"))
	assert.Equal(t, "SPARKIFY_STATE_PATH", envVar("state_path"))
}

func TestGenerateTableDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateTableDocs(dir))

	star, err := os.ReadFile(filepath.Join(dir, "star-schema.md"))
	require.NoError(t, err)
	for _, table := range []string{"## songs", "## artists", "## users", "## times", "## songplays"} {
		assert.Contains(t, string(star), table)
	}
	assert.Contains(t, string(star), "Partitioned by: `year, artist_id`")

	inputs, err := os.ReadFile(filepath.Join(dir, "inputs.md"))
	require.NoError(t, err)
	assert.Contains(t, string(inputs), "`sessionId`")
}

func TestCleanExample(t *testing.T) {
	in := "  # Run\n  sparkify run\n\n    --overwrite"
	assert.Equal(t, "# Run\nsparkify run\n\n  --overwrite", cleanExample(in))
}
