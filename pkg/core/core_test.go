package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStarSchemaTablesValidate(t *testing.T) {
	for _, tbl := range StarSchema() {
		t.Run(tbl.Name, func(t *testing.T) {
			require.NoError(t, tbl.Validate())
		})
	}
}

func TestTable_Validate(t *testing.T) {
	tests := []struct {
		name    string
		table   Table
		wantErr string
	}{
		{
			name:    "missing name",
			table:   Table{Columns: []Column{{Name: "a"}}},
			wantErr: "name is required",
		},
		{
			name:    "no columns",
			table:   Table{Name: "t"},
			wantErr: "declares no columns",
		},
		{
			name:    "undeclared partition",
			table:   Table{Name: "t", Columns: []Column{{Name: "a"}}, PartitionBy: []string{"b"}},
			wantErr: `partition column "b"`,
		},
		{
			name:    "undeclared key",
			table:   Table{Name: "t", Columns: []Column{{Name: "a"}}, Key: []string{"z"}},
			wantErr: `key column "z"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSongplaysColumnOrder(t *testing.T) {
	assert.Equal(t, []string{
		"start_time", "user_id", "level", "session_id", "location", "user_agent",
		"song_title", "artist_id", "song_id", "year", "month",
	}, SongplaysTable.ColumnNames())
}

func TestParseWriteMode(t *testing.T) {
	tests := []struct {
		in     string
		want   WriteMode
		wantOK bool
	}{
		{"", ModeErrorIfExists, true},
		{"error", ModeErrorIfExists, true},
		{"overwrite", ModeOverwrite, true},
		{"append", ModeErrorIfExists, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseWriteMode(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestSinkConflictError_Is(t *testing.T) {
	err := fmt.Errorf("writing songs: %w", &SinkConflictError{Table: "songs", Destination: "/out/songs"})

	assert.True(t, errors.Is(err, ErrSinkConflict))

	var conflict *SinkConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "/out/songs", conflict.Destination)
}

func TestIOError_Unwrap(t *testing.T) {
	err := &IOError{Op: "read", Path: "s3://bucket/song_data", Err: ErrNoInput}
	assert.True(t, errors.Is(err, ErrNoInput))
	assert.Contains(t, err.Error(), "s3://bucket/song_data")
}

func TestCredentials_String(t *testing.T) {
	var none *Credentials
	assert.True(t, none.IsZero())
	assert.Equal(t, "credentials(none)", none.String())

	c := &Credentials{KeyID: "AKIAEXAMPLE", Secret: "shh", Region: "us-west-2"}
	assert.False(t, c.IsZero())
	assert.NotContains(t, c.String(), "shh")
	assert.NotContains(t, c.String(), "AKIAEXAMPLE")
	assert.Contains(t, c.String(), "AKIA****")
}

func TestStats_Flatten(t *testing.T) {
	u := UsageStats{
		Ingest:   IngestStats{Read: 10, Dropped: 1},
		Filtered: 7,
		Join:     JoinStats{Events: 7, TitleMisses: 5, TimeMisses: 0, Matched: 2},
	}
	flat := u.Flatten()
	assert.Equal(t, int64(7), flat["usage.filtered"])
	assert.Equal(t, int64(5), flat["usage.title_misses"])
	assert.Equal(t, int64(2), flat["usage.songplays"])
	assert.Equal(t, int64(9), u.Ingest.Kept())
	assert.Equal(t, int64(5), u.Join.Misses())
}
