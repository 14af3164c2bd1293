package testutil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/sparkify/pkg/adapters/duckdb"
	"github.com/leapstack-labs/sparkify/pkg/core"
	"github.com/stretchr/testify/require"
)

// Record is one raw NDJSON object.
type Record map[string]any

// WriteNDJSON writes records to path, one JSON object per line.
func WriteNDJSON(t testing.TB, path string, records ...Record) {
	t.Helper()
	var b strings.Builder
	for _, r := range records {
		line, err := json.Marshal(r)
		require.NoError(t, err)
		b.Write(line)
		b.WriteByte('\n')
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
}

// WriteRaw writes literal lines to path, for malformed-input cases.
func WriteRaw(t testing.TB, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
}

// Song builds a catalog record with plausible defaults; overrides replace
// or (with a nil value) delete fields.
func Song(songID, title, artistID string, overrides Record) Record {
	r := Record{
		"num_songs":        1,
		"artist_id":        artistID,
		"artist_latitude":  nil,
		"artist_longitude": nil,
		"artist_location":  "",
		"artist_name":      "Artist " + artistID,
		"song_id":          songID,
		"title":            title,
		"duration":         218.93179,
		"year":             2004,
	}
	return merge(r, overrides)
}

// Event builds a usage record for a NextSong play; overrides replace or
// (with a nil value) delete fields.
func Event(userID string, ts int64, song string, overrides Record) Record {
	r := Record{
		"artist":        "Artist",
		"auth":          "Logged In",
		"firstName":     "Walter",
		"gender":        "M",
		"itemInSession": 0,
		"lastName":      "Frye",
		"length":        218.93179,
		"level":         "free",
		"location":      "San Francisco-Oakland-Hayward, CA",
		"method":        "PUT",
		"page":          "NextSong",
		"registration":  1540919166796.0,
		"sessionId":     38,
		"song":          song,
		"status":        200,
		"ts":            ts,
		"userAgent":     "Mozilla/5.0",
		"userId":        userID,
	}
	return merge(r, overrides)
}

func merge(r, overrides Record) Record {
	for k, v := range overrides {
		if v == nil {
			delete(r, k)
			continue
		}
		r[k] = v
	}
	return r
}

// NewDuckDB returns a connected in-memory DuckDB adapter closed at cleanup.
func NewDuckDB(t testing.TB) *duckdb.Adapter {
	t.Helper()
	adp := duckdb.New(NewTestLogger(t))
	require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{Type: "duckdb", Path: ":memory:"}))
	t.Cleanup(func() { _ = adp.Close() })
	return adp
}
