package transform

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/sparkify/internal/storage"
	"github.com/leapstack-labs/sparkify/internal/testutil"
	"github.com/leapstack-labs/sparkify/pkg/adapters/duckdb"
	"github.com/leapstack-labs/sparkify/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	ctx      context.Context
	db       *duckdb.Adapter
	resolver *storage.Resolver
	dir      string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return &env{
		ctx:      context.Background(),
		db:       testutil.NewDuckDB(t),
		resolver: storage.NewResolver(nil),
		dir:      t.TempDir(),
	}
}

func (e *env) strings(t *testing.T, query string) []string {
	t.Helper()
	rows, err := e.db.Query(e.ctx, query)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var s *string
		require.NoError(t, rows.Scan(&s))
		if s == nil {
			out = append(out, "<nil>")
			continue
		}
		out = append(out, *s)
	}
	require.NoError(t, rows.Err())
	return out
}

func (e *env) int(t *testing.T, query string) int64 {
	t.Helper()
	n, err := e.db.QueryInt(e.ctx, query)
	require.NoError(t, err)
	return n
}

func TestIngest_NoInput(t *testing.T) {
	e := newEnv(t)
	c := NewCatalog(e.db, e.resolver, testutil.NewTestLogger(t))

	_, err := c.Ingest(e.ctx, filepath.Join(e.dir, "song_data", "*", "*.json"))
	require.ErrorIs(t, err, core.ErrNoInput)
	var ioErr *core.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "read", ioErr.Op)
}

func TestCatalog_IngestCountsViolations(t *testing.T) {
	e := newEnv(t)
	input := filepath.Join(e.dir, "song_data")
	testutil.WriteNDJSON(t, filepath.Join(input, "A", "a.json"),
		testutil.Song("SO1", "Intro", "AR1", nil),
		testutil.Song("SO2", "Verse", "AR1", testutil.Record{"year": "nineteen"}),
		testutil.Song("", "Blank", "AR2", nil),
		testutil.Song("SO4", "NoArtist", "AR4", testutil.Record{"artist_id": nil}),
	)
	testutil.WriteNDJSON(t, filepath.Join(input, "B", "b.json"),
		testutil.Song("SO5", "Outro", "AR5", testutil.Record{"duration": "long", "num_songs": 1.5}),
	)

	c := NewCatalog(e.db, e.resolver, testutil.NewTestLogger(t))
	stats, err := c.Ingest(e.ctx, input)
	require.NoError(t, err)

	assert.Equal(t, int64(5), stats.Read)
	assert.Equal(t, int64(2), stats.Dropped, "blank song_id and missing artist_id")
	assert.Equal(t, int64(3), stats.Kept())
	assert.GreaterOrEqual(t, stats.Coerced, int64(2), "year and duration values nulled")

	assert.Equal(t, int64(1), e.int(t, `SELECT count(*) FROM catalog_records WHERE song_id = 'SO2' AND year IS NULL`))
	assert.Equal(t, int64(0), e.int(t, `SELECT count(*) FROM information_schema.tables WHERE table_name = 'catalog_records_raw'`), "raw relation dropped")
}

func TestCatalog_SongsAndArtists(t *testing.T) {
	e := newEnv(t)
	input := filepath.Join(e.dir, "song_data", "*", "*.json")
	testutil.WriteNDJSON(t, filepath.Join(e.dir, "song_data", "A", "a.json"),
		testutil.Song("SO1", "Intro", "AR1", testutil.Record{"artist_name": "Casual", "artist_location": "  "}),
		testutil.Song("SO1", "Intro", "AR1", testutil.Record{"year": 2010}),
		testutil.Song("SO2", "Verse", "AR1", testutil.Record{"artist_name": "Casual", "artist_latitude": 35.1, "artist_longitude": -90.0, "artist_location": "Memphis"}),
		testutil.Song("SO3", "Chorus", "AR2", testutil.Record{"year": 0}),
		testutil.Song("SO4", "Bridge", "AR3", testutil.Record{"year": nil}),
	)

	c := NewCatalog(e.db, e.resolver, testutil.NewTestLogger(t))
	_, err := c.Ingest(e.ctx, input)
	require.NoError(t, err)

	songs, err := c.Songs(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), songs)

	// required fields populated, song_id unique
	assert.Equal(t, int64(0), e.int(t, `SELECT count(*) FROM songs_out WHERE song_id IS NULL OR artist_id IS NULL OR year IS NULL`))
	assert.Equal(t, int64(4), e.int(t, `SELECT count(DISTINCT song_id) FROM songs_out`))
	assert.Equal(t, int64(2010), e.int(t, `SELECT year FROM songs_out WHERE song_id = 'SO1'`), "latest year wins for duplicate song_id")
	assert.Equal(t, int64(0), e.int(t, `SELECT year FROM songs_out WHERE song_id = 'SO4'`), "unknown year stored as 0")

	artists, err := c.Artists(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), artists)
	assert.Equal(t, []string{"Memphis"}, e.strings(t, `SELECT location FROM artists_out WHERE artist_id = 'AR1'`), "record with coordinates preferred")
	assert.Equal(t, []string{"<nil>"}, e.strings(t, `SELECT location FROM artists_out WHERE artist_id = 'AR2'`), "blank location is NULL")
}

func TestDedup_Idempotent(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.db.Exec(e.ctx, `
		CREATE TABLE artists_stage AS SELECT * FROM (VALUES
			('AR1', 'B', NULL, NULL, NULL),
			('AR1', 'A', 'Memphis', 35.1, -90.0),
			('AR1', 'A', 'Memphis', 35.1, -90.0),
			('AR2', 'C', NULL, NULL, NULL),
			('AR2', 'C', 'Austin', NULL, NULL)
		) t(artist_id, name, location, latitude, longitude)
	`))

	once := artistsDedup
	n1, err := once.Apply(e.ctx, e.db)
	require.NoError(t, err)

	twice := artistsDedup
	twice.Source, twice.Target = artistsDedup.Target, "artists_twice"
	n2, err := twice.Apply(e.ctx, e.db)
	require.NoError(t, err)

	assert.Equal(t, int64(2), n1)
	assert.Equal(t, n1, n2)
	assert.Equal(t, int64(0), e.int(t, `
		SELECT count(*) FROM (
			(SELECT * FROM artists_out EXCEPT ALL SELECT * FROM artists_twice)
			UNION ALL
			(SELECT * FROM artists_twice EXCEPT ALL SELECT * FROM artists_out)
		)`), "dedup(dedup(x)) == dedup(x)")
	assert.Equal(t, []string{"Austin"}, e.strings(t, `SELECT location FROM artists_out WHERE artist_id = 'AR2'`))
}

func TestDedup_UsersIdempotent(t *testing.T) {
	e := newEnv(t)
	input := filepath.Join(e.dir, "log_data", "events.json")
	testutil.WriteNDJSON(t, input,
		testutil.Event("10", 1542837407796, "Intro", testutil.Record{"level": "free"}),
		testutil.Event("10", 1542900000000, "Verse", testutil.Record{"level": "paid"}),
		testutil.Event("26", 1542900000000, "Verse", testutil.Record{"level": "free"}),
		testutil.Event("26", 1542900000000, "Verse", testutil.Record{"level": "paid"}),
	)

	u := NewUsage(e.db, e.resolver, testutil.NewTestLogger(t))
	_, err := u.Ingest(e.ctx, input)
	require.NoError(t, err)
	_, err = u.Filter(e.ctx)
	require.NoError(t, err)
	n1, err := u.Users(e.ctx)
	require.NoError(t, err)

	twice := usersDedup
	twice.Source, twice.Target = usersDedup.Target, "users_twice"
	n2, err := twice.Apply(e.ctx, e.db)
	require.NoError(t, err)

	assert.Equal(t, int64(2), n1)
	assert.Equal(t, n1, n2)
	assert.Equal(t, int64(0), e.int(t, `
		SELECT count(*) FROM (
			(SELECT * FROM users_out EXCEPT ALL SELECT * FROM users_twice)
			UNION ALL
			(SELECT * FROM users_twice EXCEPT ALL SELECT * FROM users_out)
		)`), "dedup(dedup(x)) == dedup(x)")
	assert.Equal(t, []string{"paid"}, e.strings(t, `SELECT level FROM users_twice WHERE user_id = '10'`), "latest event wins")
	assert.Equal(t, []string{"free"}, e.strings(t, `SELECT level FROM users_twice WHERE user_id = '26'`), "ties broken by level")
}

func TestDedup_Validation(t *testing.T) {
	e := newEnv(t)
	_, err := Dedup{Source: "x", Target: "y"}.Apply(e.ctx, e.db)
	assert.ErrorContains(t, err, "key and order are required")
}

func TestUsage_FilterUsersTimes(t *testing.T) {
	e := newEnv(t)
	input := filepath.Join(e.dir, "log_data", "events.json")
	testutil.WriteNDJSON(t, input,
		testutil.Event("10", 1542837407796, "Intro", testutil.Record{"level": "free"}),
		testutil.Event("10", 1542837407796, "Intro", testutil.Record{"level": "free"}),
		testutil.Event("10", 1542900000000, "Verse", testutil.Record{"level": "PAID", "gender": "f"}),
		testutil.Event("26", 1542900000000, "Verse", testutil.Record{"gender": "x", "level": "gold"}),
		testutil.Event("26", 1542900001000, "Home", testutil.Record{"page": "Home"}),
		testutil.Event("", 1542900002000, "Nothing", testutil.Record{"page": "Home"}),
		testutil.Event("30", 0, "NoTime", testutil.Record{"ts": nil}),
		testutil.Event("31", 0, "NoPage", testutil.Record{"page": nil}),
	)

	u := NewUsage(e.db, e.resolver, testutil.NewTestLogger(t))
	stats, err := u.Ingest(e.ctx, input)
	require.NoError(t, err)
	assert.Equal(t, int64(8), stats.Read)
	assert.Equal(t, int64(1), stats.Dropped, "missing page")

	filtered, err := u.Filter(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), filtered)
	assert.Equal(t, []string{"NextSong"}, e.strings(t, `SELECT DISTINCT page FROM plays`), "only song plays contribute")

	users, err := u.Users(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), users)
	assert.Equal(t, []string{"paid"}, e.strings(t, `SELECT level FROM users_out WHERE user_id = '10'`), "latest event wins")
	assert.Equal(t, []string{"F"}, e.strings(t, `SELECT gender FROM users_out WHERE user_id = '10'`))
	assert.Equal(t, []string{"O"}, e.strings(t, `SELECT gender FROM users_out WHERE user_id = '26'`))
	assert.Equal(t, []string{"<nil>"}, e.strings(t, `SELECT level FROM users_out WHERE user_id = '26'`))

	times, err := u.Times(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), times, "distinct non-null timestamps")
	assert.Equal(t, int64(2), e.int(t, `SELECT count(DISTINCT start_time) FROM times_out`))

	rows, err := e.db.Query(e.ctx, `SELECT year, month, day, hour, week_of_year FROM times_out WHERE start_time = 1542837407796`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())
	var year, month, day, hour, week int
	require.NoError(t, rows.Scan(&year, &month, &day, &hour, &week))
	assert.Equal(t, []int{2018, 11, 21, 21, 47}, []int{year, month, day, hour, week})
}

func TestUsage_PlayEvents(t *testing.T) {
	e := newEnv(t)

	songsDir := filepath.Join(e.dir, "out", "songs")
	require.NoError(t, e.db.Exec(e.ctx, `
		CREATE TABLE songs_src AS SELECT * FROM (VALUES
			('SO2', 'Intro', 'AR1', 2004, 100.0),
			('SO1', 'Intro', 'AR9', 2004, 90.0),
			('SO3', 'Verse', 'AR2', 0, 80.0)
		) t(song_id, title, artist_id, year, duration)
	`))
	require.NoError(t, os.MkdirAll(songsDir, 0o750))
	require.NoError(t, e.db.Exec(e.ctx, `COPY songs_src TO '`+songsDir+`' (FORMAT PARQUET, PARTITION_BY (year, artist_id))`))

	logs := filepath.Join(e.dir, "log_data", "events.json")
	testutil.WriteNDJSON(t, logs,
		testutil.Event("10", 1542837407796, "Intro", nil),
		testutil.Event("10", 1542837407797, "Unknown Song", nil),
		testutil.Event("11", 0, "Verse", testutil.Record{"ts": nil}),
	)

	u := NewUsage(e.db, e.resolver, testutil.NewTestLogger(t))
	_, err := u.Ingest(e.ctx, logs)
	require.NoError(t, err)
	_, err = u.Filter(e.ctx)
	require.NoError(t, err)
	_, err = u.Times(e.ctx)
	require.NoError(t, err)

	loaded, err := u.LoadSongs(e.ctx, songsDir)
	require.NoError(t, err)
	assert.Equal(t, int64(3), loaded)

	stats, err := u.PlayEvents(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, core.JoinStats{Events: 3, TitleMisses: 1, TimeMisses: 1, Matched: 1}, stats)
	assert.Equal(t, int64(2), stats.Misses())

	assert.Equal(t, []string{"SO1"}, e.strings(t, `SELECT song_id FROM songplays_out`), "title collision resolves to smallest song_id")
	assert.Equal(t, []string{"AR9"}, e.strings(t, `SELECT artist_id FROM songplays_out`))
	assert.Equal(t, int64(2018), e.int(t, `SELECT year FROM songplays_out`))
	assert.Equal(t, int64(11), e.int(t, `SELECT month FROM songplays_out`))
}

func TestUsage_LoadSongsEmpty(t *testing.T) {
	e := newEnv(t)
	u := NewUsage(e.db, e.resolver, testutil.NewTestLogger(t))

	n, err := u.LoadSongs(e.ctx, filepath.Join(e.dir, "nothing"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, int64(5), e.int(t, `SELECT count(*) FROM information_schema.columns WHERE table_name = 'songs_in'`))
}

func TestConform(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.db.Exec(e.ctx, `CREATE TABLE songs_ok (song_id VARCHAR, title VARCHAR, artist_id VARCHAR, year INTEGER, duration DOUBLE)`))
	require.NoError(t, e.db.Exec(e.ctx, `INSERT INTO songs_ok VALUES ('SO1', 'Intro', 'AR1', 2004, 100.0), ('SO2', 'Verse', 'AR2', 0, 80.0)`))
	require.NoError(t, e.db.Exec(e.ctx, `CREATE TABLE songs_bad (song_id VARCHAR, title VARCHAR, artist_id VARCHAR, year VARCHAR, duration DOUBLE)`))
	require.NoError(t, e.db.Exec(e.ctx, `CREATE TABLE songs_short (song_id VARCHAR, title VARCHAR)`))

	n, err := conform(e.ctx, e.db, "songs_ok", core.SongsTable)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = conform(e.ctx, e.db, "songs_bad", core.SongsTable)
	assert.ErrorContains(t, err, "column year is VARCHAR, want INTEGER")

	_, err = conform(e.ctx, e.db, "songs_short", core.SongsTable)
	assert.ErrorContains(t, err, "missing column artist_id")

	_, err = conform(e.ctx, e.db, "no_such_table", core.SongsTable)
	assert.ErrorContains(t, err, "not found")
}
