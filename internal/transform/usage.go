package transform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sparkify/internal/sink"
	"github.com/leapstack-labs/sparkify/internal/storage"
	"github.com/leapstack-labs/sparkify/pkg/adapter"
	"github.com/leapstack-labs/sparkify/pkg/core"
	"github.com/leapstack-labs/sparkify/pkg/schema"
)

// Usage builds the User and Time dimensions and the Play Event fact from
// usage events and the persisted Song dimension.
type Usage struct {
	db       core.Adapter
	resolver *storage.Resolver
	logger   *slog.Logger
}

// NewUsage creates a usage transform over db.
func NewUsage(db core.Adapter, resolver *storage.Resolver, logger *slog.Logger) *Usage {
	return &Usage{db: db, resolver: resolver, logger: discardLogger(logger)}
}

// Ingest reads the usage events behind input into RelUsageRecords.
func (u *Usage) Ingest(ctx context.Context, input string) (core.IngestStats, error) {
	return ingest(ctx, u.db, u.resolver, u.logger, schema.Usage, input, RelUsageRecords)
}

// Filter keeps only song-play events in RelPlays.
func (u *Usage) Filter(ctx context.Context) (int64, error) {
	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM %s WHERE \"page\" = %s",
		adapter.QuoteIdent(RelPlays), adapter.QuoteIdent(RelUsageRecords), adapter.QuoteString(schema.NextSongPage))
	if err := u.db.Exec(ctx, stmt); err != nil {
		return 0, fmt.Errorf("filter song plays: %w", err)
	}
	n, err := count(ctx, u.db, RelPlays)
	if err != nil {
		return 0, err
	}
	u.logger.Debug("song plays filtered", "rows", n)
	return n, nil
}

// genderOf normalises a gender column to M, F, O (any other non-blank
// value) or NULL.
func genderOf(col string) string {
	return fmt.Sprintf(`CASE
		WHEN %[1]s IS NULL OR trim(%[1]s) = '' THEN NULL
		WHEN upper(trim(%[1]s)) IN ('M', 'F') THEN upper(trim(%[1]s))
		ELSE 'O'
	END`, col)
}

// levelOf normalises a subscription level to free, paid or NULL.
func levelOf(col string) string {
	return fmt.Sprintf(`CASE WHEN lower(trim(%[1]s)) IN ('free', 'paid') THEN lower(trim(%[1]s)) END`, col)
}

// latestUserEvent keeps the latest event per user so the level reflects
// the user's most recent subscription state.
var latestUserEvent = Dedup{
	Source: "users_stage",
	Target: "users_latest",
	Key:    []string{"user_id"},
	OrderBy: []string{
		`"ts" DESC NULLS LAST`,
		`"level" ASC NULLS LAST`,
		`"first_name" ASC NULLS LAST`,
		`"last_name" ASC NULLS LAST`,
		`"gender" ASC NULLS LAST`,
	},
}

// usersDedup projects the User columns. Its order only references output
// columns, so it can be applied to its own result.
var usersDedup = Dedup{
	Source: latestUserEvent.Target,
	Target: RelUsers,
	Key:    []string{"user_id"},
	OrderBy: []string{
		`"level" ASC NULLS LAST`,
		`"first_name" ASC NULLS LAST`,
		`"last_name" ASC NULLS LAST`,
		`"gender" ASC NULLS LAST`,
	},
	Columns: core.UsersTable.ColumnNames(),
}

// Users projects the User dimension into RelUsers. Events without a user
// id contribute no User row.
func (u *Usage) Users(ctx context.Context) (int64, error) {
	stage := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS
SELECT
	"user_id",
	"first_name",
	"last_name",
	%s AS "gender",
	%s AS "level",
	"ts"
FROM %s
WHERE "user_id" IS NOT NULL AND trim("user_id") <> ''`,
		adapter.QuoteIdent(latestUserEvent.Source), genderOf(`"gender"`), levelOf(`"level"`), adapter.QuoteIdent(RelPlays))
	if err := u.db.Exec(ctx, stage); err != nil {
		return 0, fmt.Errorf("project users: %w", err)
	}
	if _, err := latestUserEvent.Apply(ctx, u.db); err != nil {
		return 0, err
	}
	n, err := usersDedup.Apply(ctx, u.db)
	if err != nil {
		return 0, err
	}
	u.logger.Debug("users built", "rows", n)
	return n, nil
}

// LoadSongs re-reads the persisted Song dimension from location into
// RelSongsIn. A location holding no data yields an empty relation.
func (u *Usage) LoadSongs(ctx context.Context, location string) (int64, error) {
	location = storage.Normalize(location)
	st, err := u.resolver.For(location)
	if err != nil {
		return 0, err
	}
	files, err := st.List(ctx, location)
	if err != nil {
		return 0, err
	}

	var stmt string
	if len(files) == 0 {
		u.logger.Warn("song dimension is empty", "location", location)
		stmt = fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", adapter.QuoteIdent(RelSongsIn), columnDefs(core.SongsTable))
	} else {
		stmt = fmt.Sprintf("CREATE OR REPLACE TABLE %s AS %s", adapter.QuoteIdent(RelSongsIn), sink.ReadSQL(core.SongsTable, location))
	}
	if err := u.db.Exec(ctx, stmt); err != nil {
		return 0, &core.IOError{Op: "read", Path: location, Err: err}
	}
	n, err := conform(ctx, u.db, RelSongsIn, core.SongsTable)
	if err != nil {
		return 0, fmt.Errorf("songs at %s: %w", location, err)
	}
	u.logger.Debug("songs loaded", "location", location, "rows", n)
	return n, nil
}

// PlayEvents reconstructs the Play Event fact into RelSongplays. Each event
// is matched to the Song with its title (smallest song_id when titles
// collide), then to its Time row. Unmatched events are counted, not kept.
func (u *Usage) PlayEvents(ctx context.Context) (core.JoinStats, error) {
	var stats core.JoinStats

	titles := fmt.Sprintf(`CREATE OR REPLACE TABLE "song_titles" AS
SELECT "title", "song_id", "artist_id"
FROM %s
WHERE "title" IS NOT NULL
QUALIFY row_number() OVER (PARTITION BY "title" ORDER BY "song_id") = 1`, adapter.QuoteIdent(RelSongsIn))

	titled := fmt.Sprintf(`CREATE OR REPLACE TABLE "plays_titled" AS
SELECT
	p."ts" AS "start_time",
	p."user_id",
	%s AS "level",
	p."session_id",
	p."location",
	p."user_agent",
	p."song" AS "song_title",
	s."artist_id",
	s."song_id"
FROM %s p
JOIN "song_titles" s ON s."title" = p."song"`, levelOf(`p."level"`), adapter.QuoteIdent(RelPlays))

	fact := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS
SELECT
	pt."start_time",
	pt."user_id",
	pt."level",
	pt."session_id",
	pt."location",
	pt."user_agent",
	pt."song_title",
	pt."artist_id",
	pt."song_id",
	t."year",
	t."month"
FROM "plays_titled" pt
JOIN (SELECT "start_time", "month", "year" FROM %s) t ON t."start_time" = pt."start_time"`,
		adapter.QuoteIdent(RelSongplays), adapter.QuoteIdent(RelTimes))

	for _, stmt := range []string{titles, titled, fact} {
		if err := u.db.Exec(ctx, stmt); err != nil {
			return stats, fmt.Errorf("join song plays: %w", err)
		}
	}

	var err error
	if stats.Events, err = count(ctx, u.db, RelPlays); err != nil {
		return stats, err
	}
	matchedTitle, err := count(ctx, u.db, "plays_titled")
	if err != nil {
		return stats, err
	}
	if stats.Matched, err = count(ctx, u.db, RelSongplays); err != nil {
		return stats, err
	}
	stats.TitleMisses = stats.Events - matchedTitle
	stats.TimeMisses = matchedTitle - stats.Matched

	u.logger.Info("song plays joined",
		"events", stats.Events,
		"matched", stats.Matched,
		"title_misses", stats.TitleMisses,
		"time_misses", stats.TimeMisses,
	)
	return stats, nil
}
