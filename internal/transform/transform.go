// Package transform reshapes raw catalog and usage records into the star
// schema relations inside the compute engine.
//
// Every step materializes a named relation in the engine so the next step
// (and the sink) can read it. Relation names are fixed per run; a run owns
// its engine connection.
package transform

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/sparkify/internal/storage"
	"github.com/leapstack-labs/sparkify/pkg/adapter"
	"github.com/leapstack-labs/sparkify/pkg/core"
	"github.com/leapstack-labs/sparkify/pkg/schema"
)

// Engine relations produced by the transforms.
const (
	RelCatalogRecords = "catalog_records"
	RelSongs          = "songs_out"
	RelArtists        = "artists_out"

	RelUsageRecords = "usage_records"
	RelPlays        = "plays"
	RelUsers        = "users_out"
	RelTimes        = "times_out"
	RelSongsIn      = "songs_in"
	RelSongplays    = "songplays_out"
)

func discardLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}

// resolveInputs expands an input location into concrete files. Glob
// patterns are matched; plain locations are listed recursively.
func resolveInputs(ctx context.Context, resolver *storage.Resolver, input string) ([]string, error) {
	input = storage.Normalize(input)
	st, err := resolver.For(input)
	if err != nil {
		return nil, err
	}

	var files []string
	if strings.ContainsAny(input, "*?[") {
		files, err = st.Match(ctx, input)
	} else {
		files, err = st.List(ctx, input)
	}
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &core.IOError{Op: "read", Path: input, Err: core.ErrNoInput}
	}
	return files, nil
}

// ingest loads the NDJSON files behind input into relation target, typed
// per sch. Field values that do not fit their declared type become NULL
// and are counted; records lacking a required value are dropped and counted.
func ingest(ctx context.Context, db core.Adapter, resolver *storage.Resolver, logger *slog.Logger, sch schema.Schema, input, target string) (core.IngestStats, error) {
	var stats core.IngestStats

	files, err := resolveInputs(ctx, resolver, input)
	if err != nil {
		return stats, err
	}

	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = adapter.QuoteString(f)
	}

	raw := target + "_raw"
	rawSQL := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS\nSELECT\n\t%s\nFROM read_ndjson_objects([%s], ignore_errors = true)",
		adapter.QuoteIdent(raw), sch.RawSelectList("json"), strings.Join(quoted, ", "),
	)
	if err := db.Exec(ctx, rawSQL); err != nil {
		return stats, &core.IOError{Op: "read", Path: input, Err: err}
	}
	defer func() { _ = db.Exec(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+adapter.QuoteIdent(raw)) }()

	if stats.Read, err = db.QueryInt(ctx, "SELECT count(*) FROM "+adapter.QuoteIdent(raw)); err != nil {
		return stats, fmt.Errorf("count %s records: %w", sch.Name, err)
	}
	if stats.Coerced, err = db.QueryInt(ctx, fmt.Sprintf("SELECT %s FROM %s", sch.CoercedCountExpr(), adapter.QuoteIdent(raw))); err != nil {
		return stats, fmt.Errorf("count coerced %s fields: %w", sch.Name, err)
	}

	typedSQL := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS\nSELECT * FROM (\nSELECT\n\t%s\nFROM %s\n) WHERE NOT (%s)",
		adapter.QuoteIdent(target), sch.TypedSelectList(), adapter.QuoteIdent(raw), sch.MissingRequiredPredicate(),
	)
	if err := db.Exec(ctx, typedSQL); err != nil {
		return stats, fmt.Errorf("type %s records: %w", sch.Name, err)
	}

	kept, err := db.QueryInt(ctx, "SELECT count(*) FROM "+adapter.QuoteIdent(target))
	if err != nil {
		return stats, fmt.Errorf("count typed %s records: %w", sch.Name, err)
	}
	stats.Dropped = stats.Read - kept

	logger.Info("records ingested",
		"family", sch.Name,
		"files", len(files),
		"read", stats.Read,
		"dropped", stats.Dropped,
		"coerced", stats.Coerced,
	)
	if stats.Dropped > 0 || stats.Coerced > 0 {
		logger.Warn("schema violations", "family", sch.Name, "dropped", stats.Dropped, "coerced", stats.Coerced)
	}
	return stats, nil
}

func count(ctx context.Context, db core.Adapter, rel string) (int64, error) {
	n, err := db.QueryInt(ctx, "SELECT count(*) FROM "+adapter.QuoteIdent(rel))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", rel, err)
	}
	return n, nil
}

// conform checks that relation rel carries every column of t with its
// declared type and returns the relation's row count.
func conform(ctx context.Context, db core.Adapter, rel string, t core.Table) (int64, error) {
	meta, err := db.GetTableMetadata(ctx, rel)
	if err != nil {
		return 0, err
	}
	types := make(map[string]string, len(meta.Columns))
	for _, c := range meta.Columns {
		types[c.Name] = c.Type
	}
	for _, c := range t.Columns {
		got, ok := types[c.Name]
		if !ok {
			return 0, fmt.Errorf("%s is missing column %s", rel, c.Name)
		}
		if !strings.EqualFold(got, c.Type) {
			return 0, fmt.Errorf("%s column %s is %s, want %s", rel, c.Name, got, c.Type)
		}
	}
	return meta.RowCount, nil
}
