package transform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sparkify/internal/storage"
	"github.com/leapstack-labs/sparkify/pkg/adapter"
	"github.com/leapstack-labs/sparkify/pkg/core"
	"github.com/leapstack-labs/sparkify/pkg/schema"
)

// Catalog builds the Song and Artist dimensions from catalog records.
type Catalog struct {
	db       core.Adapter
	resolver *storage.Resolver
	logger   *slog.Logger
}

// NewCatalog creates a catalog transform over db.
func NewCatalog(db core.Adapter, resolver *storage.Resolver, logger *slog.Logger) *Catalog {
	return &Catalog{db: db, resolver: resolver, logger: discardLogger(logger)}
}

// Ingest reads the catalog records behind input into RelCatalogRecords.
func (c *Catalog) Ingest(ctx context.Context, input string) (core.IngestStats, error) {
	return ingest(ctx, c.db, c.resolver, c.logger, schema.Catalog, input, RelCatalogRecords)
}

// songsDedup keeps one row per song_id: smallest (title, artist_id), then
// latest year, then shortest duration.
var songsDedup = Dedup{
	Source:  "songs_stage",
	Target:  RelSongs,
	Key:     []string{"song_id"},
	OrderBy: []string{`"title" ASC NULLS LAST`, `"artist_id" ASC`, `"year" DESC`, `"duration" ASC NULLS LAST`},
}

// Songs projects the Song dimension into RelSongs. An unknown year is
// stored as 0 so it can serve as a partition value.
func (c *Catalog) Songs(ctx context.Context) (int64, error) {
	stage := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS
SELECT
	"song_id",
	"title",
	"artist_id",
	CAST(COALESCE("year", 0) AS INTEGER) AS "year",
	"duration"
FROM %s`, adapter.QuoteIdent(songsDedup.Source), adapter.QuoteIdent(RelCatalogRecords))
	if err := c.db.Exec(ctx, stage); err != nil {
		return 0, fmt.Errorf("project songs: %w", err)
	}
	n, err := songsDedup.Apply(ctx, c.db)
	if err != nil {
		return 0, err
	}
	c.logger.Debug("songs built", "rows", n)
	return n, nil
}

// artistsDedup keeps one row per artist_id, preferring records that carry
// coordinates, then a location, then the smallest remaining values.
var artistsDedup = Dedup{
	Source: "artists_stage",
	Target: RelArtists,
	Key:    []string{"artist_id"},
	OrderBy: []string{
		`("latitude" IS NULL OR "longitude" IS NULL) ASC`,
		`"location" IS NULL ASC`,
		`"name" ASC NULLS LAST`,
		`"location" ASC NULLS LAST`,
		`"latitude" ASC NULLS LAST`,
		`"longitude" ASC NULLS LAST`,
	},
}

// Artists projects the Artist dimension into RelArtists. Blank locations
// are stored as NULL.
func (c *Catalog) Artists(ctx context.Context) (int64, error) {
	stage := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS
SELECT
	"artist_id",
	"artist_name" AS "name",
	NULLIF(trim("artist_location"), '') AS "location",
	"artist_latitude" AS "latitude",
	"artist_longitude" AS "longitude"
FROM %s`, adapter.QuoteIdent(artistsDedup.Source), adapter.QuoteIdent(RelCatalogRecords))
	if err := c.db.Exec(ctx, stage); err != nil {
		return 0, fmt.Errorf("project artists: %w", err)
	}
	n, err := artistsDedup.Apply(ctx, c.db)
	if err != nil {
		return 0, err
	}
	c.logger.Debug("artists built", "rows", n)
	return n, nil
}
