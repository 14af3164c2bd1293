package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/sparkify/pkg/adapter"
	"github.com/leapstack-labs/sparkify/pkg/core"
	"github.com/leapstack-labs/sparkify/pkg/timeparts"
)

// Times derives the Time dimension into RelTimes: one row per distinct
// event timestamp, decomposed in UTC. Events without a timestamp produce
// no row.
func (u *Usage) Times(ctx context.Context) (int64, error) {
	stamps, err := u.distinctTimestamps(ctx)
	if err != nil {
		return 0, err
	}

	create := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", adapter.QuoteIdent(RelTimes), columnDefs(core.TimesTable))
	if err := u.db.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("create time dimension: %w", err)
	}

	app, err := u.db.NewAppender(ctx, "", RelTimes)
	if err != nil {
		return 0, err
	}
	for _, ms := range stamps {
		p := timeparts.Normalize(ms)
		if err := app.AppendRow(ms, int32(p.Year), int32(p.Month), int32(p.Day), int32(p.Hour), int32(p.WeekOfYear)); err != nil {
			_ = app.Close()
			return 0, fmt.Errorf("append time row %d: %w", ms, err)
		}
	}
	if err := app.Close(); err != nil {
		return 0, fmt.Errorf("flush time dimension: %w", err)
	}

	n := int64(len(stamps))
	u.logger.Debug("times built", "rows", n)
	return n, nil
}

func (u *Usage) distinctTimestamps(ctx context.Context) ([]int64, error) {
	rows, err := u.db.Query(ctx, fmt.Sprintf(
		`SELECT DISTINCT "ts" FROM %s WHERE "ts" IS NOT NULL ORDER BY "ts"`, adapter.QuoteIdent(RelPlays)))
	if err != nil {
		return nil, fmt.Errorf("select event timestamps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan event timestamp: %w", err)
		}
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event timestamps: %w", err)
	}
	return out, nil
}

// columnDefs renders a CREATE TABLE column list for t.
func columnDefs(t core.Table) string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = adapter.QuoteIdent(c.Name) + " " + c.Type
	}
	return strings.Join(defs, ", ")
}
