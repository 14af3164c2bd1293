package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/sparkify/pkg/adapter"
	"github.com/leapstack-labs/sparkify/pkg/core"
)

// Dedup describes collapsing a relation to one row per key.
type Dedup struct {
	Source string
	Target string
	Key    []string
	// OrderBy ranks rows within a key; the first row wins. It must be a
	// total order over the compared columns for the result to be
	// deterministic.
	OrderBy []string
	// Columns projected into Target; empty keeps every source column.
	Columns []string
}

// SQL renders the statement materializing Target.
func (d Dedup) SQL() string {
	cols := "*"
	if len(d.Columns) > 0 {
		cols = adapter.IdentList(d.Columns)
	}
	return fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS\nSELECT %s FROM %s\nQUALIFY row_number() OVER (PARTITION BY %s ORDER BY %s) = 1",
		adapter.QuoteIdent(d.Target), cols, adapter.QuoteIdent(d.Source),
		adapter.IdentList(d.Key), strings.Join(d.OrderBy, ", "),
	)
}

// Apply runs the dedup and returns the number of rows kept.
func (d Dedup) Apply(ctx context.Context, db core.Adapter) (int64, error) {
	if len(d.Key) == 0 || len(d.OrderBy) == 0 {
		return 0, fmt.Errorf("dedup %s: key and order are required", d.Source)
	}
	if err := db.Exec(ctx, d.SQL()); err != nil {
		return 0, fmt.Errorf("dedup %s by %v: %w", d.Source, d.Key, err)
	}
	return count(ctx, db, d.Target)
}
