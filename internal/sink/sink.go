// Package sink persists finished engine tables as partitioned Parquet.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/sparkify/internal/storage"
	"github.com/leapstack-labs/sparkify/pkg/adapter"
	"github.com/leapstack-labs/sparkify/pkg/core"
)

// Executor is the part of the compute engine the sink drives.
type Executor interface {
	Exec(ctx context.Context, sql string) error
	QueryInt(ctx context.Context, sql string) (int64, error)
}

// Sink writes engine relations to storage.
type Sink struct {
	db       Executor
	resolver *storage.Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a sink. A nil logger discards output.
func New(db Executor, resolver *storage.Resolver, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sink{db: db, resolver: resolver, logger: logger, now: time.Now}
}

// Write persists req.Source at req.Destination partitioned by the table's
// partition columns. A populated destination is only replaced when the
// request carries ModeOverwrite.
func (s *Sink) Write(ctx context.Context, req core.WriteRequest) (*core.WriteResult, error) {
	if err := req.Table.Validate(); err != nil {
		return nil, err
	}
	if req.Source == "" {
		return nil, fmt.Errorf("write %s: source relation is required", req.Table.Name)
	}
	if req.Destination == "" {
		return nil, fmt.Errorf("write %s: destination is required", req.Table.Name)
	}

	dest := storage.Normalize(req.Destination)
	st, err := s.resolver.For(dest)
	if err != nil {
		return nil, err
	}

	populated, err := st.Exists(ctx, dest)
	if err != nil {
		return nil, err
	}
	if populated && req.Mode != core.ModeOverwrite {
		return nil, &core.SinkConflictError{Table: req.Table.Name, Destination: req.Destination}
	}
	if populated {
		s.logger.Info("replacing existing output", "table", req.Table.Name, "destination", dest)
		if err := st.Remove(ctx, dest); err != nil {
			return nil, err
		}
	}
	if err := st.Prepare(ctx, dest); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryInt(ctx, fmt.Sprintf("SELECT count(*) FROM %s", adapter.QuoteQualified(req.Source)))
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", req.Source, err)
	}

	if rows > 0 {
		if err := s.db.Exec(ctx, CopySQL(req.Table, req.Source, dest)); err != nil {
			return nil, fmt.Errorf("write %s to %s: %w", req.Table.Name, dest, err)
		}
	}

	s.logger.Info("table written",
		"table", req.Table.Name,
		"destination", dest,
		"rows", rows,
		"partition_by", req.Table.PartitionBy,
	)

	return &core.WriteResult{
		Table:       req.Table.Name,
		Destination: dest,
		PartitionBy: req.Table.PartitionBy,
		Rows:        rows,
		Replaced:    populated,
		WrittenAt:   s.now().UTC(),
	}, nil
}

// CopySQL renders the COPY statement writing source to dest. Partitioned
// tables become a hive-style directory tree; others a single file.
func CopySQL(table core.Table, source, dest string) string {
	selectSQL := fmt.Sprintf("SELECT %s FROM %s", adapter.IdentList(table.ColumnNames()), adapter.QuoteQualified(source))
	if len(table.PartitionBy) == 0 {
		target := storage.Join(dest, "data.parquet")
		return fmt.Sprintf("COPY (%s) TO %s (FORMAT PARQUET)", selectSQL, adapter.QuoteString(target))
	}
	return fmt.Sprintf("COPY (%s) TO %s (FORMAT PARQUET, PARTITION_BY (%s), OVERWRITE_OR_IGNORE)",
		selectSQL, adapter.QuoteString(dest), adapter.IdentList(table.PartitionBy))
}

// ReadSQL renders a query reading a table back from dest with the declared
// column types. Partition columns are recovered from directory names.
func ReadSQL(table core.Table, dest string) string {
	dest = storage.Normalize(dest)
	pattern := storage.Join(dest, "**", "*.parquet")
	opts := ""
	if len(table.PartitionBy) > 0 {
		opts = ", hive_partitioning = true, hive_types_autocast = false"
	}
	casts := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		casts[i] = fmt.Sprintf("CAST(%s AS %s) AS %s", adapter.QuoteIdent(c.Name), c.Type, adapter.QuoteIdent(c.Name))
	}
	return fmt.Sprintf("SELECT %s FROM read_parquet(%s%s)", strings.Join(casts, ", "), adapter.QuoteString(pattern), opts)
}
