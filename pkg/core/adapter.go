package core

import (
	"context"
	"database/sql"
	"database/sql/driver"
)

// Adapter defines the interface that the compute engine must implement.
type Adapter interface {
	// Connect establishes a connection to the engine.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close closes the engine connection.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// QueryInt runs a query returning a single integer (typically a COUNT).
	QueryInt(ctx context.Context, sql string) (int64, error)

	// GetTableMetadata retrieves the columns and row count of a table.
	GetTableMetadata(ctx context.Context, table string) (*TableMetadata, error)

	// NewAppender opens a bulk appender on an existing table.
	NewAppender(ctx context.Context, schema, table string) (Appender, error)
}

// Appender bulk-loads rows into an existing engine table.
// Values must be supplied in table column order.
type Appender interface {
	AppendRow(values ...driver.Value) error
	Close() error
}

// AdapterConfig holds configuration for connecting to the compute engine.
type AdapterConfig struct {
	Type   string
	Path   string
	Params map[string]any

	// Credentials, when set, are registered with the engine so that remote
	// object-storage paths can be read and written.
	Credentials *Credentials
}

// Column represents a column in an engine table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// TableMetadata holds metadata about an engine table.
type TableMetadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
}
