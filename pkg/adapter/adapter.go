// Package adapter provides the compute engine contract for the sparkify
// pipeline and the shared database/sql plumbing concrete engines embed.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves by name from their init() functions.
package adapter

import (
	"github.com/leapstack-labs/sparkify/pkg/core"
)

// Type aliases so callers can depend on the adapter package alone.
type (
	// Adapter is an alias for core.Adapter.
	Adapter = core.Adapter

	// Appender is an alias for core.Appender.
	Appender = core.Appender

	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Column is an alias for core.Column.
	Column = core.Column

	// Metadata is an alias for core.TableMetadata.
	Metadata = core.TableMetadata

	// Rows is an alias for core.Rows.
	Rows = core.Rows
)
