package duckdb

import (
	"testing"

	"github.com/leapstack-labs/sparkify/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisteredAsEngine(t *testing.T) {
	assert.Contains(t, adapter.ListAdapters(), "duckdb")

	adp, err := adapter.NewAdapter(adapter.Config{Type: "DuckDB"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Adapter{}, adp)
}
