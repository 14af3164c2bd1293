package core

import "time"

// WriteMode controls what the sink does with a populated destination.
type WriteMode string

// Write modes. The zero value refuses to touch existing data.
const (
	ModeErrorIfExists WriteMode = ""
	ModeOverwrite     WriteMode = "overwrite"
)

// ParseWriteMode maps a configuration string to a WriteMode.
func ParseWriteMode(s string) (WriteMode, bool) {
	switch s {
	case "", "error", "error_if_exists":
		return ModeErrorIfExists, true
	case "overwrite":
		return ModeOverwrite, true
	default:
		return ModeErrorIfExists, false
	}
}

// String implements fmt.Stringer.
func (m WriteMode) String() string {
	if m == ModeErrorIfExists {
		return "error_if_exists"
	}
	return string(m)
}

// WriteRequest asks the sink to persist an engine table.
type WriteRequest struct {
	// Table describes the output columns and partition layout.
	Table Table
	// Source is the engine relation holding the finished rows.
	Source string
	// Destination is the table's location (directory or object prefix).
	Destination string
	Mode        WriteMode
}

// WriteResult reports what the sink persisted.
type WriteResult struct {
	Table       string
	Destination string
	PartitionBy []string
	Rows        int64
	Replaced    bool
	WrittenAt   time.Time
}
