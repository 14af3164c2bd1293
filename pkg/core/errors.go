package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSinkConflict is matched by every SinkConflictError.
	ErrSinkConflict = errors.New("destination already contains data")

	// ErrCatalogNotReady is returned when the usage stage is started without
	// a completed catalog stage to read the Song dimension from.
	ErrCatalogNotReady = errors.New("catalog stage has not completed")

	// ErrNoInput is wrapped by IOError when an input pattern matches nothing.
	ErrNoInput = errors.New("no input files matched")
)

// SinkConflictError reports a populated destination written without
// overwrite authorization.
type SinkConflictError struct {
	Table       string
	Destination string
}

func (e *SinkConflictError) Error() string {
	return fmt.Sprintf("sink conflict: table %s: %s already contains data (set write_mode: overwrite to replace it)", e.Table, e.Destination)
}

// Is makes errors.Is(err, ErrSinkConflict) succeed.
func (e *SinkConflictError) Is(target error) bool {
	return target == ErrSinkConflict
}

// IOError reports an upstream storage or input failure. These are fatal for
// the run; nothing retries them.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
