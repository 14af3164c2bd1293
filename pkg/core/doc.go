// Package core defines the shared language of the sparkify pipeline.
//
// This package contains:
//   - Table descriptors for the star schema (Song, Artist, User, Time, Play Event)
//   - Service interfaces (Adapter, Appender, Store)
//   - Write contracts for the sink (WriteMode, WriteRequest, WriteResult)
//   - Stage statistics and the error taxonomy
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
