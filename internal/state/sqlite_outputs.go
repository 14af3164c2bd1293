package state

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/sparkify/pkg/core"
)

// RecordTableWrite stores what the sink wrote for one table.
// Recording the same table twice for a run replaces the earlier entry.
func (s *SQLiteStore) RecordTableWrite(runID string, res *core.WriteResult) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if res == nil {
		return fmt.Errorf("write result is required")
	}

	replaced := 0
	if res.Replaced {
		replaced = 1
	}
	written := res.WrittenAt
	if written.IsZero() {
		written = s.now()
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO table_writes (run_id, table_name, destination, partition_by, rows, replaced, written_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, res.Table, res.Destination, strings.Join(res.PartitionBy, ","), res.Rows, replaced, written.UTC().UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("failed to record write of %s: %w", res.Table, err)
	}
	return nil
}

// GetTableWrites returns the tables written by a run in write order.
func (s *SQLiteStore) GetTableWrites(runID string) ([]*core.WriteResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT table_name, destination, partition_by, rows, replaced, written_at
		 FROM table_writes WHERE run_id = ? ORDER BY written_at, rowid`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get table writes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.WriteResult
	for rows.Next() {
		res := &core.WriteResult{}
		var partitionBy string
		var replaced int
		var writtenAt int64
		if err := rows.Scan(&res.Table, &res.Destination, &partitionBy, &res.Rows, &replaced, &writtenAt); err != nil {
			return nil, fmt.Errorf("failed to scan table write: %w", err)
		}
		if partitionBy != "" {
			res.PartitionBy = strings.Split(partitionBy, ",")
		}
		res.Replaced = replaced != 0
		res.WrittenAt = fromMicros(writtenAt)
		out = append(out, res)
	}
	return out, rows.Err()
}

// RecordStats upserts named counters for a run.
func (s *SQLiteStore) RecordStats(runID string, stats map[string]int64) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO run_stats (run_id, name, value) VALUES (?, ?, ?)`,
			runID, name, stats[name],
		); err != nil {
			return fmt.Errorf("failed to record stat %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetStats returns every counter recorded for a run.
func (s *SQLiteStore) GetStats(runID string) (map[string]int64, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(`SELECT name, value FROM run_stats WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make(map[string]int64)
	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan stat: %w", err)
		}
		stats[name] = value
	}
	return stats, rows.Err()
}
