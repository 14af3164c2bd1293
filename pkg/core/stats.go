package core

// IngestStats counts what happened while reading one record family.
type IngestStats struct {
	// Read is the number of JSON records found.
	Read int64
	// Dropped counts records rejected because a required field was missing.
	Dropped int64
	// Coerced counts individual field values nulled because they did not
	// fit the declared type.
	Coerced int64
}

// Kept returns the number of records that survived validation.
func (s IngestStats) Kept() int64 {
	return s.Read - s.Dropped
}

// JoinStats counts the outcome of the Play Event reconstruction.
type JoinStats struct {
	// Events is the number of filtered events entering the join.
	Events int64
	// TitleMisses counts events whose song title matched no Song row
	// (including events with no title at all).
	TitleMisses int64
	// TimeMisses counts title-matched events with no Time row.
	TimeMisses int64
	// Matched is the number of Play Event rows produced.
	Matched int64
}

// Misses returns the total number of events dropped by the joins.
func (s JoinStats) Misses() int64 {
	return s.TitleMisses + s.TimeMisses
}

// CatalogStats summarizes a catalog stage.
type CatalogStats struct {
	Ingest  IngestStats
	Songs   int64
	Artists int64
}

// UsageStats summarizes a usage stage.
type UsageStats struct {
	Ingest   IngestStats
	Filtered int64
	Users    int64
	Times    int64
	Join     JoinStats
}

// Flatten returns the stats as named counters for the run ledger.
func (s CatalogStats) Flatten() map[string]int64 {
	return map[string]int64{
		"catalog.read":    s.Ingest.Read,
		"catalog.dropped": s.Ingest.Dropped,
		"catalog.coerced": s.Ingest.Coerced,
		"catalog.songs":   s.Songs,
		"catalog.artists": s.Artists,
	}
}

// Flatten returns the stats as named counters for the run ledger.
func (s UsageStats) Flatten() map[string]int64 {
	return map[string]int64{
		"usage.read":         s.Ingest.Read,
		"usage.dropped":      s.Ingest.Dropped,
		"usage.coerced":      s.Ingest.Coerced,
		"usage.filtered":     s.Filtered,
		"usage.users":        s.Users,
		"usage.times":        s.Times,
		"usage.title_misses": s.Join.TitleMisses,
		"usage.time_misses":  s.Join.TimeMisses,
		"usage.songplays":    s.Join.Matched,
	}
}
