// Package timeparts derives the calendar fields of the Time dimension from
// epoch-millisecond timestamps.
//
// All values are interpreted as UTC. Week numbers follow ISO-8601, so the
// week may belong to the neighbouring year: 2018-12-31 is year 2018, week 1.
package timeparts

import "time"

// Parts holds the calendar fields of a single instant.
type Parts struct {
	Year       int
	Month      int
	Day        int
	Hour       int
	WeekOfYear int
}

// Normalize converts milliseconds since the Unix epoch into calendar fields.
// It is total over int64; negative values describe instants before 1970.
func Normalize(ms int64) Parts {
	return FromTime(time.UnixMilli(ms))
}

// FromTime extracts calendar fields from t after converting it to UTC.
func FromTime(t time.Time) Parts {
	t = t.UTC()
	_, week := t.ISOWeek()
	return Parts{
		Year:       t.Year(),
		Month:      int(t.Month()),
		Day:        t.Day(),
		Hour:       t.Hour(),
		WeekOfYear: week,
	}
}

// Valid reports whether every field is inside its calendar range.
func (p Parts) Valid() bool {
	return p.Month >= 1 && p.Month <= 12 &&
		p.Day >= 1 && p.Day <= 31 &&
		p.Hour >= 0 && p.Hour <= 23 &&
		p.WeekOfYear >= 1 && p.WeekOfYear <= 53
}
