package core

import "fmt"

// Table describes one output table of the star schema: its ordered columns,
// its unique key and the columns its physical output is partitioned by.
type Table struct {
	// Name is the logical table name and the directory written under a
	// stage's output location.
	Name        string
	Columns     []Column
	Key         []string
	PartitionBy []string
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether the table declares a column with the given name.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Validate checks that key and partition columns are declared columns.
func (t Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table name is required")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s declares no columns", t.Name)
	}
	for _, k := range t.Key {
		if !t.HasColumn(k) {
			return fmt.Errorf("table %s: key column %q is not declared", t.Name, k)
		}
	}
	for _, p := range t.PartitionBy {
		if !t.HasColumn(p) {
			return fmt.Errorf("table %s: partition column %q is not declared", t.Name, p)
		}
	}
	return nil
}

func col(name, typ string, nullable bool) Column {
	return Column{Name: name, Type: typ, Nullable: nullable}
}

// Output tables. Partition columns follow the layout consumers query by.
var (
	// SongsTable is the Song dimension.
	SongsTable = Table{
		Name: "songs",
		Columns: []Column{
			col("song_id", "VARCHAR", false),
			col("title", "VARCHAR", true),
			col("artist_id", "VARCHAR", false),
			col("year", "INTEGER", false),
			col("duration", "DOUBLE", true),
		},
		Key:         []string{"song_id"},
		PartitionBy: []string{"year", "artist_id"},
	}

	// ArtistsTable is the Artist dimension.
	ArtistsTable = Table{
		Name: "artists",
		Columns: []Column{
			col("artist_id", "VARCHAR", false),
			col("name", "VARCHAR", true),
			col("location", "VARCHAR", true),
			col("latitude", "DOUBLE", true),
			col("longitude", "DOUBLE", true),
		},
		Key:         []string{"artist_id"},
		PartitionBy: []string{"artist_id"},
	}

	// UsersTable is the User dimension.
	UsersTable = Table{
		Name: "users",
		Columns: []Column{
			col("user_id", "VARCHAR", false),
			col("first_name", "VARCHAR", true),
			col("last_name", "VARCHAR", true),
			col("gender", "VARCHAR", true),
			col("level", "VARCHAR", true),
		},
		Key:         []string{"user_id"},
		PartitionBy: []string{"user_id"},
	}

	// TimesTable is the Time dimension derived from event timestamps.
	TimesTable = Table{
		Name: "times",
		Columns: []Column{
			col("start_time", "BIGINT", false),
			col("year", "INTEGER", false),
			col("month", "INTEGER", false),
			col("day", "INTEGER", false),
			col("hour", "INTEGER", false),
			col("week_of_year", "INTEGER", false),
		},
		Key:         []string{"start_time"},
		PartitionBy: []string{"year", "month"},
	}

	// SongplaysTable is the Play Event fact table.
	SongplaysTable = Table{
		Name: "songplays",
		Columns: []Column{
			col("start_time", "BIGINT", false),
			col("user_id", "VARCHAR", true),
			col("level", "VARCHAR", true),
			col("session_id", "BIGINT", true),
			col("location", "VARCHAR", true),
			col("user_agent", "VARCHAR", true),
			col("song_title", "VARCHAR", false),
			col("artist_id", "VARCHAR", true),
			col("song_id", "VARCHAR", true),
			col("year", "INTEGER", false),
			col("month", "INTEGER", false),
		},
		PartitionBy: []string{"year", "month"},
	}
)

// StarSchema lists every output table in write order.
func StarSchema() []Table {
	return []Table{SongsTable, ArtistsTable, UsersTable, TimesTable, SongplaysTable}
}
