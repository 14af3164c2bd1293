package schema

// Catalog is the declared schema of catalog ("song") records.
var Catalog = Schema{
	Name: "catalog",
	Columns: []Column{
		{Name: "artist_id", Type: Varchar, Nullable: false},
		{Name: "artist_latitude", Type: Double, Nullable: true},
		{Name: "artist_location", Type: Varchar, Nullable: true},
		{Name: "artist_longitude", Type: Double, Nullable: true},
		{Name: "artist_name", Type: Varchar, Nullable: true},
		{Name: "duration", Type: Double, Nullable: true},
		{Name: "num_songs", Type: Integer, Nullable: true},
		{Name: "song_id", Type: Varchar, Nullable: false},
		{Name: "title", Type: Varchar, Nullable: true},
		{Name: "year", Type: Integer, Nullable: true},
	},
}

// Usage is the declared schema of usage ("log") event records. Source keys
// are the camelCase names the application emits.
var Usage = Schema{
	Name: "usage",
	Columns: []Column{
		{Name: "artist", Type: Varchar, Nullable: true},
		{Name: "auth", Type: Varchar, Nullable: true},
		{Name: "first_name", Source: "firstName", Type: Varchar, Nullable: true},
		{Name: "gender", Type: Varchar, Nullable: true},
		{Name: "item_in_session", Source: "itemInSession", Type: Integer, Nullable: true},
		{Name: "last_name", Source: "lastName", Type: Varchar, Nullable: true},
		{Name: "length", Type: Double, Nullable: true},
		{Name: "level", Type: Varchar, Nullable: true},
		{Name: "location", Type: Varchar, Nullable: true},
		{Name: "method", Type: Varchar, Nullable: true},
		{Name: "page", Type: Varchar, Nullable: false},
		{Name: "registration", Type: Double, Nullable: true},
		{Name: "session_id", Source: "sessionId", Type: BigInt, Nullable: true},
		{Name: "song", Type: Varchar, Nullable: true},
		{Name: "status", Type: Integer, Nullable: true},
		{Name: "ts", Type: BigInt, Nullable: true},
		{Name: "user_agent", Source: "userAgent", Type: Varchar, Nullable: true},
		{Name: "user_id", Source: "userId", Type: Varchar, Nullable: true},
	},
}

// NextSongPage is the page value that marks a song play.
const NextSongPage = "NextSong"
