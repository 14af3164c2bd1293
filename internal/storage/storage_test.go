package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemeOf(t *testing.T) {
	tests := []struct {
		uri  string
		want Scheme
	}{
		{"s3://bucket/song_data", SchemeS3},
		{"s3a://udacity-dend/log_data", SchemeS3},
		{"s3n://bucket/x", SchemeS3},
		{"/tmp/out", SchemeLocal},
		{"file:///tmp/out", SchemeLocal},
		{"data/song_data/*/*/*/*.json", SchemeLocal},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.want, SchemeOf(tt.uri))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "s3://udacity-dend/song_data", Normalize("s3a://udacity-dend/song_data"))
	assert.Equal(t, "s3://b/k", Normalize("s3n://b/k"))
	assert.Equal(t, "s3://b/k", Normalize("s3://b/k"))
	assert.Equal(t, "/tmp/out", Normalize("file:///tmp/out"))
	assert.Equal(t, "out", Normalize("out"))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "s3://bucket/out/songs", Join("s3://bucket/out/", "songs"))
	assert.Equal(t, "s3://bucket/songs", Join("s3a://bucket", "/songs/"))
	assert.Equal(t, filepath.Join("/tmp", "out", "songs"), Join("/tmp/out", "songs"))
}

func TestResolver_For(t *testing.T) {
	fake := NewS3(newFakeS3())
	r := NewResolver(fake)

	st, err := r.For("s3a://bucket/out")
	require.NoError(t, err)
	assert.Same(t, fake, st)

	st, err = r.For(t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &Local{}, st)

	_, err = NewResolver(nil).For("s3://bucket/out")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no object store configured")
}
