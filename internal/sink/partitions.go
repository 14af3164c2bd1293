package sink

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/sparkify/internal/storage"
)

// Partition is one hive-style partition directory below a table location.
type Partition struct {
	// Path is the partition directory relative to the table location,
	// e.g. "year=2018/month=11".
	Path   string
	Values map[string]string
}

// Partitions lists the distinct partition directories written under dest.
func (s *Sink) Partitions(ctx context.Context, dest string) ([]Partition, error) {
	dest = storage.Normalize(dest)
	st, err := s.resolver.For(dest)
	if err != nil {
		return nil, err
	}
	files, err := st.List(ctx, dest)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]Partition)
	for _, f := range files {
		rel := relativeDir(dest, f)
		if rel == "" {
			continue
		}
		if _, ok := seen[rel]; ok {
			continue
		}
		if p, ok := ParsePartition(rel); ok {
			seen[rel] = p
		}
	}

	out := make([]Partition, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// ParsePartition decodes a relative "k=v/k=v" directory path.
func ParsePartition(rel string) (Partition, bool) {
	p := Partition{Path: rel, Values: map[string]string{}}
	for _, seg := range strings.Split(rel, "/") {
		k, v, ok := strings.Cut(seg, "=")
		if !ok || k == "" {
			return Partition{}, false
		}
		if dec, err := url.PathUnescape(v); err == nil {
			v = dec
		}
		p.Values[k] = v
	}
	return p, true
}

// relativeDir returns the directory of file relative to root, slash-separated.
func relativeDir(root, file string) string {
	if storage.SchemeOf(root) == storage.SchemeS3 {
		rel := strings.TrimPrefix(file, strings.TrimRight(root, "/")+"/")
		dir := path.Dir(rel)
		if dir == "." {
			return ""
		}
		return dir
	}
	rel, err := filepath.Rel(root, filepath.Dir(file))
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}
