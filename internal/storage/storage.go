// Package storage provides the filesystem and object-store handles the
// pipeline uses to check, list and clear input and output locations.
package storage

import (
	"context"
	"fmt"
	"strings"
)

// Storage is a handle on one kind of location (local path or object store).
// URIs passed to a Storage are always of the kind it was resolved for.
type Storage interface {
	// Exists reports whether anything is stored at or below uri.
	Exists(ctx context.Context, uri string) (bool, error)

	// List returns every object (file) stored below uri, sorted.
	List(ctx context.Context, uri string) ([]string, error)

	// Match expands a glob pattern into the matching objects, sorted.
	Match(ctx context.Context, pattern string) ([]string, error)

	// Remove deletes everything stored at or below uri.
	// Removing an absent location is not an error.
	Remove(ctx context.Context, uri string) error

	// Prepare makes uri ready to receive output.
	Prepare(ctx context.Context, uri string) error
}

// Scheme identifies the kind of location a URI refers to.
type Scheme string

// Supported schemes.
const (
	SchemeLocal Scheme = "file"
	SchemeS3    Scheme = "s3"
)

// SchemeOf returns the scheme of uri. Anything without a recognised
// object-store prefix is treated as a local path.
func SchemeOf(uri string) Scheme {
	switch {
	case strings.HasPrefix(uri, "s3://"), strings.HasPrefix(uri, "s3a://"), strings.HasPrefix(uri, "s3n://"):
		return SchemeS3
	default:
		return SchemeLocal
	}
}

// Normalize rewrites Hadoop-style s3a:// and s3n:// URIs to s3:// and strips
// a file:// prefix, so the result is understood by the compute engine.
func Normalize(uri string) string {
	for _, p := range []string{"s3a://", "s3n://"} {
		if strings.HasPrefix(uri, p) {
			return "s3://" + strings.TrimPrefix(uri, p)
		}
	}
	return strings.TrimPrefix(uri, "file://")
}

// Join appends path elements to a location using forward slashes for
// object stores and the platform separator for local paths.
func Join(base string, elem ...string) string {
	if SchemeOf(base) == SchemeS3 {
		out := strings.TrimRight(Normalize(base), "/")
		for _, e := range elem {
			out += "/" + strings.Trim(e, "/")
		}
		return out
	}
	return joinLocal(base, elem...)
}

// Resolver picks the Storage for a URI.
type Resolver struct {
	Local Storage
	S3    Storage
}

// NewResolver creates a resolver with a local handle and an optional S3 handle.
func NewResolver(s3 Storage) *Resolver {
	return &Resolver{Local: NewLocal(), S3: s3}
}

// For returns the Storage responsible for uri.
func (r *Resolver) For(uri string) (Storage, error) {
	switch SchemeOf(uri) {
	case SchemeS3:
		if r.S3 == nil {
			return nil, fmt.Errorf("no object store configured for %s", uri)
		}
		return r.S3, nil
	default:
		if r.Local == nil {
			return nil, fmt.Errorf("no local storage configured for %s", uri)
		}
		return r.Local, nil
	}
}
