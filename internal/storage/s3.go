package storage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/leapstack-labs/sparkify/pkg/core"
)

// maxDeleteBatch is the DeleteObjects per-request key limit.
const maxDeleteBatch = 1000

// S3API is the subset of the S3 client used by the S3 handle.
type S3API interface {
	s3.ListObjectsV2APIClient
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3 is a Storage over an S3-compatible object store.
type S3 struct {
	client S3API
}

// NewS3 wraps an S3 client.
func NewS3(client S3API) *S3 {
	return &S3{client: client}
}

// NewS3Client builds an S3 client from injected credentials. Static
// credentials take precedence over the SDK default chain when present.
func NewS3Client(ctx context.Context, creds *core.Credentials) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if creds != nil {
		if creds.Region != "" {
			opts = append(opts, awsconfig.WithRegion(creds.Region))
		}
		if creds.KeyID != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(creds.KeyID, creds.Secret, creds.SessionToken),
			))
		}
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if creds == nil {
			return
		}
		if creds.Endpoint != "" {
			scheme := "https://"
			if creds.UseSSL != nil && !*creds.UseSSL {
				scheme = "http://"
			}
			endpoint := creds.Endpoint
			if !strings.Contains(endpoint, "://") {
				endpoint = scheme + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
		}
		if creds.URLStyle == "path" {
			o.UsePathStyle = true
		}
	}), nil
}

// ParseS3URI splits an s3:// (or s3a://) URI into bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	n := Normalize(uri)
	if !strings.HasPrefix(n, "s3://") {
		return "", "", fmt.Errorf("not an s3 uri: %s", uri)
	}
	rest := strings.TrimPrefix(n, "s3://")
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 uri without bucket: %s", uri)
	}
	return bucket, key, nil
}

// Exists reports whether any object is stored at or below uri.
func (s *S3) Exists(ctx context.Context, uri string) (bool, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return false, err
	}
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(dirPrefix(key)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, &core.IOError{Op: "list", Path: uri, Err: err}
	}
	return len(out.Contents) > 0, nil
}

// List returns the URIs of every object below uri.
func (s *S3) List(ctx context.Context, uri string) ([]string, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	keys, err := s.listKeys(ctx, bucket, dirPrefix(key))
	if err != nil {
		return nil, &core.IOError{Op: "list", Path: uri, Err: err}
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = "s3://" + bucket + "/" + k
	}
	return out, nil
}

// Match lists the literal prefix of pattern and filters keys with path.Match.
func (s *S3) Match(ctx context.Context, pattern string) ([]string, error) {
	bucket, keyPattern, err := ParseS3URI(pattern)
	if err != nil {
		return nil, err
	}
	prefix := keyPattern
	if i := strings.IndexAny(keyPattern, "*?["); i >= 0 {
		prefix = keyPattern[:i]
	}
	keys, err := s.listKeys(ctx, bucket, prefix)
	if err != nil {
		return nil, &core.IOError{Op: "glob", Path: pattern, Err: err}
	}
	var out []string
	for _, k := range keys {
		ok, err := path.Match(keyPattern, k)
		if err != nil {
			return nil, &core.IOError{Op: "glob", Path: pattern, Err: err}
		}
		if ok {
			out = append(out, "s3://"+bucket+"/"+k)
		}
	}
	return out, nil
}

// Remove deletes every object below uri in batches.
func (s *S3) Remove(ctx context.Context, uri string) error {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return err
	}
	keys, err := s.listKeys(ctx, bucket, dirPrefix(key))
	if err != nil {
		return &core.IOError{Op: "list", Path: uri, Err: err}
	}

	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return &core.IOError{Op: "remove", Path: uri, Err: err}
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return &core.IOError{
				Op:   "remove",
				Path: uri,
				Err:  fmt.Errorf("%d objects not deleted, first %s: %s", len(out.Errors), aws.ToString(first.Key), aws.ToString(first.Message)),
			}
		}
	}
	return nil
}

// Prepare is a no-op: object stores have no directories to create.
func (s *S3) Prepare(context.Context, string) error {
	return nil
}

func (s *S3) listKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// dirPrefix turns a location key into a listing prefix that cannot match
// sibling keys sharing the same leading characters.
func dirPrefix(key string) string {
	if key == "" || strings.HasSuffix(key, "/") {
		return key
	}
	return key + "/"
}

var _ Storage = (*S3)(nil)
