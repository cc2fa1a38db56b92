package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vyuha/vyuha-scene/internal/graph"
)

// objectAPI is the subset of the S3 client the source needs.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config locates snapshots in a bucket.
type S3Config struct {
	Bucket   string `koanf:"bucket"`
	Prefix   string `koanf:"prefix"`
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"`
}

// S3Source reads snapshot objects from an S3-compatible bucket.
type S3Source struct {
	client objectAPI
	bucket string
	prefix string
	key    string
}

// NewS3Source creates an S3 source. If endpoint is non-empty, path-style
// addressing is enabled (for MinIO and similar).
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("source: s3 bucket is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("source: load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return newS3Source(s3.NewFromConfig(awsCfg, s3opts...), cfg.Bucket, cfg.Prefix), nil
}

func newS3Source(client objectAPI, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// WithKey returns a copy whose Fetch reads key.
func (s *S3Source) WithKey(key string) *S3Source {
	c := *s
	c.key = key
	return &c
}

// Name implements Source.
func (s *S3Source) Name() string { return "s3://" + s.bucket + "/" + s.key }

// Fetch implements Source. Without a key, the lexically last snapshot
// object under the prefix is read.
func (s *S3Source) Fetch(ctx context.Context) (*graph.Snapshot, error) {
	key := s.key
	if key == "" {
		keys, err := s.List(ctx)
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, fmt.Errorf("source: no snapshots under s3://%s/%s", s.bucket, s.prefix)
		}
		key = keys[len(keys)-1]
	}
	return s.Get(ctx, key)
}

// Get reads and decodes one object.
func (s *S3Source) Get(ctx context.Context, key string) (*graph.Snapshot, error) {
	format, err := FormatFromPath(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("source: s3 get object %q: %w", key, err)
	}
	defer out.Body.Close()

	snap, _, err := Decode(out.Body, format)
	if err != nil {
		return nil, fmt.Errorf("source: s3 %q: %w", key, err)
	}
	return snap, nil
}

// List returns the snapshot object keys under the prefix in lexical order,
// which is commit order for replay series written by the pipeline.
func (s *S3Source) List(ctx context.Context) ([]string, error) {
	var (
		keys  []string
		token *string
	)
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("source: s3 list %q: %w", s.prefix, err)
		}
		for _, obj := range out.Contents {
			k := aws.ToString(obj.Key)
			if _, err := FormatFromPath(k); err == nil {
				keys = append(keys, k)
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Strings(keys)
	return keys, nil
}

// Export uploads snap (typically with laid-out positions) as JSON under the
// prefix and returns the object key.
func (s *S3Source) Export(ctx context.Context, snap *graph.Snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("source: marshal snapshot %q: %w", snap.ID, err)
	}
	key := path.Join(s.prefix, snap.ID+".json")
	contentType := "application/json"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("source: s3 put object %q: %w", key, err)
	}
	return key, nil
}
