package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Destination writes journal snapshots to an S3-compatible bucket. Each
// export goes to its own timestamped object under the configured prefix,
// so snapshots accumulate instead of overwriting one another.
type S3Destination struct {
	client    *s3.Client
	bucket    string
	keyPrefix string

	now func() time.Time // test seam
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, keyPrefix, region, endpoint string) (*S3Destination, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(cfg, s3opts...)
	return &S3Destination{
		client:    client,
		bucket:    bucket,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}, nil
}

// objectKey names the snapshot object for an export taken at t.
func (d *S3Destination) objectKey(t time.Time) string {
	prefix := strings.TrimSuffix(d.keyPrefix, "/")
	return fmt.Sprintf("%s/%s.jsonl", prefix, t.UTC().Format("20060102T150405Z"))
}

// Write uploads one journal snapshot to its timestamped object key.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	contentType := "application/x-ndjson"
	key := d.objectKey(d.now())
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	return nil
}
