// Package storage provides the S3-compatible location source: the venue
// collection kept as a single GeoJSON object in a MinIO or S3 bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/stuartshay/gobebop/internal/location"
)

// ErrObjectNotFound is returned when the collection object does not exist.
var ErrObjectNotFound = errors.New("locations object not found")

// Options configures the S3 client.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Region skips bucket location discovery when set.
	Region string
	Bucket string
	Object string
}

// S3Source reads and publishes the collection object.
type S3Source struct {
	client *minio.Client
	bucket string
	object string
}

// NewS3Source creates a client for the configured endpoint. No request is
// made until the first Fetch or Publish.
func NewS3Source(opts Options) (*S3Source, error) {
	if opts.Endpoint == "" || opts.Bucket == "" || opts.Object == "" {
		return nil, fmt.Errorf("s3 endpoint, bucket and object are required")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &S3Source{client: client, bucket: opts.Bucket, object: opts.Object}, nil
}

// Name implements location.Source.
func (s *S3Source) Name() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.object)
}

// Fetch implements location.Source.
func (s *S3Source) Fetch(ctx context.Context) ([]location.Record, error) {
	object, err := s.client.GetObject(ctx, s.bucket, s.object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer func() { _ = object.Close() }() // nolint:errcheck // Close in defer, error not actionable

	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, s.Name())
		}
		return nil, fmt.Errorf("failed to read object from S3: %w", err)
	}

	return location.ParseFeatureCollection(data)
}

// Publish uploads a GeoJSON collection, creating the bucket if needed.
func (s *S3Source) Publish(ctx context.Context, data []byte) error {
	if _, err := location.ParseFeatureCollection(data); err != nil {
		return fmt.Errorf("refusing to publish: %w", err)
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	_, err = s.client.PutObject(
		ctx,
		s.bucket,
		s.object,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/geo+json"},
	)
	if err != nil {
		return fmt.Errorf("failed to store object in S3: %w", err)
	}

	log.Info().Str("object", s.Name()).Int("bytes", len(data)).Msg("Published locations data")
	return nil
}
