// Package s3 offloads large OCFL binary content bytes to an S3-compatible
// object store, implementing ocfl.BlobBackend. Inventory and sidecar
// files always stay on local disk (they are read synchronously during
// Prepare); only content above a configured size threshold is
// redirected here by the filesystem adapter.
//
// Grounded on the teacher's pkg/content/store/s3 adapter: the AWS SDK v2
// client, retry classification for transient S3 errors, and NoSuchKey
// mapping to a not-found result.
package s3

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/fcrepo/ocfl-persistence/pkg/persist"
)

// Config configures the S3 offload backend.
type Config struct {
	Bucket         string `mapstructure:"bucket"`
	Prefix         string `mapstructure:"prefix"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"` // non-empty for S3-compatible (minio, etc.)
	ThresholdBytes int64  `mapstructure:"threshold_bytes"`
}

// Store is an S3-backed ocfl.BlobBackend.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// Open builds an S3 client from cfg using the default AWS credential
// chain (environment, shared config, IAM role).
func Open(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, persist.NewIOError("", "failed to load AWS config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + name
}

// Put implements ocfl.BlobBackend.
func (s *Store) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	key := s.key(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", persist.NewIOError(name, "s3 PutObject failed", err)
	}
	return key, nil
}

// Get implements ocfl.BlobBackend.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, persist.NewNotFoundError(key, "s3 object not found")
		}
		return nil, persist.NewIOError(key, "s3 GetObject failed", err)
	}
	return out.Body, nil
}

// Delete implements ocfl.BlobBackend.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFoundError(err) {
		return persist.NewIOError(key, "s3 DeleteObject failed", err)
	}
	return nil
}

// isNotFoundError reports whether err indicates the S3 object is absent.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}

