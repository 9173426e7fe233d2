// Package s3 implements the provider.ObjectStore interface on AWS S3.
// Compatible with AWS S3, MinIO, and other S3-compatible services.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/provider"
)

// Store is the S3-backed object store driver.
type Store struct {
	client *s3.Client
	cfg    provider.S3Config
	region string
}

// New creates a Store from workflow configuration. Credentials fall
// back to the default chain when not set explicitly.
func New(ctx context.Context, cfg *provider.Config) (*Store, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.S3.AccessKeyID != "" && cfg.S3.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.S3.AccessKeyID,
				cfg.S3.SecretAccessKey,
				"",
			),
		))
	}
	opts = append(opts, config.WithRegion(cfg.Region))

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			scheme := "https"
			if !cfg.S3.UseSSL {
				scheme = "http"
			}
			o.BaseEndpoint = aws.String(fmt.Sprintf("%s://%s", scheme, cfg.S3.Endpoint))
		}
		o.UsePathStyle = cfg.S3.ForcePathStyle
	})

	slog.Info("s3 driver initialized",
		"endpoint", cfg.S3.Endpoint,
		"region", cfg.Region,
		"force_path_style", cfg.S3.ForcePathStyle)

	return &Store{client: client, cfg: cfg.S3, region: cfg.Region}, nil
}

// NewWithClient wraps an existing S3 client (used by tests).
func NewWithClient(client *s3.Client) *Store {
	return &Store{client: client}
}

// Put stores an object with a content type and user metadata.
func (s *Store) Put(ctx context.Context, bucket, key string, data []byte, contentType string, metadata map[string]string) error {
	input := &s3.PutObjectInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(data),
		Metadata: metadata,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}

	slog.Debug("object stored",
		"bucket", bucket,
		"key", key,
		"size", len(data))

	return nil
}

// Get retrieves an object's full body.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, provider.ClassifyStorageError(err, "object", bucket+"/"+key)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	slog.Debug("object retrieved",
		"bucket", bucket,
		"key", key,
		"size", len(data))

	return data, nil
}

// Head retrieves object metadata without downloading. The ETag is
// returned without surrounding quotes.
func (s *Store) Head(ctx context.Context, bucket, key string) (*provider.ObjectMetadata, error) {
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, provider.ClassifyStorageError(err, "object", bucket+"/"+key)
	}

	metadata := &provider.ObjectMetadata{
		Size: aws.ToInt64(result.ContentLength),
		ETag: strings.Trim(aws.ToString(result.ETag), `"`),
	}
	if result.ContentType != nil {
		metadata.ContentType = *result.ContentType
	}
	if result.LastModified != nil {
		metadata.LastModified = result.LastModified.Unix()
	}

	return metadata, nil
}

// Exists checks if an object exists.
func (s *Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		if provider.IsNotFound(provider.ClassifyStorageError(err, "object", key)) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}

	return true, nil
}

// GetObjectTags fetches an object's tag set, for the exact version when
// versionID is non-empty.
func (s *Store) GetObjectTags(ctx context.Context, bucket, key, versionID string) (map[string]string, error) {
	input := &s3.GetObjectTaggingInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if versionID != "" {
		input.VersionId = aws.String(versionID)
	}

	result, err := s.client.GetObjectTagging(ctx, input)
	if err != nil {
		return nil, provider.ClassifyStorageError(err, "object", bucket+"/"+key)
	}

	tags := make(map[string]string, len(result.TagSet))
	for _, tag := range result.TagSet {
		tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return tags, nil
}

// PutObjectTags replaces an object's tag set.
func (s *Store) PutObjectTags(ctx context.Context, bucket, key, versionID string, tags map[string]string) error {
	tagSet := make([]types.Tag, 0, len(tags))
	for k, v := range tags {
		tagSet = append(tagSet, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}

	input := &s3.PutObjectTaggingInput{
		Bucket:  aws.String(bucket),
		Key:     aws.String(key),
		Tagging: &types.Tagging{TagSet: tagSet},
	}
	if versionID != "" {
		input.VersionId = aws.String(versionID)
	}

	if _, err := s.client.PutObjectTagging(ctx, input); err != nil {
		return provider.ClassifyStorageError(err, "object", bucket+"/"+key)
	}

	slog.Debug("object tags stored",
		"bucket", bucket,
		"key", key,
		"tag_count", len(tags))

	return nil
}

// Health verifies connectivity by listing buckets.
func (s *Store) Health(ctx context.Context) (*provider.HealthStatus, error) {
	_, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return &provider.HealthStatus{
			Status:  provider.HealthUnhealthy,
			Message: fmt.Sprintf("failed to connect to S3: %v", err),
			Details: map[string]string{
				"endpoint": s.cfg.Endpoint,
				"region":   s.region,
			},
		}, nil
	}

	return &provider.HealthStatus{
		Status:  provider.HealthHealthy,
		Message: "connected to S3",
		Details: map[string]string{
			"endpoint": s.cfg.Endpoint,
			"region":   s.region,
		},
	}, nil
}

// GetClient returns the underlying S3 client for advanced operations
// (e.g. bucket management in tests).
func (s *Store) GetClient() *s3.Client {
	return s.client
}

var _ provider.ObjectStore = (*Store)(nil)
