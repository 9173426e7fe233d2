// Package provider defines the narrow interfaces each external
// dependency is consumed through, the workflow configuration, the error
// taxonomy, and shared observability plumbing. Drivers under
// pkg/drivers implement the interfaces; patterns bind them as slots.
package provider

import (
	"context"

	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/claims"
)

// ObjectMetadata describes an object without its body.
type ObjectMetadata struct {
	Size         int64
	ContentType  string
	LastModified int64
	ETag         string
}

// ObjectStore is the object storage dependency: manifests and reports
// live here, and finalized checksums are attached as object tags.
type ObjectStore interface {
	// Put stores an object with a content type and user metadata.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string, metadata map[string]string) error
	// Get retrieves an object's full body.
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	// Head retrieves object metadata without the body.
	Head(ctx context.Context, bucket, key string) (*ObjectMetadata, error)
	// Exists checks object existence.
	Exists(ctx context.Context, bucket, key string) (bool, error)
	// GetObjectTags fetches the tag set for an object, or the given
	// version when versionID is non-empty. Returns a NotFoundError when
	// the object does not exist.
	GetObjectTags(ctx context.Context, bucket, key, versionID string) (map[string]string, error)
	// PutObjectTags replaces the tag set for an object or version.
	PutObjectTags(ctx context.Context, bucket, key, versionID string, tags map[string]string) error
}

// TrackingStore is the durable claim-record store. Records are written
// once by the initiator, partially updated by the reconciler, and never
// deleted by any component.
type TrackingStore interface {
	// PutClaims writes a batch of claim records. Writes are batched but
	// not atomic; a partial failure is surfaced, not retried.
	PutClaims(ctx context.Context, records []claims.ClaimRecord) error
	// GetClaim fetches one record by composite key. Returns a
	// NotFoundError when absent or expired.
	GetClaim(ctx context.Context, key claims.CompositeKey) (*claims.ClaimRecord, error)
	// UpdateClaim applies a partial update to one record. Immutable
	// fields (request_id, claimed_at, provided_checksum) are never
	// touched, and empty update fields never overwrite stored values.
	UpdateClaim(ctx context.Context, key claims.CompositeKey, update claims.ClaimUpdate) error
}

// JobSpec names everything the batch compute service needs to run one
// per-algorithm checksum job over a manifest.
type JobSpec struct {
	Algorithm      claims.Algorithm
	ManifestBucket string
	ManifestKey    string
	ManifestETag   string
	Description    string
}

// BatchCompute submits massively parallel checksum jobs. Submission is
// at-least-once; a failure is surfaced immediately, never retried here.
type BatchCompute interface {
	// SubmitChecksumJob creates one batch job and returns its job ID.
	SubmitChecksumJob(ctx context.Context, spec JobSpec) (string, error)
}

// HealthState is a coarse driver health classification.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// HealthStatus reports a driver's connectivity to its backing service.
type HealthStatus struct {
	Status  HealthState
	Message string
	Details map[string]string
}
