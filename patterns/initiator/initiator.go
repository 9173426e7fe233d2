// Package initiator implements the job initiation pattern: it turns a
// list of objects into a CSV manifest, submits one batch checksum job
// per algorithm, and writes a claim record per (object, algorithm) pair.
package initiator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/claims"
	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/provider"
)

// ObjectInput is one requested object. The JSON form is either a bare
// key string or an object carrying a version and expected checksums.
type ObjectInput struct {
	Key       string `json:"key"`
	VersionID string `json:"version_id,omitempty"`
	MD5       string `json:"md5,omitempty"`
	SHA256    string `json:"sha256,omitempty"`
}

// UnmarshalJSON accepts both input shapes.
func (o *ObjectInput) UnmarshalJSON(data []byte) error {
	var key string
	if err := json.Unmarshal(data, &key); err == nil {
		*o = ObjectInput{Key: key}
		return nil
	}

	type objectInput ObjectInput
	var full objectInput
	if err := json.Unmarshal(data, &full); err != nil {
		return fmt.Errorf("object entry must be a key string or an object: %w", err)
	}
	*o = ObjectInput(full)
	return nil
}

// providedChecksum returns the caller's expected checksum for the
// algorithm, if any.
func (o *ObjectInput) providedChecksum(alg claims.Algorithm) string {
	switch alg {
	case claims.MD5:
		return o.MD5
	case claims.SHA256:
		return o.SHA256
	}
	return ""
}

// Request is one initiation call: a source bucket and the keys to
// checksum within it.
type Request struct {
	Bucket string        `json:"bucket"`
	Keys   []ObjectInput `json:"keys"`
}

// JobResult describes one per-algorithm submission attempt.
type JobResult struct {
	Algorithm claims.Algorithm `json:"algorithm"`
	JobID     string           `json:"job_id,omitempty"`
	Error     string           `json:"error,omitempty"`
	Status    string           `json:"status"`
}

// Response summarizes one initiation: the request ID stamped on every
// claim record, the manifest written, and both submission outcomes.
type Response struct {
	RequestID   string      `json:"request_id"`
	ManifestKey string      `json:"manifest_key"`
	ObjectCount int         `json:"object_count"`
	Jobs        []JobResult `json:"jobs"`
}

// Config holds initiator settings.
type Config struct {
	ManifestBucket string
	ClaimTTL       time.Duration
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.ManifestBucket == "" {
		return fmt.Errorf("manifest bucket is required")
	}
	if c.ClaimTTL == 0 {
		c.ClaimTTL = claims.DefaultClaimTTL
	}
	return nil
}

// Initiator is the job initiation pattern. Driver slots must be bound
// via BindSlots before Process is called.
type Initiator struct {
	config  Config
	objects provider.ObjectStore
	batch   provider.BatchCompute
	claims  provider.TrackingStore
	metrics *provider.WorkflowMetrics

	// now is the manifest/claim timestamp clock; tests may override it.
	now func() time.Time
}

// New creates an Initiator.
func New(config Config) (*Initiator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Initiator{config: config, now: time.Now}, nil
}

// BindSlots connects driver implementations to the pattern's slots.
func (i *Initiator) BindSlots(objects provider.ObjectStore, batch provider.BatchCompute, tracking provider.TrackingStore) error {
	if objects == nil || batch == nil || tracking == nil {
		return fmt.Errorf("all slots (object store, batch compute, tracking store) are required")
	}
	i.objects = objects
	i.batch = batch
	i.claims = tracking
	return nil
}

// SetMetrics attaches workflow metrics. Nil metrics are a no-op.
func (i *Initiator) SetMetrics(m *provider.WorkflowMetrics) { i.metrics = m }

// Process runs one initiation end to end:
//
//  1. Validate the request and mint a request ID.
//  2. Write the CSV manifest with its provenance metadata.
//  3. Submit one batch job per algorithm; a failed submission does not
//     block the other algorithm.
//  4. Write 2N claim records, stamping UnknownJobID on the records of
//     any algorithm whose submission failed.
//
// Claims are written after all submission attempts so every record
// carries its final job association.
func (i *Initiator) Process(ctx context.Context, req *Request) (*Response, error) {
	start := i.now()
	defer func() {
		i.metrics.ObserveDuration("initiator", i.now().Sub(start))
	}()

	if req.Bucket == "" || len(req.Keys) == 0 {
		return nil, &provider.ValidationError{Field: "bucket/keys", Reason: "request must contain 'bucket' and 'keys'"}
	}
	for idx, key := range req.Keys {
		if key.Key == "" {
			return nil, &provider.ValidationError{Field: fmt.Sprintf("keys[%d]", idx), Reason: "key must not be empty"}
		}
	}

	requestID := uuid.New().String()
	slog.Info("starting initiation",
		"request_id", requestID,
		"bucket", req.Bucket,
		"object_count", len(req.Keys))

	manifestKey, manifestETag, err := i.writeManifest(ctx, req)
	if err != nil {
		return nil, err
	}

	jobs := i.submitJobs(ctx, manifestKey, manifestETag, len(req.Keys))

	if err := i.writeClaims(ctx, req, jobs, requestID); err != nil {
		return nil, err
	}

	return &Response{
		RequestID:   requestID,
		ManifestKey: manifestKey,
		ObjectCount: len(req.Keys),
		Jobs:        jobs,
	}, nil
}

// writeManifest uploads the CSV manifest and returns its key and ETag.
func (i *Initiator) writeManifest(ctx context.Context, req *Request) (string, string, error) {
	now := i.now().UTC()

	entries := make([]claims.ManifestEntry, len(req.Keys))
	for idx, key := range req.Keys {
		entries[idx] = claims.ManifestEntry{
			Bucket:    req.Bucket,
			Key:       key.Key,
			VersionID: key.VersionID,
		}
	}
	body, err := claims.WriteManifestCSV(entries)
	if err != nil {
		return "", "", err
	}

	manifestKey := claims.ManifestKey(now)
	metadata := map[string]string{
		"generated-by": "checksum-initiator",
		"object-count": fmt.Sprintf("%d", len(entries)),
		"created-at":   now.Format(time.RFC3339),
	}
	if err := i.objects.Put(ctx, i.config.ManifestBucket, manifestKey, body, "text/csv", metadata); err != nil {
		return "", "", fmt.Errorf("failed to upload manifest: %w", err)
	}

	meta, err := i.objects.Head(ctx, i.config.ManifestBucket, manifestKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to read back manifest metadata: %w", err)
	}

	slog.Info("manifest generated",
		"bucket", i.config.ManifestBucket,
		"key", manifestKey,
		"etag", meta.ETag)
	return manifestKey, meta.ETag, nil
}

// submitJobs creates one batch job per algorithm concurrently. Each
// result lands in its own slice slot; a failure is recorded, never
// returned, so the other algorithm's job still runs.
func (i *Initiator) submitJobs(ctx context.Context, manifestKey, manifestETag string, objectCount int) []JobResult {
	algorithms := claims.Algorithms()
	results := make([]JobResult, len(algorithms))

	g, gctx := errgroup.WithContext(ctx)
	for idx, alg := range algorithms {
		g.Go(func() error {
			spec := provider.JobSpec{
				Algorithm:      alg,
				ManifestBucket: i.config.ManifestBucket,
				ManifestKey:    manifestKey,
				ManifestETag:   manifestETag,
				Description: fmt.Sprintf("%s checksum computation job - %s",
					alg, i.now().UTC().Format(time.RFC3339)),
			}

			jobID, err := i.batch.SubmitChecksumJob(gctx, spec)
			if err != nil {
				slog.Error("batch job submission failed",
					"algorithm", alg,
					"error", err)
				i.metrics.RecordJobSubmission(string(alg), false)
				results[idx] = JobResult{Algorithm: alg, Error: err.Error(), Status: "failed"}
				return nil
			}

			i.metrics.RecordJobSubmission(string(alg), true)
			results[idx] = JobResult{Algorithm: alg, JobID: jobID, Status: "created"}
			return nil
		})
	}
	// Submissions never return errors; Wait only orders the writes.
	_ = g.Wait()

	slog.Info("batch jobs submitted",
		"manifest", manifestKey,
		"object_count", objectCount)
	return results
}

// writeClaims writes one claim record per (object, algorithm) pair.
func (i *Initiator) writeClaims(ctx context.Context, req *Request, jobs []JobResult, requestID string) error {
	now := i.now().UTC()
	claimedAt := now.Format(time.RFC3339)
	ttl := now.Add(i.config.ClaimTTL).Unix()

	jobIDs := make(map[claims.Algorithm]string)
	for _, job := range jobs {
		if job.Status == "created" {
			jobIDs[job.Algorithm] = job.JobID
		}
	}

	records := make([]claims.ClaimRecord, 0, len(req.Keys)*len(claims.Algorithms()))
	for _, key := range req.Keys {
		for _, alg := range claims.Algorithms() {
			jobID, ok := jobIDs[alg]
			if !ok {
				jobID = claims.UnknownJobID
			}
			records = append(records, claims.ClaimRecord{
				ObjectKey:        claims.BuildCompositeKey(req.Bucket, key.Key, alg).String(),
				Bucket:           req.Bucket,
				Key:              key.Key,
				Algorithm:        alg,
				VersionID:        key.VersionID,
				Status:           claims.StatusClaimed,
				RequestID:        requestID,
				JobID:            jobID,
				ProvidedChecksum: key.providedChecksum(alg),
				ClaimedAt:        claimedAt,
				TTL:              ttl,
			})
		}
	}

	if err := i.claims.PutClaims(ctx, records); err != nil {
		return fmt.Errorf("failed to write claim records: %w", err)
	}

	for _, alg := range claims.Algorithms() {
		i.metrics.RecordClaimsCreated(string(alg), len(req.Keys))
	}
	slog.Info("claim records created",
		"request_id", requestID,
		"count", len(records))
	return nil
}
