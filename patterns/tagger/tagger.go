// Package tagger implements the tag finalization pattern: it attaches
// verified checksums to source objects as object tags, merging with any
// tags already present.
package tagger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/claims"
	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/provider"
)

// Entry is one verified checksum to attach to an object.
type Entry struct {
	Bucket    string           `json:"bucket"`
	Key       string           `json:"key"`
	Algorithm claims.Algorithm `json:"algorithm"`
	Checksum  string           `json:"checksum"`
	VersionID string           `json:"version_id,omitempty"`
}

// Request is one finalization call.
type Request struct {
	Objects []Entry `json:"objects"`
}

// EntryResult reports one tagging attempt.
type EntryResult struct {
	Bucket    string           `json:"bucket"`
	Key       string           `json:"key"`
	Algorithm claims.Algorithm `json:"algorithm,omitempty"`
	Checksum  string           `json:"checksum,omitempty"`
	VersionID string           `json:"version_id,omitempty"`
	Success   bool             `json:"success"`
	Error     string           `json:"error,omitempty"`
	TaggedAt  string           `json:"tagged_at,omitempty"`
}

// Response summarizes one finalization call. Per-entry results keep
// request order.
type Response struct {
	SuccessfulCount int           `json:"successful_count"`
	FailedCount     int           `json:"failed_count"`
	Results         []EntryResult `json:"results"`
}

// Config holds tagger settings.
type Config struct {
	// Workers bounds concurrent tagging operations per invocation.
	Workers int
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1")
	}
	return nil
}

// Tagger is the tag finalization pattern.
type Tagger struct {
	config  Config
	objects provider.ObjectStore
	metrics *provider.WorkflowMetrics

	now func() time.Time
}

// New creates a Tagger.
func New(config Config) (*Tagger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Tagger{config: config, now: time.Now}, nil
}

// BindSlots connects the object store driver to the pattern's slot.
func (t *Tagger) BindSlots(objects provider.ObjectStore) error {
	if objects == nil {
		return fmt.Errorf("object store slot is required")
	}
	t.objects = objects
	return nil
}

// SetMetrics attaches workflow metrics. Nil metrics are a no-op.
func (t *Tagger) SetMetrics(m *provider.WorkflowMetrics) { t.metrics = m }

// Process tags every requested object. Entries are independent: one
// failure never blocks the rest, and the response counts both outcomes.
func (t *Tagger) Process(ctx context.Context, req *Request) (*Response, error) {
	start := t.now()
	defer func() {
		t.metrics.ObserveDuration("tagger", t.now().Sub(start))
	}()

	if len(req.Objects) == 0 {
		return nil, &provider.ValidationError{Field: "objects", Reason: "no objects provided for tagging"}
	}

	results := make([]EntryResult, len(req.Objects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.config.Workers)

	for idx, entry := range req.Objects {
		g.Go(func() error {
			results[idx] = t.tagObject(gctx, entry)
			t.metrics.RecordTag(results[idx].Success)
			return nil
		})
	}
	_ = g.Wait()

	resp := &Response{Results: results}
	for _, r := range results {
		if r.Success {
			resp.SuccessfulCount++
		} else {
			resp.FailedCount++
		}
	}

	slog.Info("tagging finished",
		"total", len(req.Objects),
		"successful", resp.SuccessfulCount,
		"failed", resp.FailedCount)
	return resp, nil
}

// tagObject merges the checksum tag pair into the object's existing tag
// set. A failure to read the current tags fails the entry; writing a
// partial tag set would silently drop unrelated tags.
func (t *Tagger) tagObject(ctx context.Context, entry Entry) EntryResult {
	result := EntryResult{
		Bucket:    entry.Bucket,
		Key:       entry.Key,
		Algorithm: entry.Algorithm,
		Checksum:  entry.Checksum,
		VersionID: entry.VersionID,
	}

	if entry.Bucket == "" || entry.Key == "" || entry.Checksum == "" {
		result.Error = "bucket, key, and checksum are required"
		return result
	}
	if _, err := claims.ParseAlgorithm(string(entry.Algorithm)); err != nil {
		result.Error = err.Error()
		return result
	}

	tags, err := t.objects.GetObjectTags(ctx, entry.Bucket, entry.Key, entry.VersionID)
	if err != nil {
		err = provider.ClassifyStorageError(err, "object", entry.Bucket+"/"+entry.Key)
		if provider.IsNotFound(err) {
			slog.Warn("object not found for tagging",
				"bucket", entry.Bucket,
				"key", entry.Key)
			result.Error = "Object not found"
		} else {
			slog.Error("failed to read existing tags",
				"bucket", entry.Bucket,
				"key", entry.Key,
				"error", err)
			result.Error = err.Error()
		}
		return result
	}

	taggedAt := t.now().UTC().Format(time.RFC3339)
	tags[entry.Algorithm.TagKey()] = entry.Checksum
	tags[entry.Algorithm.VerifiedTagKey()] = taggedAt

	if err := t.objects.PutObjectTags(ctx, entry.Bucket, entry.Key, entry.VersionID, tags); err != nil {
		slog.Error("failed to apply tags",
			"bucket", entry.Bucket,
			"key", entry.Key,
			"error", err)
		result.Error = err.Error()
		return result
	}

	slog.Info("object tagged",
		"bucket", entry.Bucket,
		"key", entry.Key,
		"algorithm", entry.Algorithm,
		"version_id", entry.VersionID)
	result.Success = true
	result.TaggedAt = taggedAt
	return result
}
