// Package reconciler implements the report reconciliation pattern: it
// reacts to report objects landing in the tracking bucket, parses them,
// and folds each row's outcome into the matching claim record.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/claims"
	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/provider"
)

// Event is the notification payload delivered when report objects are
// created. Only records with an aws:s3 event source are handled.
type Event struct {
	Records []EventRecord `json:"Records"`
}

// EventRecord is one object-created notification.
type EventRecord struct {
	EventSource string `json:"eventSource"`
	S3          struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key string `json:"key"`
		} `json:"object"`
	} `json:"s3"`
}

// Result summarizes the handling of one report object.
type Result struct {
	Key            string           `json:"key"`
	Algorithm      claims.Algorithm `json:"algorithm,omitempty"`
	Status         string           `json:"status"`
	Reason         string           `json:"reason,omitempty"`
	Error          string           `json:"error,omitempty"`
	Bucket         string           `json:"bucket,omitempty"`
	TotalRecords   int              `json:"total_records,omitempty"`
	UpdatedRecords int              `json:"updated_records,omitempty"`
	RequestIDs     []string         `json:"request_ids,omitempty"`
}

// Reconciler is the report reconciliation pattern.
type Reconciler struct {
	objects provider.ObjectStore
	claims  provider.TrackingStore
	metrics *provider.WorkflowMetrics

	now func() time.Time
}

// New creates a Reconciler.
func New() *Reconciler {
	return &Reconciler{now: time.Now}
}

// BindSlots connects driver implementations to the pattern's slots.
func (r *Reconciler) BindSlots(objects provider.ObjectStore, tracking provider.TrackingStore) error {
	if objects == nil || tracking == nil {
		return fmt.Errorf("both slots (object store, tracking store) are required")
	}
	r.objects = objects
	r.claims = tracking
	return nil
}

// SetMetrics attaches workflow metrics. Nil metrics are a no-op.
func (r *Reconciler) SetMetrics(m *provider.WorkflowMetrics) { r.metrics = m }

// ProcessEvent handles every S3 record in a notification. Records from
// other event sources are ignored without a result. A failure on one
// report never aborts the remaining records.
func (r *Reconciler) ProcessEvent(ctx context.Context, event *Event) []Result {
	start := r.now()
	defer func() {
		r.metrics.ObserveDuration("reconciler", r.now().Sub(start))
	}()

	var results []Result
	for _, record := range event.Records {
		if record.EventSource != "aws:s3" {
			continue
		}
		result := r.processReport(ctx, record.S3.Bucket.Name, claims.DecodeObjectKey(record.S3.Object.Key))
		r.metrics.RecordReport(result.Status, result.TotalRecords, result.UpdatedRecords)
		results = append(results, result)
	}
	return results
}

// processReport downloads one report object and applies its rows.
func (r *Reconciler) processReport(ctx context.Context, bucket, key string) Result {
	slog.Info("processing report", "bucket", bucket, "key", key)

	algorithm, ok := claims.AlgorithmFromReportKey(key)
	if !ok {
		slog.Warn("cannot determine algorithm from report key", "key", key)
		return Result{Key: key, Status: "skipped", Reason: "unknown_algorithm"}
	}

	content, err := r.objects.Get(ctx, bucket, key)
	if err != nil {
		err = provider.ClassifyStorageError(err, "report", bucket+"/"+key)
		slog.Error("failed to fetch report",
			"bucket", bucket,
			"key", key,
			"error", err)
		return Result{Key: key, Status: "error", Error: err.Error(), Bucket: bucket}
	}

	entries := claims.ParseReport(content, algorithm)
	updated, requestIDs := r.applyEntries(ctx, entries, algorithm)

	slog.Info("report reconciled",
		"key", key,
		"algorithm", algorithm,
		"total_records", len(entries),
		"updated_records", updated)
	return Result{
		Key:            key,
		Algorithm:      algorithm,
		Status:         "processed",
		TotalRecords:   len(entries),
		UpdatedRecords: updated,
		RequestIDs:     requestIDs,
	}
}

// applyEntries folds report rows into their claim records. Rows without
// a matching claim are skipped with a warning; updates are idempotent,
// so replaying a report converges to the same state.
func (r *Reconciler) applyEntries(ctx context.Context, entries []claims.ReportEntry, algorithm claims.Algorithm) (int, []string) {
	processedAt := r.now().UTC().Format(time.RFC3339)
	updated := 0
	requestIDs := make(map[string]struct{})

	for _, entry := range entries {
		key := claims.BuildCompositeKey(entry.Bucket, entry.Key, algorithm)

		record, err := r.claims.GetClaim(ctx, key)
		if err != nil {
			if provider.IsNotFound(err) {
				slog.Warn("no claim record for report row", "object_key", key.String())
			} else {
				slog.Error("failed to fetch claim record",
					"object_key", key.String(),
					"error", err)
			}
			continue
		}
		if record.RequestID != "" {
			requestIDs[record.RequestID] = struct{}{}
		}

		update := claims.ClaimUpdate{
			Status:      decideStatus(&entry),
			ProcessedAt: processedAt,
			Checksum:    entry.Checksum,
			TaskStatus:  entry.TaskStatus,
			Error:       entry.Error,
		}
		if err := r.claims.UpdateClaim(ctx, key, update); err != nil {
			slog.Error("failed to update claim record",
				"object_key", key.String(),
				"error", err)
			continue
		}
		updated++
	}

	ids := make([]string, 0, len(requestIDs))
	for id := range requestIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return updated, ids
}

// decideStatus maps one report row to a claim status: succeeded only
// when the task succeeded and produced a checksum, failed on a failed
// task, processed otherwise.
func decideStatus(entry *claims.ReportEntry) claims.Status {
	switch {
	case entry.Succeeded() && entry.Checksum != "":
		return claims.StatusSucceeded
	case strings.EqualFold(entry.TaskStatus, "failed"):
		return claims.StatusFailed
	default:
		return claims.StatusProcessed
	}
}
