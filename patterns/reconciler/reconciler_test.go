package reconciler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/claims"
	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/drivers/memstore"
)

const reportBucket = "tracking-bucket"

type fixture struct {
	reconciler *Reconciler
	objects    *memstore.ObjectStore
	tracking   *memstore.TrackingStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		reconciler: New(),
		objects:    memstore.NewObjectStore(),
		tracking:   memstore.NewTrackingStore(),
	}
	require.NoError(t, f.reconciler.BindSlots(f.objects, f.tracking))
	return f
}

func (f *fixture) seedClaim(t *testing.T, bucket, key string, alg claims.Algorithm) {
	t.Helper()
	record := claims.ClaimRecord{
		ObjectKey:        claims.BuildCompositeKey(bucket, key, alg).String(),
		Bucket:           bucket,
		Key:              key,
		Algorithm:        alg,
		Status:           claims.StatusClaimed,
		RequestID:        "req-1",
		JobID:            "job-1",
		ProvidedChecksum: "expected",
		ClaimedAt:        "2026-01-15T12:00:00Z",
	}
	require.NoError(t, f.tracking.PutClaims(context.Background(), []claims.ClaimRecord{record}))
}

func (f *fixture) seedReport(t *testing.T, key, content string) {
	t.Helper()
	require.NoError(t, f.objects.Put(context.Background(), reportBucket, key, []byte(content), "text/csv", nil))
}

func s3Event(key string) *Event {
	var record EventRecord
	record.EventSource = "aws:s3"
	record.S3.Bucket.Name = reportBucket
	record.S3.Object.Key = key
	return &Event{Records: []EventRecord{record}}
}

func TestProcessEvent_SucceededRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedClaim(t, "source-bucket", "data/file.bin", claims.SHA256)

	report := `source-bucket,data/file.bin,,succeeded,200,,"{""checksumAlgorithm"":""SHA256"",""checksum_hex"":""ab12"",""checksum_base64"":""qxI="",""ETag"":""etag1""}"` + "\n"
	reportKey := "batch-jobs/reports/sha256/job-1/results/result.csv"
	f.seedReport(t, reportKey, report)

	results := f.reconciler.ProcessEvent(ctx, s3Event(reportKey))
	require.Len(t, results, 1)
	assert.Equal(t, "processed", results[0].Status)
	assert.Equal(t, claims.SHA256, results[0].Algorithm)
	assert.Equal(t, 1, results[0].TotalRecords)
	assert.Equal(t, 1, results[0].UpdatedRecords)
	assert.Equal(t, []string{"req-1"}, results[0].RequestIDs)

	record, err := f.tracking.GetClaim(ctx, claims.BuildCompositeKey("source-bucket", "data/file.bin", claims.SHA256))
	require.NoError(t, err)
	assert.Equal(t, claims.StatusSucceeded, record.Status)
	assert.Equal(t, "ab12", record.Checksum)
	assert.NotEmpty(t, record.ProcessedAt)
	// Immutable fields survive reconciliation.
	assert.Equal(t, "req-1", record.RequestID)
	assert.Equal(t, "expected", record.ProvidedChecksum)
	assert.Equal(t, "2026-01-15T12:00:00Z", record.ClaimedAt)
}

func TestProcessEvent_FailedRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedClaim(t, "source-bucket", "data/file.bin", claims.MD5)

	report := `source-bucket,data/file.bin,,failed,403,AccessDenied,"{""error"":""Access Denied""}"` + "\n"
	reportKey := "batch-jobs/reports/md5/job-2/results/result.csv"
	f.seedReport(t, reportKey, report)

	results := f.reconciler.ProcessEvent(ctx, s3Event(reportKey))
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].UpdatedRecords)

	record, err := f.tracking.GetClaim(ctx, claims.BuildCompositeKey("source-bucket", "data/file.bin", claims.MD5))
	require.NoError(t, err)
	assert.Equal(t, claims.StatusFailed, record.Status)
	assert.Equal(t, "Access Denied", record.Error)
	assert.Equal(t, "failed", record.TaskStatus)
	assert.Empty(t, record.Checksum)
}

func TestProcessEvent_IdempotentReplay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedClaim(t, "source-bucket", "data/file.bin", claims.SHA256)

	report := `source-bucket,data/file.bin,,succeeded,200,,"{""checksumAlgorithm"":""SHA256"",""checksum_hex"":""ab12""}"` + "\n"
	reportKey := "batch-jobs/reports/sha256/job-1/results/result.csv"
	f.seedReport(t, reportKey, report)

	f.reconciler.ProcessEvent(ctx, s3Event(reportKey))
	first, err := f.tracking.GetClaim(ctx, claims.BuildCompositeKey("source-bucket", "data/file.bin", claims.SHA256))
	require.NoError(t, err)

	f.reconciler.now = func() time.Time { return time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC) }
	f.reconciler.ProcessEvent(ctx, s3Event(reportKey))
	second, err := f.tracking.GetClaim(ctx, claims.BuildCompositeKey("source-bucket", "data/file.bin", claims.SHA256))
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Checksum, second.Checksum)
	assert.Equal(t, first.RequestID, second.RequestID)
	assert.Equal(t, "2026-01-16T00:00:00Z", second.ProcessedAt)
}

func TestProcessEvent_MissingClaimSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedClaim(t, "source-bucket", "known.bin", claims.SHA256)

	report := `source-bucket,known.bin,,succeeded,200,,"{""checksumAlgorithm"":""SHA256"",""checksum_hex"":""aa""}"` + "\n" +
		`source-bucket,unknown.bin,,succeeded,200,,"{""checksumAlgorithm"":""SHA256"",""checksum_hex"":""bb""}"` + "\n"
	reportKey := "batch-jobs/reports/sha256/job-1/results/result.csv"
	f.seedReport(t, reportKey, report)

	results := f.reconciler.ProcessEvent(ctx, s3Event(reportKey))
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].TotalRecords)
	assert.Equal(t, 1, results[0].UpdatedRecords)
}

func TestProcessEvent_UnknownAlgorithmSkipped(t *testing.T) {
	f := newFixture(t)

	results := f.reconciler.ProcessEvent(context.Background(),
		s3Event("batch-jobs/reports/crc32/job-1/results/result.csv"))
	require.Len(t, results, 1)
	assert.Equal(t, "skipped", results[0].Status)
	assert.Equal(t, "unknown_algorithm", results[0].Reason)
}

func TestProcessEvent_MissingReportIsError(t *testing.T) {
	f := newFixture(t)

	results := f.reconciler.ProcessEvent(context.Background(),
		s3Event("batch-jobs/reports/sha256/job-9/results/missing.csv"))
	require.Len(t, results, 1)
	assert.Equal(t, "error", results[0].Status)
	assert.Equal(t, reportBucket, results[0].Bucket)
	assert.NotEmpty(t, results[0].Error)
}

func TestProcessEvent_NonS3RecordsIgnored(t *testing.T) {
	f := newFixture(t)

	event := &Event{Records: []EventRecord{{EventSource: "aws:sns"}}}
	results := f.reconciler.ProcessEvent(context.Background(), event)
	assert.Empty(t, results)
}

func TestProcessEvent_URLEncodedKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedClaim(t, "source-bucket", "data/my file.bin", claims.SHA256)

	report := `source-bucket,data/my+file.bin,,succeeded,200,,"{""checksumAlgorithm"":""SHA256"",""checksum_hex"":""cc""}"` + "\n"
	reportKey := "batch-jobs/reports/sha256/job-1/results/result.csv"
	f.seedReport(t, reportKey, report)

	results := f.reconciler.ProcessEvent(ctx, s3Event(reportKey))
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].UpdatedRecords)

	record, err := f.tracking.GetClaim(ctx, claims.BuildCompositeKey("source-bucket", "data/my file.bin", claims.SHA256))
	require.NoError(t, err)
	assert.Equal(t, "cc", record.Checksum)
}

func TestProcessEvent_MultipleObjectsDistinctRequestIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var report string
	for i, reqID := range []string{"req-b", "req-a"} {
		key := fmt.Sprintf("file-%d.bin", i)
		record := claims.ClaimRecord{
			ObjectKey: claims.BuildCompositeKey("source-bucket", key, claims.SHA256).String(),
			Bucket:    "source-bucket",
			Key:       key,
			Algorithm: claims.SHA256,
			Status:    claims.StatusClaimed,
			RequestID: reqID,
		}
		require.NoError(t, f.tracking.PutClaims(ctx, []claims.ClaimRecord{record}))
		report += fmt.Sprintf(`source-bucket,%s,,succeeded,200,,"{""checksumAlgorithm"":""SHA256"",""checksum_hex"":""dd""}"`, key) + "\n"
	}
	reportKey := "batch-jobs/reports/sha256/job-1/results/result.csv"
	f.seedReport(t, reportKey, report)

	results := f.reconciler.ProcessEvent(ctx, s3Event(reportKey))
	require.Len(t, results, 1)
	assert.Equal(t, []string{"req-a", "req-b"}, results[0].RequestIDs)
}
