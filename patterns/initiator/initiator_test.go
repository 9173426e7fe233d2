package initiator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/claims"
	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/drivers/memstore"
	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/provider"
)

type fixture struct {
	initiator *Initiator
	objects   *memstore.ObjectStore
	batch     *memstore.BatchCompute
	tracking  *memstore.TrackingStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	init, err := New(Config{ManifestBucket: "tracking-bucket"})
	require.NoError(t, err)

	f := &fixture{
		initiator: init,
		objects:   memstore.NewObjectStore(),
		batch:     memstore.NewBatchCompute(),
		tracking:  memstore.NewTrackingStore(),
	}
	require.NoError(t, init.BindSlots(f.objects, f.batch, f.tracking))
	return f
}

func TestProcess_CreatesClaimsAndJobs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	resp, err := f.initiator.Process(ctx, &Request{
		Bucket: "source-bucket",
		Keys: []ObjectInput{
			{Key: "data/a.bin", SHA256: "aa11"},
			{Key: "data/b.bin", VersionID: "v7"},
			{Key: "data/c.bin"},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, 3, resp.ObjectCount)
	require.Len(t, resp.Jobs, 2)
	for _, job := range resp.Jobs {
		assert.Equal(t, "created", job.Status)
		assert.NotEmpty(t, job.JobID)
	}

	// One manifest, three rows, provenance metadata.
	body, err := f.objects.Get(ctx, "tracking-bucket", resp.ManifestKey)
	require.NoError(t, err)
	entries, err := claims.ParseManifestCSV(body)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "v7", entries[1].VersionID)
	assert.Equal(t, "3", f.objects.Metadata("tracking-bucket", resp.ManifestKey)["object-count"])
	assert.Equal(t, "checksum-initiator", f.objects.Metadata("tracking-bucket", resp.ManifestKey)["generated-by"])

	// Two claims per object, all stamped with the same request ID.
	records := f.tracking.Claims()
	require.Len(t, records, 6)
	for _, r := range records {
		assert.Equal(t, resp.RequestID, r.RequestID)
		assert.Equal(t, claims.StatusClaimed, r.Status)
		assert.NotEqual(t, claims.UnknownJobID, r.JobID)
		assert.NotZero(t, r.TTL)
	}

	// Provided checksum lands only on the matching algorithm's record.
	sha, err := f.tracking.GetClaim(ctx, claims.BuildCompositeKey("source-bucket", "data/a.bin", claims.SHA256))
	require.NoError(t, err)
	assert.Equal(t, "aa11", sha.ProvidedChecksum)
	md5, err := f.tracking.GetClaim(ctx, claims.BuildCompositeKey("source-bucket", "data/a.bin", claims.MD5))
	require.NoError(t, err)
	assert.Empty(t, md5.ProvidedChecksum)
}

func TestProcess_ReinvocationOverwritesClaims(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := &Request{Bucket: "source-bucket", Keys: []ObjectInput{{Key: "a"}, {Key: "b"}}}

	first, err := f.initiator.Process(ctx, req)
	require.NoError(t, err)
	second, err := f.initiator.Process(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.RequestID, second.RequestID)

	// Same composite keys, so the second run replaces the first's claims.
	records := f.tracking.Claims()
	require.Len(t, records, 4)
	for _, r := range records {
		assert.Equal(t, second.RequestID, r.RequestID)
	}
	assert.Len(t, f.batch.SubmittedJobs(), 4)
}

func TestProcess_SubmissionFailureLeavesUnknownJobID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.batch.FailSubmissions(claims.MD5, errors.New("throttled"))

	resp, err := f.initiator.Process(ctx, &Request{
		Bucket: "source-bucket",
		Keys:   []ObjectInput{{Key: "a"}},
	})
	require.NoError(t, err, "one failed submission must not fail the request")

	var created, failed int
	for _, job := range resp.Jobs {
		switch job.Status {
		case "created":
			created++
		case "failed":
			failed++
			assert.Equal(t, claims.MD5, job.Algorithm)
			assert.Contains(t, job.Error, "throttled")
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, failed)

	md5, err := f.tracking.GetClaim(ctx, claims.BuildCompositeKey("source-bucket", "a", claims.MD5))
	require.NoError(t, err)
	assert.Equal(t, claims.UnknownJobID, md5.JobID)
	sha, err := f.tracking.GetClaim(ctx, claims.BuildCompositeKey("source-bucket", "a", claims.SHA256))
	require.NoError(t, err)
	assert.NotEqual(t, claims.UnknownJobID, sha.JobID)
}

func TestProcess_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := []struct {
		name string
		req  *Request
	}{
		{"missing bucket", &Request{Keys: []ObjectInput{{Key: "a"}}}},
		{"no keys", &Request{Bucket: "b"}},
		{"empty key", &Request{Bucket: "b", Keys: []ObjectInput{{Key: ""}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.initiator.Process(ctx, tc.req)
			var vErr *provider.ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestObjectInput_UnmarshalBothShapes(t *testing.T) {
	var req Request
	err := json.Unmarshal([]byte(`{
		"bucket": "source-bucket",
		"keys": [
			"plain.txt",
			{"key": "versioned.txt", "version_id": "v1", "sha256": "aa", "md5": "bb"}
		]
	}`), &req)
	require.NoError(t, err)
	require.Len(t, req.Keys, 2)
	assert.Equal(t, ObjectInput{Key: "plain.txt"}, req.Keys[0])
	assert.Equal(t, ObjectInput{Key: "versioned.txt", VersionID: "v1", SHA256: "aa", MD5: "bb"}, req.Keys[1])
}

func TestManifestKeyIsTimestamped(t *testing.T) {
	f := newFixture(t)
	f.initiator.now = func() time.Time {
		return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	}

	resp, err := f.initiator.Process(context.Background(), &Request{
		Bucket: "source-bucket",
		Keys:   []ObjectInput{{Key: "a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "batch-jobs/manifests/manifest-20260115-120000.csv", resp.ManifestKey)
}
