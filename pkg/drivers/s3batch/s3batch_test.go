package s3batch

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3control"
	"github.com/aws/aws-sdk-go-v2/service/s3control/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/claims"
	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/provider"
)

type fakeAPI struct {
	lastInput *s3control.CreateJobInput
	jobID     string
	err       error
}

func (f *fakeAPI) CreateJob(_ context.Context, input *s3control.CreateJobInput, _ ...func(*s3control.Options)) (*s3control.CreateJobOutput, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return &s3control.CreateJobOutput{JobId: aws.String(f.jobID)}, nil
}

func TestSubmitChecksumJob(t *testing.T) {
	api := &fakeAPI{jobID: "job-sha256-001"}
	sub := NewWithClient(api, "123456789012", "arn:aws:iam::123456789012:role/batch-role")

	jobID, err := sub.SubmitChecksumJob(context.Background(), provider.JobSpec{
		Algorithm:      claims.SHA256,
		ManifestBucket: "tracking-bucket",
		ManifestKey:    "batch-jobs/manifests/manifest-20260115-120000.csv",
		ManifestETag:   `"abc123"`,
		Description:    "SHA256 checksum computation for 2 objects",
	})
	require.NoError(t, err)
	assert.Equal(t, "job-sha256-001", jobID)

	in := api.lastInput
	require.NotNil(t, in)
	assert.Equal(t, "123456789012", aws.ToString(in.AccountId))
	assert.False(t, aws.ToBool(in.ConfirmationRequired))
	assert.Equal(t, int32(10), aws.ToInt32(in.Priority))
	assert.Equal(t, "arn:aws:iam::123456789012:role/batch-role", aws.ToString(in.RoleArn))

	op := in.Operation.S3ComputeObjectChecksum
	require.NotNil(t, op)
	assert.Equal(t, types.ComputeObjectChecksumAlgorithm("SHA256"), op.ChecksumAlgorithm)
	assert.Equal(t, types.ComputeObjectChecksumType("FULL_OBJECT"), op.ChecksumType)

	assert.Equal(t,
		"arn:aws:s3:::tracking-bucket/batch-jobs/manifests/manifest-20260115-120000.csv",
		aws.ToString(in.Manifest.Location.ObjectArn))
	// Surrounding quotes from the HEAD response are stripped.
	assert.Equal(t, "abc123", aws.ToString(in.Manifest.Location.ETag))
	assert.Equal(t,
		[]types.JobManifestFieldName{"Bucket", "Key"},
		in.Manifest.Spec.Fields)

	assert.Equal(t, "arn:aws:s3:::tracking-bucket", aws.ToString(in.Report.Bucket))
	assert.Equal(t, "batch-jobs/reports/sha256/", aws.ToString(in.Report.Prefix))
	assert.True(t, in.Report.Enabled)
	assert.Equal(t, types.JobReportScope("AllTasks"), in.Report.ReportScope)
}

func TestSubmitChecksumJob_Failure(t *testing.T) {
	api := &fakeAPI{err: errors.New("throttled")}
	sub := NewWithClient(api, "123456789012", "arn:aws:iam::123456789012:role/batch-role")

	_, err := sub.SubmitChecksumJob(context.Background(), provider.JobSpec{
		Algorithm:      claims.MD5,
		ManifestBucket: "tracking-bucket",
		ManifestKey:    "batch-jobs/manifests/manifest-20260115-120000.csv",
		ManifestETag:   "abc123",
	})
	require.Error(t, err)

	var subErr *provider.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "MD5", subErr.Algorithm)
	assert.ErrorContains(t, err, "throttled")
}
