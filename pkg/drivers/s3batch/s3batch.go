// Package s3batch implements the provider.BatchCompute interface on
// S3 Batch Operations, using the S3ComputeObjectChecksum operation to
// calculate checksums without modifying the original objects.
package s3batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3control"
	"github.com/aws/aws-sdk-go-v2/service/s3control/types"

	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/provider"
)

// API is the slice of the S3 Control client the submitter depends on.
type API interface {
	CreateJob(ctx context.Context, input *s3control.CreateJobInput, optFns ...func(*s3control.Options)) (*s3control.CreateJobOutput, error)
}

// Submitter creates per-algorithm batch checksum jobs.
type Submitter struct {
	api       API
	accountID string
	roleARN   string
}

// New creates a Submitter from workflow configuration.
func New(ctx context.Context, cfg *provider.Config) (*Submitter, error) {
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

	slog.Info("s3batch driver initialized",
		"account_id", cfg.AccountID,
		"region", cfg.Region)

	return &Submitter{
		api:       s3control.NewFromConfig(awsConfig),
		accountID: cfg.AccountID,
		roleARN:   cfg.BatchRoleARN,
	}, nil
}

// NewWithClient wraps an existing S3 Control client (used by tests).
func NewWithClient(api API, accountID, roleARN string) *Submitter {
	return &Submitter{api: api, accountID: accountID, roleARN: roleARN}
}

// SubmitChecksumJob creates one batch job computing full-object
// checksums for every manifest entry, reporting all tasks under the
// algorithm's report prefix. A failure is returned immediately as a
// SubmissionError; nothing is retried here.
func (s *Submitter) SubmitChecksumJob(ctx context.Context, spec provider.JobSpec) (string, error) {
	input := &s3control.CreateJobInput{
		AccountId:            aws.String(s.accountID),
		ConfirmationRequired: aws.Bool(false),
		Operation: &types.JobOperation{
			S3ComputeObjectChecksum: &types.S3ComputeObjectChecksumOperation{
				ChecksumAlgorithm: types.ComputeObjectChecksumAlgorithm(spec.Algorithm),
				ChecksumType:      types.ComputeObjectChecksumType("FULL_OBJECT"),
			},
		},
		Manifest: &types.JobManifest{
			Spec: &types.JobManifestSpec{
				Format: types.JobManifestFormat("S3BatchOperations_CSV_20180820"),
				Fields: []types.JobManifestFieldName{
					types.JobManifestFieldName("Bucket"),
					types.JobManifestFieldName("Key"),
				},
			},
			Location: &types.JobManifestLocation{
				ObjectArn: aws.String(fmt.Sprintf("arn:aws:s3:::%s/%s", spec.ManifestBucket, spec.ManifestKey)),
				ETag:      aws.String(strings.Trim(spec.ManifestETag, `"`)),
			},
		},
		Priority: aws.Int32(10),
		RoleArn:  aws.String(s.roleARN),
		Report: &types.JobReport{
			Bucket:      aws.String("arn:aws:s3:::" + spec.ManifestBucket),
			Format:      types.JobReportFormat("Report_CSV_20180820"),
			Enabled:     true,
			Prefix:      aws.String(spec.Algorithm.ReportPrefix()),
			ReportScope: types.JobReportScope("AllTasks"),
		},
		Description: aws.String(spec.Description),
	}

	out, err := s.api.CreateJob(ctx, input)
	if err != nil {
		return "", &provider.SubmissionError{Algorithm: string(spec.Algorithm), Err: err}
	}

	jobID := aws.ToString(out.JobId)
	slog.Info("batch job created",
		"algorithm", spec.Algorithm,
		"job_id", jobID,
		"manifest", spec.ManifestKey)

	return jobID, nil
}

var _ provider.BatchCompute = (*Submitter)(nil)
