// Package dynamodb implements the provider.TrackingStore interface on
// DynamoDB. Claim records are keyed by their composite object key and
// expire via the table's ttl attribute.
package dynamodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/claims"
	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/provider"
)

// DynamoDB caps BatchWriteItem at 25 items per request.
const batchWriteLimit = 25

// API is the slice of the DynamoDB client the store depends on.
type API interface {
	BatchWriteItem(ctx context.Context, input *awsdynamodb.BatchWriteItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.BatchWriteItemOutput, error)
	GetItem(ctx context.Context, input *awsdynamodb.GetItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, input *awsdynamodb.UpdateItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.UpdateItemOutput, error)
}

// Store is the DynamoDB-backed tracking store.
type Store struct {
	api   API
	table string
}

// New creates a Store from workflow configuration.
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

	slog.Info("dynamodb driver initialized",
		"table", cfg.ChecksumTable,
		"region", cfg.Region)

	return &Store{
		api:   awsdynamodb.NewFromConfig(awsConfig),
		table: cfg.ChecksumTable,
	}, nil
}

// NewWithClient wraps an existing DynamoDB client (used by tests).
func NewWithClient(api API, table string) *Store {
	return &Store{api: api, table: table}
}

// PutClaims writes claim records in chunks of 25. Unprocessed items
// after a request are surfaced as an error rather than retried; the
// caller decides whether a partial write is fatal.
func (s *Store) PutClaims(ctx context.Context, records []claims.ClaimRecord) error {
	for start := 0; start < len(records); start += batchWriteLimit {
		end := start + batchWriteLimit
		if end > len(records) {
			end = len(records)
		}

		writes := make([]types.WriteRequest, 0, end-start)
		for i := start; i < end; i++ {
			item, err := attributevalue.MarshalMap(records[i])
			if err != nil {
				return fmt.Errorf("failed to marshal claim %s: %w", records[i].ObjectKey, err)
			}
			writes = append(writes, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		out, err := s.api.BatchWriteItem(ctx, &awsdynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				s.table: writes,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to write claim batch: %w", err)
		}
		if unprocessed := len(out.UnprocessedItems[s.table]); unprocessed > 0 {
			return fmt.Errorf("claim batch partially written: %d of %d items unprocessed",
				unprocessed, len(writes))
		}
	}

	slog.Debug("claims written", "table", s.table, "count", len(records))
	return nil
}

// GetClaim fetches one record by composite key. A consistent read keeps
// the reconciler from missing a claim written moments earlier.
func (s *Store) GetClaim(ctx context.Context, key claims.CompositeKey) (*claims.ClaimRecord, error) {
	out, err := s.api.GetItem(ctx, &awsdynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"object_key": &types.AttributeValueMemberS{Value: key.String()},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get claim %s: %w", key.String(), err)
	}
	if out.Item == nil {
		return nil, &provider.NotFoundError{Resource: "claim", ID: key.String()}
	}

	var record claims.ClaimRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claim %s: %w", key.String(), err)
	}
	// TTL deletion is lazy; an expired item can still be returned.
	if record.TTL > 0 && record.TTL < time.Now().Unix() {
		return nil, &provider.NotFoundError{Resource: "claim", ID: key.String()}
	}
	return &record, nil
}

// UpdateClaim applies a partial update to one record. Only status and
// processed_at are written unconditionally; remaining fields are added
// to the expression when non-empty, so re-applying the same report is
// idempotent and empty values never clobber stored ones.
func (s *Store) UpdateClaim(ctx context.Context, key claims.CompositeKey, update claims.ClaimUpdate) error {
	set := expression.
		Set(expression.Name("status"), expression.Value(string(update.Status))).
		Set(expression.Name("processed_at"), expression.Value(update.ProcessedAt))

	if update.Checksum != "" {
		set = set.Set(expression.Name("checksum"), expression.Value(update.Checksum))
	}
	if update.TaskStatus != "" {
		set = set.Set(expression.Name("task_status"), expression.Value(update.TaskStatus))
	}
	if update.Error != "" {
		set = set.Set(expression.Name("error"), expression.Value(update.Error))
	}

	expr, err := expression.NewBuilder().WithUpdate(set).Build()
	if err != nil {
		return fmt.Errorf("failed to build update expression: %w", err)
	}

	_, err = s.api.UpdateItem(ctx, &awsdynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"object_key": &types.AttributeValueMemberS{Value: key.String()},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("failed to update claim %s: %w", key.String(), err)
	}

	slog.Debug("claim updated",
		"object_key", key.String(),
		"status", update.Status)
	return nil
}

var _ provider.TrackingStore = (*Store)(nil)
