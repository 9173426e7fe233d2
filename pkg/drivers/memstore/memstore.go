// Package memstore provides in-memory implementations of the workflow's
// driver interfaces. They back unit tests and local development runs
// where no AWS services are available.
package memstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/claims"
	"github.com/aws-samples/sample-s3-batch-checksum-validation/pkg/provider"
)

type object struct {
	data        []byte
	contentType string
	metadata    map[string]string
	tags        map[string]string
	etag        string
	modified    time.Time
}

// ObjectStore is an in-memory provider.ObjectStore.
type ObjectStore struct {
	mu      sync.RWMutex
	objects map[string]*object
}

// NewObjectStore creates an empty in-memory object store.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string]*object)}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

// Put stores an object. The ETag is the hex MD5 of the body, matching
// what S3 returns for non-multipart uploads.
func (s *ObjectStore) Put(_ context.Context, bucket, key string, data []byte, contentType string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := md5.Sum(data)
	s.objects[objectKey(bucket, key)] = &object{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		metadata:    metadata,
		tags:        make(map[string]string),
		etag:        hex.EncodeToString(sum[:]),
		modified:    time.Now(),
	}
	return nil
}

func (s *ObjectStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, &provider.NotFoundError{Resource: "object", ID: objectKey(bucket, key)}
	}
	return append([]byte(nil), obj.data...), nil
}

func (s *ObjectStore) Head(_ context.Context, bucket, key string) (*provider.ObjectMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, &provider.NotFoundError{Resource: "object", ID: objectKey(bucket, key)}
	}
	return &provider.ObjectMetadata{
		Size:         int64(len(obj.data)),
		ContentType:  obj.contentType,
		LastModified: obj.modified.Unix(),
		ETag:         obj.etag,
	}, nil
}

func (s *ObjectStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.objects[objectKey(bucket, key)]
	return ok, nil
}

func (s *ObjectStore) GetObjectTags(_ context.Context, bucket, key, _ string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, &provider.NotFoundError{Resource: "object", ID: objectKey(bucket, key)}
	}
	tags := make(map[string]string, len(obj.tags))
	for k, v := range obj.tags {
		tags[k] = v
	}
	return tags, nil
}

func (s *ObjectStore) PutObjectTags(_ context.Context, bucket, key, _ string, tags map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return &provider.NotFoundError{Resource: "object", ID: objectKey(bucket, key)}
	}
	obj.tags = make(map[string]string, len(tags))
	for k, v := range tags {
		obj.tags[k] = v
	}
	return nil
}

// Metadata returns the user metadata recorded at Put time (test helper).
func (s *ObjectStore) Metadata(bucket, key string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if obj, ok := s.objects[objectKey(bucket, key)]; ok {
		return obj.metadata
	}
	return nil
}

var _ provider.ObjectStore = (*ObjectStore)(nil)

// TrackingStore is an in-memory provider.TrackingStore. Expiry is
// honored on read: a record whose ttl has passed reads as absent.
type TrackingStore struct {
	mu      sync.RWMutex
	records map[string]claims.ClaimRecord

	// Now is the clock used for ttl checks; tests may override it.
	Now func() time.Time
}

// NewTrackingStore creates an empty in-memory tracking store.
func NewTrackingStore() *TrackingStore {
	return &TrackingStore{
		records: make(map[string]claims.ClaimRecord),
		Now:     time.Now,
	}
}

func (s *TrackingStore) PutClaims(_ context.Context, records []claims.ClaimRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.records[r.ObjectKey] = r
	}
	return nil
}

func (s *TrackingStore) GetClaim(_ context.Context, key claims.CompositeKey) (*claims.ClaimRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[key.String()]
	if !ok || (record.TTL > 0 && record.TTL < s.Now().Unix()) {
		return nil, &provider.NotFoundError{Resource: "claim", ID: key.String()}
	}
	out := record
	return &out, nil
}

func (s *TrackingStore) UpdateClaim(_ context.Context, key claims.CompositeKey, update claims.ClaimUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key.String()]
	if !ok {
		return &provider.NotFoundError{Resource: "claim", ID: key.String()}
	}
	update.Apply(&record)
	s.records[key.String()] = record
	return nil
}

// Claims returns every stored record (test helper).
func (s *TrackingStore) Claims() []claims.ClaimRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]claims.ClaimRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out
}

var _ provider.TrackingStore = (*TrackingStore)(nil)

// BatchCompute is an in-memory provider.BatchCompute that records
// submitted job specs and hands out sequential job IDs.
type BatchCompute struct {
	mu       sync.Mutex
	next     int
	jobs     []provider.JobSpec
	failures map[claims.Algorithm]error
}

// NewBatchCompute creates a batch compute fake that accepts every job.
func NewBatchCompute() *BatchCompute {
	return &BatchCompute{failures: make(map[claims.Algorithm]error)}
}

// FailSubmissions makes every subsequent submission for the algorithm
// return the given error.
func (b *BatchCompute) FailSubmissions(alg claims.Algorithm, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[alg] = err
}

func (b *BatchCompute) SubmitChecksumJob(_ context.Context, spec provider.JobSpec) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failures[spec.Algorithm]; err != nil {
		return "", &provider.SubmissionError{Algorithm: string(spec.Algorithm), Err: err}
	}
	b.next++
	b.jobs = append(b.jobs, spec)
	return fmt.Sprintf("job-%s-%03d", spec.Algorithm, b.next), nil
}

// SubmittedJobs returns every accepted job spec (test helper).
func (b *BatchCompute) SubmittedJobs() []provider.JobSpec {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]provider.JobSpec(nil), b.jobs...)
}

var _ provider.BatchCompute = (*BatchCompute)(nil)
