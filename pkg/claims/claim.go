package claims

import "time"

// Status is the lifecycle state of a claim record.
type Status string

const (
	// StatusClaimed is the initial state written at job submission time.
	StatusClaimed Status = "claimed"
	// StatusProcessing is an intermediate label available for extension;
	// the base protocol transitions directly from claimed to a terminal
	// state on first report arrival.
	StatusProcessing Status = "processing"
	// StatusSucceeded means the report carried a matching checksum.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the batch task failed for this object.
	StatusFailed Status = "failed"
	// StatusProcessed is the reconciler's catch-all for report rows that
	// neither succeeded with a checksum nor failed outright.
	StatusProcessed Status = "processed"
)

// Terminal reports whether a status ends the claim's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// UnknownJobID is the sentinel job ID written on claim records whose
// algorithm's batch job submission failed.
const UnknownJobID = "UNKNOWN"

// DefaultClaimTTL is how long an unreconciled claim survives before the
// tracking store may garbage-collect it.
const DefaultClaimTTL = 10 * 24 * time.Hour

// ClaimRecord tracks one outstanding or resolved (object, algorithm)
// checksum computation. ObjectKey is the composite primary key.
type ClaimRecord struct {
	ObjectKey        string    `dynamodbav:"object_key" json:"object_key"`
	Bucket           string    `dynamodbav:"bucket" json:"bucket"`
	Key              string    `dynamodbav:"key" json:"key"`
	Algorithm        Algorithm `dynamodbav:"algorithm" json:"algorithm"`
	VersionID        string    `dynamodbav:"version_id,omitempty" json:"version_id,omitempty"`
	Status           Status    `dynamodbav:"status" json:"status"`
	RequestID        string    `dynamodbav:"request_id" json:"request_id"`
	JobID            string    `dynamodbav:"job_id" json:"job_id"`
	Checksum         string    `dynamodbav:"checksum,omitempty" json:"checksum,omitempty"`
	ProvidedChecksum string    `dynamodbav:"provided_checksum,omitempty" json:"provided_checksum,omitempty"`
	TaskStatus       string    `dynamodbav:"task_status,omitempty" json:"task_status,omitempty"`
	Error            string    `dynamodbav:"error,omitempty" json:"error,omitempty"`
	ClaimedAt        string    `dynamodbav:"claimed_at" json:"claimed_at"`
	ProcessedAt      string    `dynamodbav:"processed_at,omitempty" json:"processed_at,omitempty"`
	TTL              int64     `dynamodbav:"ttl" json:"ttl"`
}

// CompositeKey returns the record's parsed primary key.
func (r *ClaimRecord) CompositeKey() CompositeKey {
	return BuildCompositeKey(r.Bucket, r.Key, r.Algorithm)
}

// ClaimUpdate describes the partial update the reconciler applies to a
// claim record. Status and ProcessedAt are always set; the remaining
// fields are applied only when non-empty. RequestID, ClaimedAt, and
// ProvidedChecksum are never part of an update.
type ClaimUpdate struct {
	Status      Status
	ProcessedAt string
	Checksum    string
	TaskStatus  string
	Error       string
}

// Apply writes the update onto a record in place, with the same
// only-overwrite-non-empty semantics the tracking store uses. Applying
// the same update twice yields the same record.
func (u ClaimUpdate) Apply(r *ClaimRecord) {
	r.Status = u.Status
	r.ProcessedAt = u.ProcessedAt
	if u.Checksum != "" {
		r.Checksum = u.Checksum
	}
	if u.TaskStatus != "" {
		r.TaskStatus = u.TaskStatus
	}
	if u.Error != "" {
		r.Error = u.Error
	}
}
