// Package claims defines the core data model for the batch checksum
// workflow: checksum algorithms, composite tracking keys, claim records,
// manifest rows, and batch report rows.
package claims

import (
	"fmt"
	"strings"
)

// Algorithm identifies a checksum algorithm supported by the workflow.
type Algorithm string

const (
	SHA256 Algorithm = "SHA256"
	MD5    Algorithm = "MD5"
)

// Algorithms returns the fixed set of algorithms computed for every
// submitted object. One batch job is created per algorithm.
func Algorithms() []Algorithm {
	return []Algorithm{SHA256, MD5}
}

// ParseAlgorithm converts a string to an Algorithm, case-insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(SHA256):
		return SHA256, nil
	case string(MD5):
		return MD5, nil
	}
	return "", fmt.Errorf("unsupported checksum algorithm: %q", s)
}

// AlgorithmFromReportKey determines the algorithm from a batch report
// object key. Reports are partitioned by a fixed per-algorithm path
// segment (e.g. batch-jobs/reports/sha256/...).
func AlgorithmFromReportKey(key string) (Algorithm, bool) {
	lower := strings.ToLower(key)
	switch {
	case strings.Contains(lower, "/sha256/"):
		return SHA256, true
	case strings.Contains(lower, "/md5/"):
		return MD5, true
	}
	return "", false
}

// TagKey returns the S3 object tag key carrying this algorithm's
// verified checksum.
func (a Algorithm) TagKey() string {
	return "checksum-" + strings.ToLower(string(a))
}

// VerifiedTagKey returns the companion tag key carrying the verification
// timestamp.
func (a Algorithm) VerifiedTagKey() string {
	return a.TagKey() + "-verified"
}

// ReportPrefix returns the report destination prefix for this
// algorithm's batch job.
func (a Algorithm) ReportPrefix() string {
	return "batch-jobs/reports/" + strings.ToLower(string(a)) + "/"
}
