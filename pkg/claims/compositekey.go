package claims

import (
	"fmt"
	"strings"
)

// keyDelimiter separates the segments of a composite tracking key.
const keyDelimiter = "#"

// CompositeKey is the tracking-store primary key for one
// (bucket, object key, algorithm) claim. Its string form is
// bucket#key#algorithm, with literal '#' and '%' characters inside
// segments escaped so any object key round-trips.
type CompositeKey struct {
	Bucket    string
	Key       string
	Algorithm Algorithm
}

// BuildCompositeKey constructs the composite key for one claim.
func BuildCompositeKey(bucket, key string, algorithm Algorithm) CompositeKey {
	return CompositeKey{Bucket: bucket, Key: key, Algorithm: algorithm}
}

// String renders the key in its stored form.
func (k CompositeKey) String() string {
	return escapeSegment(k.Bucket) + keyDelimiter + escapeSegment(k.Key) + keyDelimiter + string(k.Algorithm)
}

// ParseCompositeKey parses the stored form back into its segments.
func ParseCompositeKey(s string) (CompositeKey, error) {
	parts := strings.Split(s, keyDelimiter)
	if len(parts) != 3 {
		return CompositeKey{}, fmt.Errorf("malformed composite key %q: expected 3 segments, got %d", s, len(parts))
	}
	algorithm, err := ParseAlgorithm(parts[2])
	if err != nil {
		return CompositeKey{}, fmt.Errorf("malformed composite key %q: %w", s, err)
	}
	return CompositeKey{
		Bucket:    unescapeSegment(parts[0]),
		Key:       unescapeSegment(parts[1]),
		Algorithm: algorithm,
	}, nil
}

func escapeSegment(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	return strings.ReplaceAll(s, keyDelimiter, "%23")
}

func unescapeSegment(s string) string {
	s = strings.ReplaceAll(s, "%23", keyDelimiter)
	return strings.ReplaceAll(s, "%25", "%")
}
