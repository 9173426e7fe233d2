package claims

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"
)

// ManifestEntry is one row of the CSV manifest handed to the batch
// compute service: bucket, key, and version when the object is versioned.
type ManifestEntry struct {
	Bucket    string
	Key       string
	VersionID string
}

// ManifestKey returns the deterministic, timestamp-derived object key
// for a manifest created at the given time.
func ManifestKey(now time.Time) string {
	return fmt.Sprintf("batch-jobs/manifests/manifest-%s.csv", now.UTC().Format("20060102-150405"))
}

// WriteManifestCSV encodes manifest entries as delimited rows. Rows for
// unversioned objects have two columns, versioned objects three.
func WriteManifestCSV(entries []ManifestEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, e := range entries {
		row := []string{e.Bucket, e.Key}
		if e.VersionID != "" {
			row = append(row, e.VersionID)
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write manifest row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseManifestCSV decodes a manifest back into its entries. It is the
// exact inverse of WriteManifestCSV.
func ParseManifestCSV(data []byte) ([]ManifestEntry, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	var entries []ManifestEntry
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	for _, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("malformed manifest row: %v", row)
		}
		entry := ManifestEntry{Bucket: row[0], Key: row[1]}
		if len(row) > 2 {
			entry.VersionID = row[2]
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
