package claims

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
)

// ReportEntry is one parsed row of a batch job completion report.
type ReportEntry struct {
	Bucket         string
	Key            string
	VersionID      string
	TaskStatus     string
	ResultCode     string
	ResultString   string
	Algorithm      Algorithm
	Checksum       string
	ChecksumBase64 string
	ETag           string
	Error          string
}

// Succeeded reports whether the batch task completed successfully.
func (e *ReportEntry) Succeeded() bool {
	return strings.EqualFold(e.TaskStatus, "succeeded")
}

// reportResult is the structured JSON payload in the report's last
// column: checksum fields on success, an error string on failure.
type reportResult struct {
	ChecksumAlgorithm string `json:"checksumAlgorithm"`
	ChecksumHex       string `json:"checksum_hex"`
	ChecksumBase64    string `json:"checksum_base64"`
	ETag              string `json:"ETag"`
	Error             string `json:"error"`
}

// ParseReport parses a batch job completion report. Each valid row maps
// to one ReportEntry; rows with fewer than seven columns are dropped
// silently, and a malformed row never aborts the rest of the report.
//
// Report row layout: bucket, key, versionId, taskStatus, resultCode,
// resultString, jsonResult.
func ParseReport(content []byte, algorithm Algorithm) []ReportEntry {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var entries []ReportEntry
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Partial-parse tolerance: skip the unreadable row.
			slog.Warn("dropping malformed report row", "error", err)
			continue
		}
		if len(row) < 7 {
			continue
		}

		entry := ReportEntry{
			Bucket:       strings.TrimSpace(row[0]),
			Key:          DecodeObjectKey(strings.TrimSpace(row[1])),
			VersionID:    strings.TrimSpace(row[2]),
			TaskStatus:   strings.TrimSpace(row[3]),
			ResultCode:   strings.TrimSpace(row[4]),
			ResultString: strings.TrimSpace(row[5]),
			Algorithm:    algorithm,
		}
		jsonResult := strings.TrimSpace(row[6])

		if entry.Succeeded() && jsonResult != "" {
			var result reportResult
			if err := json.Unmarshal([]byte(jsonResult), &result); err != nil {
				entry.Error = fmt.Sprintf("JSON parse error: %v", err)
			} else if Algorithm(result.ChecksumAlgorithm) == algorithm {
				entry.Checksum = result.ChecksumHex
				entry.ChecksumBase64 = result.ChecksumBase64
				entry.ETag = result.ETag
			}
		} else if !entry.Succeeded() {
			entry.Error = extractFailure(jsonResult, entry.ResultString, entry.TaskStatus)
		}

		entries = append(entries, entry)
	}
	return entries
}

// extractFailure pulls an error string out of the JSON payload, falling
// back to the raw result string and finally a synthesized message.
func extractFailure(jsonResult, resultString, taskStatus string) string {
	if jsonResult != "" {
		var result reportResult
		if err := json.Unmarshal([]byte(jsonResult), &result); err == nil && result.Error != "" {
			return result.Error
		}
	}
	if resultString != "" {
		return resultString
	}
	return "Task failed: " + taskStatus
}

// DecodeObjectKey reverses the URL encoding reports apply to object
// keys, treating '+' as space. The raw key is kept when decoding fails.
func DecodeObjectKey(key string) string {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return key
	}
	return decoded
}
