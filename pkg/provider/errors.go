package provider

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// ValidationError reports a malformed top-level request. It aborts the
// whole invocation; per-item problems are folded into item results
// instead.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %q: %s", e.Field, e.Reason)
}

// SubmissionError reports that batch job creation failed for one
// algorithm. The other algorithm's submission is unaffected.
type SubmissionError struct {
	Algorithm string
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to create %s batch job: %v", e.Algorithm, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// NotFoundError reports an absent object or tracking record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// AccessError reports a permission or existence failure on a storage
// operation, carrying the service's error code.
type AccessError struct {
	Code string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("storage access error (%s): %v", e.Code, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// ClassifyStorageError maps an AWS service error onto the workflow's
// taxonomy: not-found codes become NotFoundError, access codes become
// AccessError, anything else is returned unchanged.
func ClassifyStorageError(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return &NotFoundError{Resource: resource, ID: id}
	case "AccessDenied", "Forbidden":
		return &AccessError{Code: apiErr.ErrorCode(), Err: err}
	}
	return err
}
