package service

import (
	"errors"
	"fmt"
)

// Sentinel kinds returned by the service.
var (
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrUploadFailed      = errors.New("video upload failed")
	ErrRecordCommit      = errors.New("attempt record commit failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidResult     = errors.New("invalid analysis result")
	ErrBackpressure      = errors.New("result intake backpressure")
	ErrStopped           = errors.New("service stopped")
)

// CommitError reports a record creation that failed after the video was
// stored. Retry with CommitUpload and VideoURL instead of uploading again.
type CommitError struct {
	VideoURL string
	Err      error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%v for %s: %v", ErrRecordCommit, e.VideoURL, e.Err)
}

func (e *CommitError) Unwrap() []error { return []error{ErrRecordCommit, e.Err} }
