package result

import "errors"

// Sentinel kinds for result errors.
var (
	ErrUnparsable      = errors.New("could not parse result")
	ErrInvalidAnalysis = errors.New("analysis data is not valid JSON")
)
