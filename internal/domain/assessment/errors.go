package assessment

import "errors"

// Sentinel kinds for assessment errors.
var (
	ErrValidation = errors.New("validation failed")
)
