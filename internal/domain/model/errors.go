package model

import "errors"

// Sentinel kinds for model parsing.
var (
	ErrUnknownTestType = errors.New("unknown test type")
	ErrUnknownStatus   = errors.New("unknown status")
)
