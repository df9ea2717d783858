package queue

import "errors"

// Sentinel kinds for enqueue refusals.
var (
	ErrFull   = errors.New("result queue full")
	ErrClosed = errors.New("result queue closed")
)
