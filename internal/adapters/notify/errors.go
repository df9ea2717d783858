package notify

import "errors"

var (
	ErrMissingField = errors.New("notification missing field")
	ErrRejected     = errors.New("notification rejected")
	ErrNoBrokers    = errors.New("no kafka brokers configured")
)
