package intake

import "errors"

var (
	ErrMalformed     = errors.New("malformed result message")
	ErrMissingField  = errors.New("result message missing field")
	ErrUnknownStatus = errors.New("unknown result status")
)
