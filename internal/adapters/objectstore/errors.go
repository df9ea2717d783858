package objectstore

import "errors"

// Sentinel kinds for object store errors.
var (
	ErrEmptyKey  = errors.New("empty object key")
	ErrEmptyBody = errors.New("empty object body")
)
