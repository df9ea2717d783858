// Package objectstore uploads submitted videos to blob storage and returns
// their public URLs.
package objectstore

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultExt is used when the submitted file name has no extension.
const DefaultExt = "mp4"

// Store is a write-once blob sink.
type Store interface {
	// Upload writes body under key and returns its public URL.
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Key derives a unique object name from the user and submission time:
// <userId>_<unixNano>.<ext>, ext lower-cased from filename. Characters
// outside [A-Za-z0-9._-] in the user id become '-', so the key is always a
// single URL-safe path segment.
func Key(userID string, at time.Time, filename string) string {
	return keySegment(userID) + "_" + strconv.FormatInt(at.UnixNano(), 10) + "." + Ext(filename)
}

// Ext returns the lower-cased extension of filename without the dot.
func Ext(filename string) string {
	ext := keySegment(strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."))
	if ext == "" {
		return DefaultExt
	}
	return ext
}

func keySegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}

// joinURL appends key to base with exactly one slash between them.
func joinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		out += "/" + strings.Trim(p, "/")
	}
	return out
}
