package storage

import "errors"

var (
	// ErrNotFound is returned when a cache key is absent.
	ErrNotFound = errors.New("cache entry not found")
)
