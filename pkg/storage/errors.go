package storage

import "errors"

var (
	// ErrNotFound is returned when an entry id has no index record or content file.
	ErrNotFound = errors.New("storage: entry not found")

	// ErrPinLimit is returned when pinning would exceed MaxPinned entries.
	ErrPinLimit = errors.New("storage: maximum pinned entries reached")
)
