package store

import "errors"

// Sentinel kinds for storage errors.
var (
	// ErrConnectivity marks an unreachable backend; fatal for ingestion.
	ErrConnectivity = errors.New("redis unreachable")

	// ErrNotFound marks a missing document.
	ErrNotFound = errors.New("not found")
)
