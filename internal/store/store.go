// Package store holds the persistence layer: users in PostgreSQL, posts
// and comments in MongoDB, images in MinIO, and a small Redis cache for
// the admin aggregates.
package store

import "errors"

// Sentinel errors translated to HTTP statuses by the handlers.
var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate means a unique constraint was violated. For posts this
	// is the storage-level safety net behind the pre-insert duplicate
	// check, which is not atomic with the insert.
	ErrDuplicate = errors.New("duplicate record")

	// ErrBadID means an identifier failed to parse.
	ErrBadID = errors.New("malformed id")
)
