package peerdrop

import "errors"

var (
	// ErrNotFound is returned when a blob is not present in the store
	ErrNotFound = errors.New("not found")
	// ErrMissingFile is returned when an upload carries no file field
	ErrMissingFile = errors.New("missing file")
	// ErrIngest is returned when the blob store fails to ingest content
	ErrIngest = errors.New("ingest failed")
	// ErrInvalidTicket is returned when a ticket cannot be built or parsed
	ErrInvalidTicket = errors.New("invalid ticket")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
)
