package domain

import "errors"

var (
	// ErrNotFound is returned when a record does not exist for the requesting user.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput flags a request that cannot be corrected safely.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCrossOwner is returned when two records of different users meet.
	ErrCrossOwner = errors.New("records belong to different users")
	// ErrNoData signals that a read found nothing to work with.
	ErrNoData = errors.New("no data")
	// ErrConflict is returned when a write would duplicate an existing record.
	ErrConflict = errors.New("conflict")
)
