package domain

import (
	"errors"
	"fmt"
)

// AllPlatforms is the platform selector value that disables the platform filter.
const AllPlatforms = "(todas)"

var (
	// ErrNotAuthenticated is returned when a request has no live database session
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidDateRange is returned when the requested range is empty or reversed
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidPageSize is returned when the page size is not one of the offered choices
	ErrInvalidPageSize = errors.New("invalid page size")

	// ErrInvalidPlatform is returned when the platform is not one of the offered choices
	ErrInvalidPlatform = errors.New("invalid platform")
)

// QueryError wraps a failed count or page query.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s query failed: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// DetailFetchError wraps a failed parameters XML lookup.
type DetailFetchError struct {
	JobID int64
	Err   error
}

func (e *DetailFetchError) Error() string {
	return fmt.Sprintf("failed to fetch parameters for job %d: %v", e.JobID, e.Err)
}

func (e *DetailFetchError) Unwrap() error {
	return e.Err
}
