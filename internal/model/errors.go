package model

import "errors"

// Sentinel errors shared across the engine. Matrix and generator errors are
// returned synchronously to the caller; execution errors after job creation
// are captured into the job record instead.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrCellLocked       = errors.New("cell is locked")
	ErrEmptyCell        = errors.New("cannot lock an empty cell")
	ErrValidationFailed = errors.New("combinations failed validation")
	ErrInvalidState     = errors.New("invalid job state for operation")
	ErrStatusConflict   = errors.New("job status changed concurrently")
	ErrStaleUpdate      = errors.New("update is less final than stored status")
)
