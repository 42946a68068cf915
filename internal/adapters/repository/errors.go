package repository

import "errors"

// Sentinel kinds for read model errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidLimit = errors.New("invalid limit")
	ErrNotReady     = errors.New("status not published yet")
)
