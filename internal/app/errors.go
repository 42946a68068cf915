package service

import "errors"

// Sentinel kinds for service lifecycle errors.
var (
	ErrAlreadyStarted = errors.New("service already started")
	ErrNotStarted     = errors.New("service not started")
	ErrBuild          = errors.New("engine build failed")
)
