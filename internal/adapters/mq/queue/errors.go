package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrStopped = errors.New("generation queue stopped")
	ErrFull    = errors.New("generation queue full")
)
