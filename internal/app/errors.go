package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrBackpressure     = errors.New("generation queue is full, retry later")
	ErrDuplicateRequest = errors.New("request id already processed")
	ErrNotStarted       = errors.New("service not started")
)
