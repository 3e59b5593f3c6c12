package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound         = errors.New("assignment not found")
	ErrCommitConflict   = errors.New("plan conflicts with current floor state")
	ErrAlreadySubmitted = errors.New("assignment already submitted")
	ErrInvalidSnapshot  = errors.New("invalid snapshot")
)
