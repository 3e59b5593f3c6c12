package repository

import (
	"time"

	"github.com/google/uuid"
)

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

func defaultOptions() options {
	return options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides how assignment ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(o *options) {
		if gen != nil {
			o.newID = gen
		}
	}
}
