package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is one attempt of a write that may collide on a unique key.
type Operation func() error

// IsRetryable decides whether a failed attempt should be retried.
type IsRetryable func(err error) bool

const DefaultMaxRetries = 3

// ErrDuplicate means a unique index rejected the write.
var ErrDuplicate = errors.New("duplicate document")

// Try runs op, retrying up to DefaultMaxRetries times on duplicate key
// errors. op is expected to pick fresh ids/slugs on every attempt.
func Try(ctx context.Context, op Operation) error {
	return WithRetries(ctx, op, DefaultMaxRetries, IsDuplicateKeyError)
}

// WithRetries runs op once plus up to maxRetries retries while retryable
// reports true, backing off 50ms per attempt. It stops early when ctx ends.
func WithRetries(ctx context.Context, op Operation, maxRetries int, retryable IsRetryable) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == maxRetries || !retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(50*(attempt+1)) * time.Millisecond):
		}
	}
	return err
}

// IsDuplicateKeyError reports whether err carries a Mongo E11000 or has
// already been translated to ErrDuplicate.
func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, ErrDuplicate) || mongo.IsDuplicateKeyError(err)
}
