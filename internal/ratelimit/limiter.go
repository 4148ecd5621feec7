// Package ratelimit bounds how many api requests one caller may make per window.
// Memory keeps the counters in process; Redis shares them between adapter
// processes serving the same metadata collection.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"
)

// Limiter decides whether one more request for key fits in the current window
type Limiter interface {
	Allow(ctx context.Context, key string) (*Decision, error)
}

// Decision is the limiter's answer for one request
type Decision struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}

// RetryAfterSeconds returns the whole seconds until the window resets
func (d *Decision) RetryAfterSeconds(now time.Time) int64 {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return int64(math.Ceil(wait.Seconds()))
}

func validate(limit int, window time.Duration) error {
	if limit <= 0 {
		return errors.New("limit must be greater than 0")
	}
	if window <= 0 {
		return errors.New("window must be greater than 0")
	}
	return nil
}
