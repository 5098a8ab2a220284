package reservation

import (
	"fmt"
	"time"
)

// RateLimitedError is returned by Create when the caller exceeded the
// creation rate.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many reservations, retry in %s", e.RetryAfter.Round(time.Second))
}
