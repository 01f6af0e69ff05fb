package rate

import "errors"

var (
	// ErrRateLimited reports an exhausted login budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter store failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
