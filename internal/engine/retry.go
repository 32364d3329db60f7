package engine

import (
	"strings"
	"time"
)

// RetryConfig controls the payment retry loop. MaxAttempts counts the first
// attempt, so 3 means one attempt plus two retries.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     10 * time.Second,
	}
}

// transientMarkers are substrings that classify a gateway error as
// retryable. Matching is case-insensitive against the full error text, which
// for HTTP failures includes the status code.
var transientMarkers = []string{
	"timeout",
	"connection",
	"network",
	"temporary",
	"rate limit",
	"502",
	"503",
	"504",
}

// isTransient reports whether an error is worth retrying. Unknown errors are
// treated as permanent: a declined card must never be charged twice.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
