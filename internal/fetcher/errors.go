package fetcher

import (
	"errors"
	"fmt"
)

// TransientError marks a fetch failure that may heal on retry: HTTP 429,
// 5xx, or a network-level error.
type TransientError struct {
	URL        string
	StatusCode int // 0 for network errors
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transient fetch failure for %s: http status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("transient fetch failure for %s: %v", e.URL, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a fetch failure that retrying will not fix: most
// 4xx statuses, a rejected content type, or an unusable URL.
type PermanentError struct {
	URL        string
	StatusCode int
	Reason     string
	Err        error
}

func (e *PermanentError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("permanent fetch failure for %s: %s", e.URL, e.Reason)
	}
	return fmt.Sprintf("permanent fetch failure for %s: http status %d", e.URL, e.StatusCode)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
