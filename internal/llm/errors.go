package llm

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// QuotaError reports a 429-equivalent rejection. It triggers the retry and
// fallback policy.
type QuotaError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: quota exceeded: http %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
}

// TransientError reports a 5xx response or a network timeout. It triggers the
// retry and fallback policy.
type TransientError struct {
	Provider   string
	StatusCode int
	Cause      error
	Body       string
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: transient failure: %v", e.Provider, e.Cause)
	}
	return fmt.Sprintf("%s: transient failure: http %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
}

func (e *TransientError) Unwrap() error { return e.Cause }

// HardError reports a malformed request, auth failure, or any other condition
// retrying cannot fix. It is surfaced immediately and never counted toward
// fallback escalation.
type HardError struct {
	Provider   string
	StatusCode int
	Cause      error
	Body       string
}

func (e *HardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: hard failure: %v", e.Provider, e.Cause)
	}
	return fmt.Sprintf("%s: hard failure: http %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
}

func (e *HardError) Unwrap() error { return e.Cause }

// Retryable reports whether the error should go through the cooldown/retry/
// fallback path rather than being surfaced immediately.
func Retryable(err error) bool {
	var quota *QuotaError
	if errors.As(err, &quota) {
		return true
	}
	var transient *TransientError
	return errors.As(err, &transient)
}
