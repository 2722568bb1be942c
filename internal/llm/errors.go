package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRateLimit indicates the provider returned a rate limit error (429).
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates the LLM returned no usable text.
type ErrInvalidResponse struct {
	Err error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down or unreachable.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// Error kinds reported by Kind.
const (
	KindRateLimit       = "rate_limit"
	KindUnavailable     = "unavailable"
	KindInvalidResponse = "invalid_response"
	KindTimeout         = "timeout"
	KindOther           = "other"
)

// Kind classifies err for logs and metric labels.
func Kind(err error) string {
	var rateLimit *ErrRateLimit
	var invalid *ErrInvalidResponse
	var unavailable *ErrProviderUnavailable
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &rateLimit):
		return KindRateLimit
	case errors.As(err, &invalid):
		return KindInvalidResponse
	case errors.As(err, &unavailable):
		return KindUnavailable
	default:
		return KindOther
	}
}
