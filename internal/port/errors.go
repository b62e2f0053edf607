package port

import (
	"errors"
	"fmt"
)

// Sentinel errors used across ports. Input errors are rejected before any
// provider call and surfaced to the caller verbatim.
var (
	ErrEmptyDiff        = errors.New("diff is empty")
	ErrMalformedDiff    = errors.New("diff is not in unified format")
	ErrDiffTooLarge     = errors.New("diff exceeds maximum size")
	ErrTooManyFiles     = errors.New("diff touches too many files")
	ErrLineTooLong      = errors.New("diff contains an oversized line")
	ErrTooManyLines     = errors.New("diff exceeds maximum line count")
	ErrUnknownAuditType = errors.New("unknown audit type")
	ErrUnknownDepth     = errors.New("unknown analysis depth")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrStrategyNotFound = errors.New("audit strategy not found")
)

// IsInputError reports whether err is a request-level validation failure,
// as opposed to a provider or internal failure.
func IsInputError(err error) bool {
	for _, sentinel := range []error{
		ErrEmptyDiff, ErrMalformedDiff, ErrDiffTooLarge, ErrTooManyFiles,
		ErrLineTooLong, ErrTooManyLines, ErrUnknownAuditType, ErrUnknownDepth,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// ProviderError describes a failed call to the inference provider.
// Transient errors (timeouts, 5xx, upstream rate limits) may be retried;
// permanent errors (auth, malformed request) must not be.
type ProviderError struct {
	Kind      string // timeout, rate_limit, auth, connection, api_error, empty_response
	Status    int    // HTTP status when available, 0 otherwise
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider %s (%d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a provider error worth retrying.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}
