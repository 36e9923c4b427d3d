package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrMissingReference = errors.New("missing required reference image")
	ErrCapacityExceeded = errors.New("reference count exceeds model capacity")
	ErrUploadFailed     = errors.New("file upload failed")
	ErrSigningFailed    = errors.New("failed to get a usable link")
	ErrProviderFailure  = errors.New("provider failure")
	ErrUnknownModel     = errors.New("unknown model")
)

// ProviderError carries the error body an external provider returned, so
// callers can surface it verbatim or pattern-match known signatures.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// Transient reports whether retrying the same request may succeed.
func (e *ProviderError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
