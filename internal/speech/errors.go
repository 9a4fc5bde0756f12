package speech

import "errors"

var (
	// ErrEmptyText is returned when there is nothing to synthesize
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrNoVoices is returned when the voice list of a provider is empty
	ErrNoVoices = errors.New("no voices available")

	// ErrRateLimited is returned when the vendor rejected a request for rate
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidPath is returned for audio locations outside the allowed directory
	ErrInvalidPath = errors.New("audio path escapes the cache directory")

	// ErrInvalidSettings is returned for incomplete voice settings
	ErrInvalidSettings = errors.New("missing required keys: 'stability' and 'similarity_boost'")
)

// SynthesisError is a failed vendor call
type SynthesisError struct {
	Provider string
	// StatusCode is the HTTP status, zero for transport failures
	StatusCode int
	Message    string
	Cause      error
	// Retryable is set for transient failures
	Retryable bool
}

func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

func (e *SynthesisError) Unwrap() error {
	return e.Cause
}
