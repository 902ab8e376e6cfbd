package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrEmptyResponse means a provider answered successfully with no usable content.
	ErrEmptyResponse = errors.New("empty response")
	// ErrMalformedBody means a success response body could not be decoded.
	ErrMalformedBody = errors.New("malformed response body")
	// ErrAllProvidersExhausted is matched by *ExhaustedError.
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
	// ErrMissingAPIKey means no credential was configured. It is never retried.
	ErrMissingAPIKey = errors.New("missing API key")
)

// ErrorKind classifies a non-success HTTP status.
type ErrorKind string

const (
	KindBadCredentials      ErrorKind = "bad_credentials"
	KindAccessDenied        ErrorKind = "access_denied"
	KindModelUnavailable    ErrorKind = "model_unavailable"
	KindRateLimited         ErrorKind = "rate_limited"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindHTTP                ErrorKind = "http_error"
)

// KindForStatus maps an HTTP status code to an ErrorKind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindBadCredentials
	case status == http.StatusForbidden:
		return KindAccessDenied
	case status == http.StatusNotFound || status == http.StatusGone:
		return KindModelUnavailable
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindProviderUnavailable
	default:
		return KindHTTP
	}
}

func (k ErrorKind) describe() string {
	switch k {
	case KindBadCredentials:
		return "invalid API key"
	case KindAccessDenied:
		return "access denied"
	case KindModelUnavailable:
		return "model not available"
	case KindRateLimited:
		return "rate limit exceeded"
	case KindProviderUnavailable:
		return "provider unavailable"
	default:
		return "HTTP error"
	}
}

// ProviderError is a non-success HTTP status returned for one model.
type ProviderError struct {
	Model   string
	Status  int
	Kind    ErrorKind
	Message string // provider supplied error.message, may be empty
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s (HTTP %d)", e.Model, e.Kind.describe(), e.Status)
	if m := strings.TrimSpace(e.Message); m != "" {
		msg += ": " + m
	}
	return msg
}

// TransportError is a network level failure, timeouts included.
type TransportError struct {
	Model string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Model, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Attempt records the outcome of one model in the fallback chain.
type Attempt struct {
	Model string
	Err   error
}

// ExhaustedError is returned when every model in the chain failed.
// It unwraps to the most recent failure.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	last := e.Unwrap()
	if last == nil {
		return ErrAllProvidersExhausted.Error()
	}
	return fmt.Sprintf("%s after %d attempt(s): %v", ErrAllProvidersExhausted, len(e.Attempts), last)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersExhausted
}

func (e *ExhaustedError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}
