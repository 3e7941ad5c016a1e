package evidence

import (
	"context"
	"errors"
	"fmt"

	"phoneintel/internal/transport/httpclient"
)

// ErrorCategory defines the normalized failure taxonomy
type ErrorCategory string

const (
	// ErrorConfig indicates missing credentials or an unusable dataset
	ErrorConfig ErrorCategory = "config"

	// ErrorTransport indicates the network kept failing through every retry
	ErrorTransport ErrorCategory = "transport"

	// ErrorRateLimited indicates the upstream kept answering 429
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorOutage indicates the upstream kept answering 5xx
	ErrorOutage ErrorCategory = "provider_outage"

	// ErrorRejected indicates a non-retryable HTTP status
	ErrorRejected ErrorCategory = "rejected"

	// ErrorBadData indicates the upstream returned a malformed payload
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorCanceled indicates the caller gave up
	ErrorCanceled ErrorCategory = "canceled"

	// ErrorInternal indicates an unexpected internal error
	ErrorInternal ErrorCategory = "internal"
)

// ConfigError is returned by adapter constructors before any network I/O when
// required configuration is absent. Callers exclude the adapter from the run.
type ConfigError struct {
	Adapter string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("adapter %s misconfigured: %s", e.Adapter, e.Message)
}

// NewConfigError creates a ConfigError for adapter.
func NewConfigError(adapter, message string) *ConfigError {
	return &ConfigError{Adapter: adapter, Message: message}
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// AdapterError wraps adapter failures with normalized categorization
type AdapterError struct {
	Category   ErrorCategory
	Adapter    string
	Message    string
	Underlying error
	Retryable  bool
}

// Error implements the error interface
func (e *AdapterError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("adapter %s [%s]: %s: %v", e.Adapter, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("adapter %s [%s]: %s", e.Adapter, e.Category, e.Message)
}

// Unwrap supports error unwrapping
func (e *AdapterError) Unwrap() error {
	return e.Underlying
}

// NewAdapterError creates a new normalized adapter error
func NewAdapterError(category ErrorCategory, adapter, message string, underlying error) *AdapterError {
	retryable := category == ErrorTransport ||
		category == ErrorOutage ||
		category == ErrorRateLimited

	return &AdapterError{
		Category:   category,
		Adapter:    adapter,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// Wrap classifies a failure returned by the transport layer. Cancellation is
// returned untouched so callers can still match it with errors.Is.
func Wrap(adapter, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return NewAdapterError(Categorize(err), adapter, message, err)
}

// Categorize maps transport and adapter errors onto the taxonomy.
func Categorize(err error) ErrorCategory {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Category
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ErrorConfig
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorCanceled
	}
	var te *httpclient.TransportError
	if errors.As(err, &te) {
		return ErrorTransport
	}
	var he *httpclient.HTTPError
	if errors.As(err, &he) {
		switch {
		case he.IsRateLimited():
			return ErrorRateLimited
		case he.Retryable:
			return ErrorOutage
		default:
			return ErrorRejected
		}
	}
	return ErrorInternal
}

// IsRetryable checks if an error is worth retrying at a higher level
func IsRetryable(err error) bool {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// Sentinel errors for registry lookups
var (
	ErrAdapterNotFound = errors.New("adapter not found")
	ErrDuplicateName   = errors.New("adapter already registered")
)
