package helpers

import (
	"errors"
	"fmt"
	"time"

	"mtm-hub/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type HubError struct {
	Message string
	Cause   error
}

func (e *HubError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *HubError) Unwrap() error {
	return e.Cause
}

// PublicMessage is the message without its cause chain.
func (e *HubError) PublicMessage() string {
	return e.Message
}

// Distinct error types for errors.As checks.
type ConfigurationError struct{ HubError }
type ValidationError struct{ HubError }
type NotFoundError struct{ HubError }
type FetchError struct{ HubError }
type StorageError struct{ HubError }

var (
	ErrMissingAccountID = errors.New("UserID parameter is required")
	ErrUnknownAccount   = errors.New("account not configured")
	ErrFetchFailed      = errors.New("remote fetch failed")
)

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

func NewValidationError(msg string, cause error) error {
	return &ValidationError{HubError{Message: msg, Cause: cause}}
}

func NewNotFoundError(msg string, cause error) error {
	return &NotFoundError{HubError{Message: msg, Cause: cause}}
}

// NewFetchError always chains ErrFetchFailed so callers can match on it.
func NewFetchError(msg string, cause error) error {
	if cause == nil {
		cause = ErrFetchFailed
	} else if !errors.Is(cause, ErrFetchFailed) {
		cause = fmt.Errorf("%w: %w", ErrFetchFailed, cause)
	}
	return &FetchError{HubError{Message: msg, Cause: cause}}
}

func NewStorageError(msg string, cause error) error {
	return &StorageError{HubError{Message: msg, Cause: cause}}
}

func NewConfigurationError(msg string, cause error) error {
	return &ConfigurationError{HubError{Message: msg, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var v *NotFoundError
	return errors.As(err, &v)
}

func IsFetchFailure(err error) bool {
	var v *FetchError
	return errors.As(err, &v) || errors.Is(err, ErrFetchFailed)
}

// PublicMessage returns the caller-facing message of a hub error, or the full
// error text for anything else.
func PublicMessage(err error) string {
	var pe interface{ PublicMessage() string }
	if errors.As(err, &pe) {
		return pe.PublicMessage()
	}
	return err.Error()
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
func RetryWithBackoff(log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		}
		time.Sleep(delay)
	}

	return &HubError{Message: fmt.Sprintf("%s failed after %d attempts", operation, maxRetries), Cause: lastErr}
}
