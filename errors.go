package ring

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors returned by the Ring client.
// All errors are defined here for easy discovery and consistent organization.
var (
	// ErrInvalidArgument is the root of every validation error raised before a request is sent.
	ErrInvalidArgument = errors.New("ring: invalid argument")

	// Authentication parameter errors
	ErrMissingOperatingSystem = fmt.Errorf("%w: operating system is mandatory", ErrInvalidArgument)
	ErrMissingHardwareID      = fmt.Errorf("%w: hardware ID is mandatory", ErrInvalidArgument)

	// Recording errors
	ErrEmptyDingID        = fmt.Errorf("%w: ding ID cannot be empty", ErrInvalidArgument)
	ErrInvalidDestination = fmt.Errorf("%w: invalid destination", ErrInvalidArgument)

	// Session state
	ErrNotAuthenticated = errors.New("ring: session is not authenticated")

	// HTTP status errors
	ErrUnauthorized = errors.New("ring: unauthorized (invalid credentials or token)")
	ErrNotFound     = errors.New("ring: resource not found")
)

// APIError represents a non-success response from the Ring API.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("ring: API error %d: %s", e.StatusCode, e.Message)
}

// destinationError builds an ErrInvalidDestination naming the offending path.
func destinationError(reason, path string) error {
	return fmt.Errorf("%w: %s %q", ErrInvalidDestination, reason, path)
}

// IsInvalidArgument returns true if the error was raised by argument validation.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsNotAuthenticated returns true if the operation required a session that has not been established.
func IsNotAuthenticated(err error) bool {
	return errors.Is(err, ErrNotAuthenticated)
}

// IsUnauthorized returns true if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized
	}
	return false
}

// IsNotFound returns true if the error indicates the resource was not found.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsTimeout returns true if the error indicates a timeout.
func IsTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
