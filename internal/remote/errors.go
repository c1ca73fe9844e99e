package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusNoConnection is the status reported when the service could not be
// reached at all. It never collides with an HTTP status.
const StatusNoConnection = -1

// Error is a failed remote call.
//
// Status is either StatusNoConnection or the HTTP status returned by the
// service. Message is the service's error text when it sent one.
type Error struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status == StatusNoConnection {
		if e.Message != "" {
			return fmt.Sprintf("no connection: %s", e.Message)
		}
		return "no connection"
	}
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// NewError creates an *Error with the given status and message.
func NewError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// NoConnection wraps a transport failure as a connectivity *Error.
func NoConnection(err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Status: StatusNoConnection, Message: msg}
}

// StatusOf extracts the status code from err.
// Errors that are not *Error count as connectivity failures.
// Returns http.StatusOK for a nil error.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Status
	}
	return StatusNoConnection
}

// MessageOf returns the service message of err, falling back to
// "HTTP<status>" when the service sent none.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var re *Error
	if errors.As(err, &re) {
		if re.Message != "" {
			return re.Message
		}
		return fmt.Sprintf("HTTP%d", re.Status)
	}
	return err.Error()
}

// IsConnectivity reports whether err means the service was unreachable.
func IsConnectivity(err error) bool {
	return err != nil && StatusOf(err) == StatusNoConnection
}

// IsServerFailure reports whether err is a 5xx response.
func IsServerFailure(err error) bool {
	return err != nil && StatusOf(err) >= http.StatusInternalServerError
}

// IsRejection reports whether the service definitively refused the request.
// Rejections are final and must not be retried.
func IsRejection(err error) bool {
	if err == nil {
		return false
	}
	status := StatusOf(err)
	return status >= http.StatusOK && status < http.StatusInternalServerError
}
