package caselaw

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents an API error returned by the record store.
type Error struct {
	StatusCode int
	Message    string
	Code       string // PostgREST error code (e.g., "PGRST116"), when reported
	Op         string // Operation that failed (e.g., "InsertRecord")
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%d %s", e.StatusCode, e.Message)
	if e.Code != "" {
		msg = fmt.Sprintf("%d %s (%s)", e.StatusCode, e.Message, e.Code)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// IsNotFound reports whether err indicates a 404 response.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err indicates a rejected API key.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized) || hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, status int) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == status
	}
	return false
}
