package akeneo

import (
	"errors"
	"fmt"
)

// StatusError is returned for any non-success HTTP status from the PIM.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("akeneo: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// StatusCode extracts the HTTP status from err, or 0 when err carries none.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// HTTPStatus returns the response status.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }
