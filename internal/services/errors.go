package services

import (
	"errors"
	"fmt"
)

var (
	// ErrEntityExists maps HTTP 409 from the backend. For customer
	// creation it means "already registered" and is recoverable.
	ErrEntityExists = errors.New("entity already exists")

	// ErrNotFound maps HTTP 404 from the backend.
	ErrNotFound = errors.New("not found")
)

// APIError is any other non-2xx response from a remote API.
type APIError struct {
	URL    string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.URL, e.Status, e.Body)
}
