package gitremote

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the ref, object, or repository does not exist.
	ErrNotFound = errors.New("remote object not found")

	// ErrConflict means the ref moved since we resolved it; the update was
	// not a fast-forward and nothing was changed on the branch.
	ErrConflict = errors.New("branch moved since changes were staged")

	// ErrUnauthorized means the API token was rejected.
	ErrUnauthorized = errors.New("remote authorization failed")
)

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote API error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case 404:
		return ErrNotFound
	case 401, 403:
		return ErrUnauthorized
	}
	return nil
}
