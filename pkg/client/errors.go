package client

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies fetch failures.
type ErrorKind string

const (
	// KindNotFound means the remote answered 404 with a body that is not a record.
	KindNotFound ErrorKind = "not_found"

	// KindTransport covers DNS, connection, timeout and body read failures.
	KindTransport ErrorKind = "transport"

	// KindDecode means the body could not be parsed into a record.
	KindDecode ErrorKind = "decode"
)

var (
	// ErrNotObject is the decode cause for JSON bodies that are not objects.
	ErrNotObject = errors.New("response body is not a JSON object")
)

// FetchError is returned by every failed fetch.
type FetchError struct {
	Kind       ErrorKind
	Resource   Resource
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("pokeapi %s error (%s, status %d): %v",
			e.Kind, e.Resource, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("pokeapi %s error (%s): %v", e.Kind, e.Resource, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// newFetchError records the call stack on the cause.
func newFetchError(kind ErrorKind, res Resource, status int, cause error) *FetchError {
	return &FetchError{
		Kind:       kind,
		Resource:   res,
		StatusCode: status,
		Err:        errors.WithStack(cause),
	}
}

// KindOf reports the kind of the first FetchError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindTransport
}

// IsNotFound reports whether err means the resource does not exist.
func IsNotFound(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindNotFound
}

// classifyBody picks the kind for a body that failed to decode.
func classifyBody(statusCode int) ErrorKind {
	if statusCode == 404 {
		return KindNotFound
	}
	return KindDecode
}
