package storeapi

import (
	"fmt"

	"github.com/go-faster/errors"
)

// TransportError covers an unreachable store API, a non-2xx answer and an undecodable body.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("storeapi %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("storeapi %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("storeapi %s: status %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("storeapi %s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned for a 404; it is never a TransportError.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
	}
	return e.Resource + " not found"
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsNotFound(err):
		return "not_found"
	default:
		return "transport_error"
	}
}
