package registry

import (
	"errors"
	"fmt"
)

var (
	ErrBaseURLRequired = errors.New("registry: base url required")
	// ErrNetwork marks a transport failure that survived the retry
	// policy. It ends the current entity's reconciliation only.
	ErrNetwork = errors.New("registry: network failure")

	// errTransient tags transport-level failures inside the retry loop
	// so they can be told apart from application-level rejections.
	errTransient = errors.New("registry: transient")
)

// StatusError is an application-level rejection: the server answered with
// a parsed error body. It is never retried.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("registry: http %d", e.Status)
	}
	return fmt.Sprintf("registry: http %d: %s", e.Status, e.Message)
}

// SchemaError reports a response missing an expected field or carrying the
// wrong JSON type.
type SchemaError struct {
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("registry: response field %q missing or malformed", e.Field)
}

// IsNotFound reports whether err is the server telling us an entity does
// not exist.
func IsNotFound(err error) bool {
	var status *StatusError
	return errors.As(err, &status) && status.Status == 404
}
