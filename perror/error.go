package perror

import "fmt"

// Error is the error type carried by panics raised on contract violations
// inside the physics module.
type Error struct {
	Err string
}

func New(format string, args ...interface{}) *Error {
	return &Error{Err: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Err
}
