// Package serviceerr defines the coded error shared by the client stores.
package serviceerr

import "fmt"

// Error pairs an operation.reason code with the failure that caused it.
type Error struct {
	code string
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the operation.reason code, for example "cards.fetch.request".
func (e *Error) Code() string {
	return e.code
}

// New builds an Error coded operation.reason wrapping cause, which may be nil.
func New(operation, reason string, cause error) error {
	return &Error{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}
