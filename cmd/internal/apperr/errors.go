// Package apperr is shelf's domain error taxonomy.
//
// Services return *Error values; the HTTP layer reads Kind and Message and never
// serializes Cause. Store adapters classify driver failures into kinds at the
// transaction boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Error is a domain error value: a kind, the client-visible message and an optional
// internal cause kept for logs.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Status returns the HTTP status for the error's kind.
func (e *Error) Status() int { return e.Kind.Status() }

// Is matches by kind. A DuplicateResource error is also a Conflict.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return t.Kind == KindConflict && e.Kind == KindDuplicateResource
}

// NotFound reports a missing record: "<resource> with id <id> not found".
func NotFound(resource string, id any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s with id %v not found", resource, id)}
}

// Conflict reports a uniqueness violation on a named resource.
func Conflict(resource, detail string) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf("%s conflict: %s", resource, detail)}
}

// Duplicate is the Conflict specialization for a managed resource's unique field.
func Duplicate(resource, detail string) *Error {
	return &Error{Kind: KindDuplicateResource, Message: fmt.Sprintf("%s conflict: %s", resource, detail)}
}

// Authentication returns the uniform 401 error. An empty msg uses MsgAuthentication.
func Authentication(msg string) *Error {
	if msg == "" {
		msg = MsgAuthentication
	}
	return &Error{Kind: KindAuthentication, Message: msg}
}

// Validation reports structurally invalid input.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Validationf is Validation with formatting.
func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// InternalStore wraps an unclassified store failure.
func InternalStore(cause error) *Error {
	return &Error{Kind: KindInternalStore, Message: MsgInternalStore, Cause: cause}
}

// Internal wraps any other unexpected failure.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: MsgInternal, Cause: cause}
}

// FromStore translates an error that left a store adapter. Domain errors pass
// through; anything else becomes InternalStore.
func FromStore(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return InternalStore(err)
}

// From returns the domain error for err at the transport boundary.
// Unclassified errors become Internal. From(nil) is nil.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if ae := From(err); ae != nil {
		return ae.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is a Conflict or DuplicateResource error.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsDuplicate reports whether err is a DuplicateResource error.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicateResource) }
