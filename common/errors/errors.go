package errors

import (
	stderrors "errors"
	"fmt"
)

// Sentinel kinds returned by services. Handlers map them to HTTP statuses.
var (
	ErrInvalid      = stderrors.New("invalid request")
	ErrUnauthorized = stderrors.New("unauthorized")
	ErrForbidden    = stderrors.New("forbidden")
	ErrNotFound     = stderrors.New("not found")
	ErrConflict     = stderrors.New("already exists")
	ErrUnavailable  = stderrors.New("service unavailable")
	ErrUpstream     = stderrors.New("upstream failure")
)

// Error carries a user-facing message together with its kind
type Error struct {
	Kind    error
	Message string
	Field   string
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match the kind
func (e *Error) Unwrap() error {
	return e.Kind
}

// New creates an Error of the given kind
func New(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewField creates an Error attributed to a request field
func NewField(kind error, field, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// ToProblemDetails converts a service error into RFC 7807 form
func ToProblemDetails(err error, instance string) *ProblemDetails {
	var pd *ProblemDetails
	if stderrors.As(err, &pd) {
		return pd
	}

	detail := err.Error()
	var appErr *Error
	if stderrors.As(err, &appErr) {
		detail = appErr.Message
	}

	switch {
	case stderrors.Is(err, ErrInvalid):
		pd = NewValidationError(detail, instance)
	case stderrors.Is(err, ErrUnauthorized):
		pd = NewUnauthorizedError(detail, instance)
	case stderrors.Is(err, ErrForbidden):
		pd = NewForbiddenError(detail, instance)
	case stderrors.Is(err, ErrNotFound):
		pd = NewNotFoundError(detail, instance)
	case stderrors.Is(err, ErrConflict):
		pd = NewConflictError(detail, instance)
	case stderrors.Is(err, ErrUnavailable):
		pd = NewServiceUnavailableError(detail, instance)
	case stderrors.Is(err, ErrUpstream):
		pd = NewUpstreamError(detail, instance)
	default:
		// internals are logged, not echoed
		pd = NewInternalError("Internal server error", instance)
	}

	if appErr != nil && appErr.Field != "" {
		pd.AddValidationError(appErr.Field, appErr.Message, "invalid")
	}
	return pd
}
