package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ProblemDetails represents RFC 7807 compliant error response
type ProblemDetails struct {
	// Type is a URI reference that identifies the problem type
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Status is the HTTP status code
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence of the problem
	Detail string `json:"detail"`
	// Instance is the request path that produced the problem
	Instance  string    `json:"instance,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	TraceID   string    `json:"traceId,omitempty"`
	// Errors contains field-specific validation errors
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a field-specific validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem type URIs
const (
	TypeValidationError    = "https://finmate.app/errors/validation-error"
	TypeUnauthorized       = "https://finmate.app/errors/unauthorized"
	TypeForbidden          = "https://finmate.app/errors/forbidden"
	TypeNotFound           = "https://finmate.app/errors/not-found"
	TypeConflict           = "https://finmate.app/errors/conflict"
	TypeRateLimit          = "https://finmate.app/errors/rate-limit"
	TypeInternalError      = "https://finmate.app/errors/internal-error"
	TypeUpstreamError      = "https://finmate.app/errors/upstream-error"
	TypeServiceUnavailable = "https://finmate.app/errors/service-unavailable"
)

// Problem titles
const (
	TitleValidationError    = "Validation Error"
	TitleUnauthorized       = "Unauthorized"
	TitleForbidden          = "Forbidden"
	TitleNotFound           = "Not Found"
	TitleConflict           = "Conflict"
	TitleRateLimit          = "Rate Limit Exceeded"
	TitleInternalError      = "Internal Server Error"
	TitleUpstreamError      = "Upstream Error"
	TitleServiceUnavailable = "Service Unavailable"
)

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(problemType, title string, status int, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:      problemType,
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance,
		Timestamp: time.Now().UTC(),
	}
}

// WithTraceID adds a trace ID to the problem details
func (p *ProblemDetails) WithTraceID(traceID string) *ProblemDetails {
	p.TraceID = traceID
	return p
}

// WithValidationErrors adds validation errors to the problem details
func (p *ProblemDetails) WithValidationErrors(errors []ValidationError) *ProblemDetails {
	p.Errors = errors
	return p
}

// AddValidationError adds a single validation error
func (p *ProblemDetails) AddValidationError(field, message, code string) *ProblemDetails {
	p.Errors = append(p.Errors, ValidationError{
		Field:   field,
		Message: message,
		Code:    code,
	})
	return p
}

// Error implements the error interface
func (p *ProblemDetails) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

// NewValidationError creates a validation error
func NewValidationError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeValidationError, TitleValidationError, http.StatusBadRequest, detail, instance)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeUnauthorized, TitleUnauthorized, http.StatusUnauthorized, detail, instance)
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeForbidden, TitleForbidden, http.StatusForbidden, detail, instance)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeNotFound, TitleNotFound, http.StatusNotFound, detail, instance)
}

// NewConflictError creates a conflict error
func NewConflictError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeConflict, TitleConflict, http.StatusBadRequest, detail, instance)
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeRateLimit, TitleRateLimit, http.StatusTooManyRequests, detail, instance)
}

// NewInternalError creates an internal server error
func NewInternalError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeInternalError, TitleInternalError, http.StatusInternalServerError, detail, instance)
}

// NewUpstreamError creates a bad gateway error
func NewUpstreamError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeUpstreamError, TitleUpstreamError, http.StatusBadGateway, detail, instance)
}

// NewServiceUnavailableError creates a service unavailable error
func NewServiceUnavailableError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeServiceUnavailable, TitleServiceUnavailable, http.StatusServiceUnavailable, detail, instance)
}
