package errors

import (
	stderrors "errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// UnifiedErrorHandler renders every handler error as application/problem+json
type UnifiedErrorHandler struct{}

// NewUnifiedErrorHandler creates a new unified error handler
func NewUnifiedErrorHandler() *UnifiedErrorHandler {
	return &UnifiedErrorHandler{}
}

// HandleError converts err to RFC 7807 and writes it
func (h *UnifiedErrorHandler) HandleError(c *gin.Context, err error) {
	var problemDetails *ProblemDetails

	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		problemDetails = NewValidationError("Request validation failed", c.Request.URL.Path).
			WithValidationErrors(FieldErrors(verrs))
	} else {
		problemDetails = ToProblemDetails(err, c.Request.URL.Path)
	}

	h.writeResponse(c, problemDetails)
}

// Middleware renders the last error attached with c.Error when nothing was written
func (h *UnifiedErrorHandler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			h.HandleError(c, c.Errors.Last().Err)
			c.Abort()
		}
	}
}

// BadRequest writes a validation problem
func (h *UnifiedErrorHandler) BadRequest(c *gin.Context, detail string, fieldErrors ...ValidationError) {
	problemDetails := NewValidationError(detail, c.Request.URL.Path)
	if len(fieldErrors) > 0 {
		problemDetails.WithValidationErrors(fieldErrors)
	}
	h.writeResponse(c, problemDetails)
}

// Unauthorized writes an unauthorized problem
func (h *UnifiedErrorHandler) Unauthorized(c *gin.Context, detail string) {
	h.writeResponse(c, NewUnauthorizedError(detail, c.Request.URL.Path))
}

// Forbidden writes a forbidden problem
func (h *UnifiedErrorHandler) Forbidden(c *gin.Context, detail string) {
	h.writeResponse(c, NewForbiddenError(detail, c.Request.URL.Path))
}

// NotFoundError writes a not found problem
func (h *UnifiedErrorHandler) NotFoundError(c *gin.Context, detail string) {
	h.writeResponse(c, NewNotFoundError(detail, c.Request.URL.Path))
}

// RateLimit writes a rate limit problem
func (h *UnifiedErrorHandler) RateLimit(c *gin.Context, detail string) {
	h.writeResponse(c, NewRateLimitError(detail, c.Request.URL.Path))
}

func (h *UnifiedErrorHandler) getTraceID(c *gin.Context) string {
	if traceID, exists := c.Get("trace_id"); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return c.GetHeader("X-Trace-ID")
}

func (h *UnifiedErrorHandler) writeResponse(c *gin.Context, problemDetails *ProblemDetails) {
	if traceID := h.getTraceID(c); traceID != "" {
		problemDetails.WithTraceID(traceID)
	}

	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(problemDetails.Status, problemDetails)
}

// FieldErrors flattens validator errors into RFC 7807 field entries
func FieldErrors(verrs validator.ValidationErrors) []ValidationError {
	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Message: validationMessage(fe),
			Code:    fe.Tag(),
		})
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return "Ensure this field has no more than " + fe.Param() + " characters."
	case "min":
		return "Ensure this value is at least " + fe.Param() + "."
	case "oneof":
		return "Must be one of: " + fe.Param() + "."
	default:
		return "Invalid value."
	}
}

// DefaultHandler is shared by the package-level helpers
var DefaultHandler = NewUnifiedErrorHandler()

// HandleError processes any error using the default handler
func HandleError(c *gin.Context, err error) {
	DefaultHandler.HandleError(c, err)
}

// UnifiedErrorMiddleware creates a middleware using the default handler
func UnifiedErrorMiddleware() gin.HandlerFunc {
	return DefaultHandler.Middleware()
}

// BadRequest writes a validation problem using the default handler
func BadRequest(c *gin.Context, detail string, fieldErrors ...ValidationError) {
	DefaultHandler.BadRequest(c, detail, fieldErrors...)
}

// Unauthorized writes an unauthorized problem using the default handler
func Unauthorized(c *gin.Context, detail string) {
	DefaultHandler.Unauthorized(c, detail)
}

// Forbidden writes a forbidden problem using the default handler
func Forbidden(c *gin.Context, detail string) {
	DefaultHandler.Forbidden(c, detail)
}

// NotFoundError writes a not found problem using the default handler
func NotFoundError(c *gin.Context, detail string) {
	DefaultHandler.NotFoundError(c, detail)
}

// RateLimit writes a rate limit problem using the default handler
func RateLimit(c *gin.Context, detail string) {
	DefaultHandler.RateLimit(c, detail)
}
