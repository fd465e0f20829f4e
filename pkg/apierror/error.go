package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Error represents a structured API error response.
type Error struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`

	// Fields are merged into the top level of the response body so clients
	// can read values such as active_user_name without unwrapping.
	Fields map[string]interface{} `json:"-"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// WithDetails adds field-level error details.
func (e *Error) WithDetails(details ...FieldError) *Error {
	e.Details = details
	return e
}

// WithField attaches a top-level response field.
func (e *Error) WithField(key string, value interface{}) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// Is matches errors carrying the same code, so callers can use errors.Is
// against a constructor result.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ToJSON converts the error to JSON bytes.
func (e *Error) ToJSON() []byte {
	body := map[string]interface{}{
		"success": false,
		"message": e.Message,
		"error": map[string]interface{}{
			"code":    e.Code,
			"message": e.Message,
		},
	}

	if len(e.Details) > 0 {
		body["error"].(map[string]interface{})["details"] = e.Details
	}

	for k, v := range e.Fields {
		if _, reserved := body[k]; reserved {
			continue
		}
		body[k] = v
	}

	data, _ := json.Marshal(body)
	return data
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
	}
}

// ValidationError creates a 400 error with validation details.
func ValidationError(message string, details ...FieldError) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
		Message:    message,
		Details:    details,
	}
}

// InvalidBranch creates a 400 error for a branch id that does not resolve.
func InvalidBranch(branchID string) *Error {
	return (&Error{
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_BRANCH",
		Message:    "Invalid branch",
	}).WithField("branch_id", branchID)
}

// InvalidTransition creates a 400 error for an illegal lifecycle move.
func InvalidTransition(from, to string) *Error {
	return (&Error{
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_TRANSITION",
		Message:    fmt.Sprintf("Invalid status transition from %s to %s", from, to),
	}).WithField("from", from).WithField("to", to)
}

// InsufficientStock creates a 400 error for an availability shortfall.
func InsufficientStock(itemID, itemName string, requested, available int) *Error {
	msg := "Requested quantity exceeds available stock"
	if itemName != "" {
		msg = fmt.Sprintf("Requested quantity exceeds available stock for %s", itemName)
	}
	return (&Error{
		StatusCode: http.StatusBadRequest,
		Code:       "INSUFFICIENT_STOCK",
		Message:    msg,
	}).WithField("item_id", itemID).
		WithField("item_name", itemName).
		WithField("requested", requested).
		WithField("available", available)
}

// InvalidState creates a 400 error for quantities that cannot exist.
func InvalidState(message string) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_STATE",
		Message:    message,
	}
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

// InvalidCredentials creates a 401 error that does not reveal which part failed.
func InvalidCredentials() *Error {
	return &Error{
		StatusCode: http.StatusUnauthorized,
		Code:       "INVALID_CREDENTIALS",
		Message:    "Invalid email or password",
	}
}

// Forbidden creates a 403 Forbidden error.
func Forbidden(message string) *Error {
	if message == "" {
		message = "Access denied"
	}
	return &Error{
		StatusCode: http.StatusForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
	}
}

// RoleNotAllowed creates a 403 error naming the roles that would be accepted.
func RoleNotAllowed(allowed ...string) *Error {
	return (&Error{
		StatusCode: http.StatusForbidden,
		Code:       "ROLE_NOT_ALLOWED",
		Message:    fmt.Sprintf("%s only", strings.Join(allowed, " or ")),
	}).WithField("allowed_roles", allowed)
}

// NotFound creates a 404 Not Found error.
func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return &Error{
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    message,
	}
}

// Conflict creates a 409 Conflict error.
func Conflict(message string) *Error {
	return &Error{
		StatusCode: http.StatusConflict,
		Code:       "CONFLICT",
		Message:    message,
	}
}

// InternalError creates a 500 Internal Server Error.
func InternalError(message string) *Error {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
	}
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return &Error{
		StatusCode: http.StatusServiceUnavailable,
		Code:       "SERVICE_UNAVAILABLE",
		Message:    message,
	}
}
