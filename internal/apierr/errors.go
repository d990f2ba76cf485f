// Package apierr defines the structured error responses of the ops
// API. Every error carries a stable machine-readable code so clients
// can branch on failures without parsing messages.
package apierr

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/onnwee/nstore/internal/logger"
)

// ErrorCode represents a structured error code.
type ErrorCode string

const (
	// STORE_ - namespace and key errors
	ErrStoreInvalidNamespace ErrorCode = "STORE_INVALID_NAMESPACE"
	ErrStoreInvalidKey       ErrorCode = "STORE_INVALID_KEY"
	ErrStoreDisabled         ErrorCode = "STORE_DISABLED"
	ErrStoreIO               ErrorCode = "STORE_IO_FAILED"
	ErrStoreTooLarge         ErrorCode = "STORE_CONTENT_TOO_LARGE"

	// VALIDATION_ - request validation errors
	ErrValidationInvalidJSON  ErrorCode = "VALIDATION_INVALID_JSON"
	ErrValidationMissingField ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrValidationInvalidValue ErrorCode = "VALIDATION_INVALID_VALUE"

	// RESOURCE_ - resource errors
	ErrResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"

	// SYSTEM_ - system and server errors
	ErrSystemInternal    ErrorCode = "SYSTEM_INTERNAL"
	ErrSystemUnavailable ErrorCode = "SYSTEM_UNAVAILABLE"

	// RATE_LIMIT_ - rate limiting errors
	ErrRateLimitGlobal ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP     ErrorCode = "RATE_LIMIT_IP"
)

// Error represents a structured API error.
type Error struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	status    int
}

// ErrorResponse is the top-level error response wrapper.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// New creates a new API error.
func New(code ErrorCode, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		status:  status,
	}
}

// WithDetails adds details to the error.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to the error.
func (e *Error) WithRequestID(requestID string) *Error {
	e.RequestID = requestID
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code.
func (e *Error) Status() int {
	return e.status
}

// WriteError writes a structured error response.
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

// InvalidNamespace reports a namespace that fails token validation.
func InvalidNamespace(namespace string) *Error {
	return New(ErrStoreInvalidNamespace, "Invalid namespace token", http.StatusBadRequest).
		WithDetails(map[string]interface{}{"namespace": namespace})
}

// InvalidKey reports a key that fails token validation.
func InvalidKey(key string) *Error {
	return New(ErrStoreInvalidKey, "Invalid key token", http.StatusBadRequest).
		WithDetails(map[string]interface{}{"key": key})
}

// StoreDisabled reports an operation that needs persistence while the
// store runs memory-only.
func StoreDisabled() *Error {
	return New(ErrStoreDisabled, "Persistent storage is disabled", http.StatusConflict)
}

// StoreIO reports a storage-layer failure.
func StoreIO(message string) *Error {
	if message == "" {
		message = "Storage operation failed"
	}
	return New(ErrStoreIO, message, http.StatusInternalServerError)
}

// ContentTooLarge reports content over the namespace size cap.
func ContentTooLarge() *Error {
	return New(ErrStoreTooLarge, "Content exceeds the namespace size cap", http.StatusRequestEntityTooLarge)
}

// ValidationInvalidJSON creates an invalid JSON error.
func ValidationInvalidJSON() *Error {
	return New(ErrValidationInvalidJSON, "Invalid JSON request body", http.StatusBadRequest)
}

// ValidationMissingField creates a missing field error.
func ValidationMissingField(field string) *Error {
	return New(ErrValidationMissingField, "Missing required field: "+field, http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": field})
}

// ValidationInvalidValue creates an invalid value error.
func ValidationInvalidValue(field string, message string) *Error {
	if message == "" {
		message = "Invalid value for field: " + field
	}
	return New(ErrValidationInvalidValue, message, http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": field})
}

// ResourceNotFound creates a resource not found error.
func ResourceNotFound(resourceType string) *Error {
	return New(ErrResourceNotFound, resourceType+" not found", http.StatusNotFound).
		WithDetails(map[string]interface{}{"resource_type": resourceType})
}

// SystemInternal creates an internal server error.
func SystemInternal(message string) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return New(ErrSystemInternal, message, http.StatusInternalServerError)
}

// SystemUnavailable creates a service unavailable error.
func SystemUnavailable(message string) *Error {
	if message == "" {
		message = "Service unavailable"
	}
	return New(ErrSystemUnavailable, message, http.StatusServiceUnavailable)
}

// RateLimitGlobal creates a global rate limit error.
func RateLimitGlobal() *Error {
	return New(ErrRateLimitGlobal, "Rate limit exceeded - too many requests globally", http.StatusTooManyRequests)
}

// RateLimitIP creates an IP rate limit error.
func RateLimitIP() *Error {
	return New(ErrRateLimitIP, "Rate limit exceeded - too many requests from your IP", http.StatusTooManyRequests)
}

// GetRequestID extracts the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// WriteErrorWithContext writes a structured error response with the
// request ID taken from the request context.
func WriteErrorWithContext(w http.ResponseWriter, r *http.Request, err *Error) {
	if reqID := GetRequestID(r.Context()); reqID != "" {
		err = err.WithRequestID(reqID)
	}
	WriteError(w, err)
}
