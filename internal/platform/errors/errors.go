// Package errors provides the relay's structured error taxonomy and HTTP status mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the category of an error, used for metrics labels and drop decisions.
type ErrorType string

const (
	// TypeDecode indicates inbound bytes that are not a structured document.
	TypeDecode ErrorType = "decode"
	// TypeValidation indicates a well-formed envelope with an invalid field.
	TypeValidation ErrorType = "validation"
	// TypeTransport indicates a send or receive failure on one connection.
	TypeTransport ErrorType = "transport"
	// TypeUnresponsive indicates a peer that failed a liveness probe.
	TypeUnresponsive ErrorType = "unresponsive"
	// TypeRejected indicates a connection refused at admission (HTTP 429).
	TypeRejected ErrorType = "rejected"
	// TypeInternal indicates a server-side error (HTTP 500).
	TypeInternal ErrorType = "internal"
)

// Error represents a structured error with type, message, and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeDecode, TypeValidation:
		return http.StatusBadRequest
	case TypeRejected:
		return http.StatusTooManyRequests
	case TypeTransport, TypeUnresponsive:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause, Context: make(map[string]any)}
}

func DecodeError(cause error) *Error {
	return newError(TypeDecode, "malformed envelope", cause)
}

func ValidationError(message string) *Error {
	return newError(TypeValidation, message, nil)
}

func TransportError(message string, cause error) *Error {
	return newError(TypeTransport, message, cause)
}

func UnresponsiveError(message string) *Error {
	return newError(TypeUnresponsive, message, nil)
}

func RejectedError(message string) *Error {
	return newError(TypeRejected, message, nil)
}

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

// WithContext adds a context field to the error (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse represents the JSON structure sent to HTTP clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Type: e.Type, Context: e.Context}
}

// TypeOf returns the structured type of err, or TypeInternal for unstructured errors.
func TypeOf(err error) ErrorType {
	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr.Type
	}
	return TypeInternal
}

// IsDropped reports whether err belongs to the classes that are silently discarded:
// decode and validation failures never reach the peer.
func IsDropped(err error) bool {
	t := TypeOf(err)
	return err != nil && (t == TypeDecode || t == TypeValidation)
}

// AsStructuredError converts any error into a structured Error.
// Unstructured errors are wrapped as internal errors.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return InternalError("internal server error", err)
}
