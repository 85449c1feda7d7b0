// Package domainerrors carries coded errors across service boundaries.
//
// Services return *Error values (directly or wrapped) so transports can map
// them to status codes without inspecting messages. Infrastructure facts
// (not found, conflict) live in pkg/platform/sentinel and are translated
// into codes at the service layer.
package domainerrors

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

// Code classifies an error for callers and transports.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvalidRequest     Code = "invalid_request"
	CodeInvariantViolation Code = "invariant_violation"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"

	// Event application outcomes.
	CodeUnknownVariant         Code = "unknown_variant"
	CodeSchemaViolation        Code = "schema_violation"
	CodeUnresolvedRelationship Code = "unresolved_relationship"
	CodeInvalidTransition      Code = "invalid_transition"
	CodePostTriggerValidation  Code = "post_trigger_validation"
)

// Error is a coded domain error with an optional per-field breakdown.
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// WithFields creates a coded error carrying a field -> message map.
// The map is copied.
func WithFields(code Code, msg string, fields map[string]string) error {
	return &Error{Code: code, Message: msg, Fields: maps.Clone(fields)}
}

// As returns the outermost *Error in the chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether any *Error in the chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// FieldsOf returns the field breakdown of the outermost *Error, if any.
func FieldsOf(err error) map[string]string {
	if de, ok := As(err); ok {
		return de.Fields
	}
	return nil
}

// ToHTTPStatus maps a code to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput, CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeUnknownVariant, CodeSchemaViolation, CodeUnresolvedRelationship, CodePostTriggerValidation:
		return http.StatusUnprocessableEntity
	case CodeInvalidTransition, CodeConflict, CodeInvariantViolation:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
