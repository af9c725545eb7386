package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeInvalidArgument   ErrorType = "invalid_argument"
	ErrorTypeStoreWriteFailure ErrorType = "store_write_failure"
	ErrorTypeStoreQueryFailure ErrorType = "store_query_failure"
	ErrorTypeUnauthorized      ErrorType = "unauthorized"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeUnavailable       ErrorType = "unavailable"
	ErrorTypeInternal          ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables. Compare with errors.Is; never mutate them.
var (
	ErrInvalidArgument = NewDomainError(ErrorTypeInvalidArgument, "invalid argument", nil)
	ErrStoreWrite      = NewDomainError(ErrorTypeStoreWriteFailure, "failed to write incident", nil)
	ErrStoreQuery      = NewDomainError(ErrorTypeStoreQueryFailure, "failed to query incidents", nil)
	ErrUnauthorized    = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidAPIKey   = NewDomainError(ErrorTypeUnauthorized, "invalid API key", nil)
	ErrNotFound        = NewDomainError(ErrorTypeNotFound, "resource not found", nil)
	ErrQueueFull       = NewDomainError(ErrorTypeUnavailable, "ingest buffer full", nil)
	ErrNotStarted      = NewDomainError(ErrorTypeUnavailable, "ingest service not running", nil)
	ErrInternal        = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// NewInvalidArgument builds an InvalidArgument error for a single request field
func NewInvalidArgument(field, message string) *DomainError {
	return NewDomainError(ErrorTypeInvalidArgument, message, nil).WithDetail("field", field)
}

// Error type checking helper functions

// IsInvalidArgument checks if an error is a caller input error
func IsInvalidArgument(err error) bool {
	return hasType(err, ErrorTypeInvalidArgument)
}

// IsStoreWriteFailure checks if an error is a failed store write
func IsStoreWriteFailure(err error) bool {
	return hasType(err, ErrorTypeStoreWriteFailure)
}

// IsStoreQueryFailure checks if an error is a failed store query
func IsStoreQueryFailure(err error) bool {
	return hasType(err, ErrorTypeStoreQueryFailure)
}

// IsStoreFailure checks if an error came from the incident store
func IsStoreFailure(err error) bool {
	return IsStoreWriteFailure(err) || IsStoreQueryFailure(err)
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return hasType(err, ErrorTypeUnauthorized)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsUnavailableError checks if an error means the service cannot take work right now
func IsUnavailableError(err error) bool {
	return hasType(err, ErrorTypeUnavailable)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return hasType(err, ErrorTypeInternal)
}

func hasType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// GetErrorMessage returns the caller-facing message of a domain error
func GetErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapStoreWrite wraps a store error raised while persisting an incident
func WrapStoreWrite(err error) *DomainError {
	return NewDomainError(ErrorTypeStoreWriteFailure, ErrStoreWrite.Message, err)
}

// WrapStoreQuery wraps a store error raised while querying incidents
func WrapStoreQuery(err error) *DomainError {
	return NewDomainError(ErrorTypeStoreQueryFailure, ErrStoreQuery.Message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
