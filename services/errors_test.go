package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeStoreWriteFailure, "write failed", baseErr)

	assert.Equal(t, ErrorTypeStoreWriteFailure, domainErr.Type)
	assert.Equal(t, "write failed", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeStoreQueryFailure,
				Message: "failed to query incidents",
				Err:     errors.New("connection refused"),
			},
			wantMsg: "store_query_failure: failed to query incidents (connection refused)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeInvalidArgument,
				Message: "severity is required",
			},
			wantMsg: "invalid_argument: severity is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInternal, "internal error", baseErr)

	assert.Equal(t, baseErr, errors.Unwrap(domainErr))
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same error type", NewInvalidArgument("limit", "limit must be positive"), ErrInvalidArgument, true},
		{"different error type", WrapStoreQuery(errors.New("boom")), ErrInvalidArgument, false},
		{"store query", WrapStoreQuery(errors.New("boom")), ErrStoreQuery, true},
		{"not a domain error target", ErrInternal, errors.New("regular error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestNewInvalidArgument(t *testing.T) {
	err := NewInvalidArgument("severity", "severity must be one of Critical, High, Medium, Low")

	assert.True(t, IsInvalidArgument(err))
	assert.Equal(t, "severity", GetErrorDetails(err)["field"])
	assert.Equal(t, "severity must be one of Critical, High, Medium, Low", GetErrorMessage(err))
}

func TestErrorTypeHelpers(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"invalid argument", NewInvalidArgument("from", "bad"), IsInvalidArgument, true},
		{"wrapped invalid argument", fmt.Errorf("wrapped: %w", NewInvalidArgument("from", "bad")), IsInvalidArgument, true},
		{"store write", WrapStoreWrite(cause), IsStoreWriteFailure, true},
		{"store write is store failure", WrapStoreWrite(cause), IsStoreFailure, true},
		{"store query is store failure", WrapStoreQuery(cause), IsStoreFailure, true},
		{"store query is not write", WrapStoreQuery(cause), IsStoreWriteFailure, false},
		{"unauthorized", ErrInvalidAPIKey, IsUnauthorizedError, true},
		{"not found", ErrNotFound, IsNotFoundError, true},
		{"unavailable", ErrQueueFull, IsUnavailableError, true},
		{"internal", WrapInternal("oops", cause), IsInternalError, true},
		{"regular error", cause, IsInvalidArgument, false},
		{"nil error", nil, IsStoreFailure, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestWrapStoreWrite_KeepsCause(t *testing.T) {
	cause := errors.New("ProvisionedThroughputExceededException")
	err := WrapStoreWrite(cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to write incident", GetErrorMessage(err))
	assert.Equal(t, ErrorTypeStoreWriteFailure, GetErrorType(err))
}

func TestGetErrorType_NonDomain(t *testing.T) {
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("plain")))
	assert.Nil(t, GetErrorDetails(errors.New("plain")))
	assert.Equal(t, "plain", GetErrorMessage(errors.New("plain")))
}

func TestWrapError(t *testing.T) {
	err := WrapError(ErrorTypeNotFound, "missing", nil)
	assert.True(t, IsNotFoundError(err))
}
