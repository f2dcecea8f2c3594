package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Project not found")
		assert.Equal(t, "NOT_FOUND: Project not found", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("database connection failed")
		err := Wrap(ErrCodeDatabase, "Database error", cause)
		assert.Contains(t, err.Error(), "DATABASE_ERROR")
		assert.Contains(t, err.Error(), "Database error")
		assert.Contains(t, err.Error(), "database connection failed")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"field": "name", "reason": "empty"}
		err := New(ErrCodeValidation, "Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"Unauthorized", func() *AppError { return Unauthorized("test") }, ErrCodeUnauthorized},
		{"Forbidden", func() *AppError { return Forbidden("Project") }, ErrCodeForbidden},
		{"InvalidToken", func() *AppError { return InvalidToken() }, ErrCodeInvalidToken},
		{"InvalidCredentials", func() *AppError { return InvalidCredentials() }, ErrCodeInvalidPassword},
		{"SessionExpired", func() *AppError { return SessionExpired() }, ErrCodeSessionExpired},
		{"NotFound", func() *AppError { return NotFound("Project") }, ErrCodeNotFound},
		{"AlreadyExists", func() *AppError { return AlreadyExists("Portal token") }, ErrCodeAlreadyExists},
		{"ValidationError", func() *AppError { return ValidationError("test") }, ErrCodeValidation},
		{"InvalidInput", func() *AppError { return InvalidInput("status", "unknown") }, ErrCodeInvalidInput},
		{"MissingRequired", func() *AppError { return MissingRequired("name") }, ErrCodeMissingRequired},
		{"RateLimitExceeded", func() *AppError { return RateLimitExceeded() }, ErrCodeRateLimitExceeded},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
		{"Unavailable", func() *AppError { return Unavailable("test") }, ErrCodeUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.constructor()
			assert.Equal(t, tc.expectedCode, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestForbiddenDoesNotNameRow(t *testing.T) {
	err := Forbidden("Project")
	assert.Equal(t, "Project is outside your scope", err.Message)
	assert.Nil(t, err.Details)
}

func TestTransientWrappers(t *testing.T) {
	cause := errors.New("connection refused")

	t.Run("Database", func(t *testing.T) {
		err := Database(cause)
		assert.Equal(t, ErrCodeDatabase, err.Code)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("Storage", func(t *testing.T) {
		err := Storage(cause)
		assert.Equal(t, ErrCodeStorage, err.Code)
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestAsAppError(t *testing.T) {
	t.Run("extracts wrapped AppError", func(t *testing.T) {
		original := NotFound("Client")
		wrapped := fmt.Errorf("load client: %w", original)
		extracted, ok := AsAppError(wrapped)
		assert.True(t, ok)
		assert.Equal(t, original, extracted)
	})

	t.Run("returns false for non-AppError", func(t *testing.T) {
		extracted, ok := AsAppError(errors.New("standard error"))
		assert.False(t, ok)
		assert.Nil(t, extracted)
	})
}

func TestGetCodeAndHasCode(t *testing.T) {
	assert.Equal(t, ErrCodeForbidden, GetCode(Forbidden("Project")))
	assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
	assert.True(t, HasCode(fmt.Errorf("x: %w", InvalidToken()), ErrCodeInvalidToken))
	assert.False(t, HasCode(NotFound("Project"), ErrCodeForbidden))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(Database(errors.New("x"))))
	assert.True(t, IsTransient(Storage(errors.New("x"))))
	assert.True(t, IsTransient(errors.New("unclassified")))
	assert.False(t, IsTransient(NotFound("Project")))
	assert.False(t, IsTransient(Forbidden("Project")))
	assert.False(t, IsTransient(ValidationError("x")))
}
