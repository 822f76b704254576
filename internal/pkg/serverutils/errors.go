package serverutils

import (
	"fmt"
	"net/http"
	"time"
)

type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// AppError is an error with an HTTP status, rendered by ErrorHandlerMiddleware.
type AppError struct {
	Code    int
	Message string
	Errors  []FieldError
	// RetryAfter is set on rate limit errors.
	RetryAfter time.Duration
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewValidationError(message string, fields []FieldError) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: message, Errors: fields}
}

func NewAuthError(message string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: message}
}

func NewRateLimitError(retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       http.StatusTooManyRequests,
		Message:    "Too many requests, please slow down",
		RetryAfter: retryAfter,
	}
}

func NewUnprocessableError(message string, err error) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Message: message, Err: err}
}

func NewUpstreamError(message string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: message, Err: err}
}

func NewPersistenceError(message string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: message, Err: err}
}
