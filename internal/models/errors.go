package models

import (
	"errors"
	"net/http"
)

var (
	ErrNoRecord         = errors.New("models: no matching record found")
	ErrUserNotFound     = errors.New("models: user not found")
	ErrSignatureInvalid = errors.New("models: signature verification failed")
)

// Error codes mirroring the mobile client's SDK error contract.
const (
	CodeUnauthenticated    = "unauthenticated"
	CodeInvalidArgument    = "invalid-argument"
	CodeFailedPrecondition = "failed-precondition"
	CodeNotFound           = "not-found"
	CodeInternal           = "internal"
)

// APIError is a categorized, client-visible error. Its message survives all
// wrapping; anything that is not an APIError collapses to a generic internal
// error before it reaches the client so upstream payloads never leak.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return e.Message }

func Unauthenticated(msg string) *APIError {
	return &APIError{Code: CodeUnauthenticated, Message: msg}
}

func InvalidArgument(msg string) *APIError {
	return &APIError{Code: CodeInvalidArgument, Message: msg}
}

func FailedPrecondition(msg string) *APIError {
	return &APIError{Code: CodeFailedPrecondition, Message: msg}
}

func NotFound(msg string) *APIError {
	return &APIError{Code: CodeNotFound, Message: msg}
}

func Internal(msg string) *APIError {
	return &APIError{Code: CodeInternal, Message: msg}
}

// AsAPIError extracts a categorized error, or wraps err generically.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("internal error")
}

func (e *APIError) HTTPStatus() int {
	switch e.Code {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeFailedPrecondition:
		return http.StatusPreconditionFailed
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
