package apierror

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrBadRequest        ErrorCode = "BAD_REQUEST"
	ErrInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrRejected          ErrorCode = "REJECTED"
	ErrUpstream          ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrInternalServer    ErrorCode = "INTERNAL_SERVER_ERROR"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	logrus.Error(details)
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// MapErrorToHTTPStatus converts an error into the HTTP status the dashboard
// API responds with. Upstream unavailability surfaces as 502 so the UI can
// distinguish "scheduler is down" from a bug in this service.
func MapErrorToHTTPStatus(err error) int {
	if apiErr, ok := err.(APIError); ok {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrBadRequest, ErrInvalidInput:
			return http.StatusBadRequest
		case ErrRejected:
			return http.StatusUnprocessableEntity
		case ErrUpstream:
			return http.StatusBadGateway
		case ErrMalformedResponse, ErrInternalServer:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

// Code extracts the APIError code from an error, or empty when the error is
// not an APIError.
func Code(err error) ErrorCode {
	if apiErr, ok := err.(APIError); ok {
		return apiErr.Code
	}
	return ""
}
