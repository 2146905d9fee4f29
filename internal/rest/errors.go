package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// APIError is an HTTP error response from the backend.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// errorEnvelope covers the error body shapes the backend is known to emit:
// {"error":{"code","message"}}, {"error":"..."} and {"message":"..."}.
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// parseAPIError builds an *APIError from an error response body, falling back
// to the given generic message when no server message can be extracted.
func parseAPIError(statusCode int, body []byte, fallback string) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Message: fallback}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apiErr
	}

	if env.Message != "" {
		apiErr.Message = env.Message
	}
	if len(env.Error) > 0 {
		var detail errorDetail
		if err := json.Unmarshal(env.Error, &detail); err == nil && detail.Message != "" {
			apiErr.Code = detail.Code
			apiErr.Message = detail.Message
			return apiErr
		}
		var msg string
		if err := json.Unmarshal(env.Error, &msg); err == nil && msg != "" {
			apiErr.Message = msg
		}
	}
	return apiErr
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsAuthError reports whether err indicates a rejected or expired token:
// a 401/403 status, or a server message mentioning a token problem.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "token") || strings.Contains(msg, "unauthorized")
}
