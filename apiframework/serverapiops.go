package apiframework

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// APIError is the structured error rendered to API consumers. Internal stack
// detail stays server-side; clients get a status, type, code and message.
type APIError struct {
	err       error
	message   string
	param     string
	errorType string
	errorCode string
}

func (e *APIError) Error() string {
	return e.message
}

func (e *APIError) Unwrap() error {
	return e.err
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// Encode writes v as a JSON response with the given status.
func Encode[T any](w http.ResponseWriter, _ *http.Request, status int, v T) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// Decode reads the request body into T.
func Decode[T any](r *http.Request) (T, error) {
	var v T
	if r.Body == nil {
		return v, ErrEmptyRequestBody
	}
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, fmt.Errorf("%w: decode json: %w", ErrUnprocessableEntity, err)
	}
	return v, nil
}

// Error maps err to an HTTP status for the given operation and writes the
// structured error body.
func Error(w http.ResponseWriter, r *http.Request, err error, op Operation) error {
	status := mapErrorToStatus(op, err)
	errorType, errorCode := getErrorMapping(err)
	if errorType == "" {
		errorType, errorCode = getErrorTypeAndCode(status)
	}
	message := err.Error()
	param := ""
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		message = apiErr.message
		param = apiErr.param
		if apiErr.errorType != "" {
			errorType = apiErr.errorType
			errorCode = apiErr.errorCode
		}
	}
	return Encode(w, r, status, errorResponse{Error: errorBody{
		Message: message,
		Type:    errorType,
		Code:    errorCode,
		Param:   param,
	}})
}

// getErrorTypeAndCode maps HTTP status codes to error types and codes
func getErrorTypeAndCode(status int) (string, string) {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request_error", "bad_request"
	case http.StatusNotFound:
		return "invalid_request_error", "not_found"
	case http.StatusConflict:
		return "invalid_request_error", "conflict"
	case http.StatusRequestEntityTooLarge:
		return "invalid_request_error", "request_too_large"
	case http.StatusUnsupportedMediaType:
		return "invalid_request_error", "unsupported_media"
	case http.StatusUnprocessableEntity:
		return "invalid_request_error", "unprocessable_entity"
	case http.StatusTooManyRequests:
		return "rate_limit_error", "rate_limit_exceeded"
	case http.StatusInternalServerError:
		return "api_error", "internal_error"
	default:
		return "api_error", "unknown_error"
	}
}

// AboutServer is returned by the version endpoint.
type AboutServer struct {
	Version        string `json:"version"`
	NodeInstanceID string `json:"nodeInstanceId"`
}

// GetVersion reports the module build version embedded by the toolchain.
func GetVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "(devel)"
	}
	return info.Main.Version
}
