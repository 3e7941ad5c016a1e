// Package httputil writes JSON responses and maps errors to HTTP status codes.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"phoneintel/pkg/platform/sentinel"
)

// Error codes returned in the "error" field.
const (
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeNotFound     = "not_found"
	CodeUnavailable  = "service_unavailable"
	CodeTimeout      = "timeout"
	CodeInternal     = "internal_error"
)

// Error is an error that already knows its HTTP representation.
type Error struct {
	Status      int
	Code        string
	Description string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates an Error.
func NewError(status int, code, description string) *Error {
	return &Error{Status: status, Code: code, Description: description}
}

// BadRequest wraps err as a 400 whose description is shown to the client.
func BadRequest(description string, err error) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeBadRequest, Description: description, Err: err}
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status and writes an error body. Internal errors
// never leak their description.
func WriteError(w http.ResponseWriter, err error) {
	status, body := classify(err)
	WriteJSON(w, status, body)
}

func classify(err error) (int, errorBody) {
	var he *Error
	if errors.As(err, &he) {
		if he.Status >= http.StatusInternalServerError {
			return he.Status, errorBody{Error: he.Code}
		}
		return he.Status, errorBody{Error: he.Code, ErrorDescription: he.Description}
	}
	switch {
	case errors.Is(err, sentinel.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Error: CodeBadRequest, ErrorDescription: err.Error()}
	case errors.Is(err, sentinel.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: CodeNotFound, ErrorDescription: err.Error()}
	case errors.Is(err, sentinel.ErrUnavailable):
		return http.StatusServiceUnavailable, errorBody{Error: CodeUnavailable}
	default:
		return http.StatusInternalServerError, errorBody{Error: CodeInternal}
	}
}
