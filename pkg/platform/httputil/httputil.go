// Package httputil holds the JSON request and response helpers shared by handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "iam/pkg/domain-errors"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type httpError struct {
	status int
	code   string
}

var internalError = httpError{http.StatusInternalServerError, "internal_error"}

// httpErrors maps domain codes to responses. Unlisted codes are internal errors.
var httpErrors = map[dErrors.Code]httpError{
	dErrors.CodeNotFound:     {http.StatusNotFound, "not_found"},
	dErrors.CodeBadRequest:   {http.StatusBadRequest, "bad_request"},
	dErrors.CodeInvalidInput: {http.StatusBadRequest, "bad_request"},
	dErrors.CodeValidation:   {http.StatusBadRequest, "validation_error"},
	dErrors.CodeConflict:     {http.StatusConflict, "conflict"},
	dErrors.CodeTimeout:      {http.StatusGatewayTimeout, "timeout"},
	dErrors.CodeUnavailable:  {http.StatusServiceUnavailable, "unavailable"},
}

func lookup(code dErrors.Code) httpError {
	if e, ok := httpErrors[code]; ok {
		return e
	}
	return internalError
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError answers with the status and code of err's domain code. Messages
// of internal errors, and of errors without a domain code, are not sent.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, internalError.status, ErrorResponse{Error: internalError.code})
		return
	}
	e := lookup(domainErr.Code)
	resp := ErrorResponse{Error: e.code}
	if e != internalError {
		resp.ErrorDescription = domainErr.Message
	}
	WriteJSON(w, e.status, resp)
}
