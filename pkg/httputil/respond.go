package httputil

import (
	"encoding/json"
	"net/http"

	flerrors "github.com/matzehuels/flashlight/pkg/errors"
)

// errorResponse is the JSON body written for failed requests.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// WriteJSON writes v as a JSON response with the given status code.
// Encoding errors after the header has been written can only be logged by
// the caller's middleware, so they are ignored here.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err as a structured JSON error response. Structured
// errors (pkg/errors) map their code to an HTTP status; everything else
// is a 500.
func WriteError(w http.ResponseWriter, err error) {
	var resp errorResponse
	resp.Error.Code = string(flerrors.ErrCodeInternal)
	resp.Error.Message = flerrors.UserMessage(err)

	status := http.StatusInternalServerError
	if code := flerrors.GetCode(err); code != "" {
		resp.Error.Code = string(code)
		status = statusFor(code)
	}
	WriteJSON(w, status, resp)
}

// statusFor maps structured error codes to HTTP status codes.
func statusFor(code flerrors.Code) int {
	switch code {
	case flerrors.ErrCodeInvalidOption, flerrors.ErrCodeInvalidKey, flerrors.ErrCodeInvalidConfig, flerrors.ErrCodeInvalidSource:
		return http.StatusBadRequest
	case flerrors.ErrCodeNotFound, flerrors.ErrCodePageNotFound, flerrors.ErrCodeItemNotFound:
		return http.StatusNotFound
	case flerrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case flerrors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
