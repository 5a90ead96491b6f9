package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/biasaudit/internal/adapters/repository"
	service "github.com/okian/biasaudit/internal/app"
)

// maxBodyBytes bounds an evaluation request body.
const maxBodyBytes = 64 << 20

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err *Error) {
	status, code := classify(err)
	writeJSON(w, status, errorResponse{Code: code, Message: err.message()})
}

// classify maps an error kind to a status code and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// kindOf translates service and store errors into API kinds.
func kindOf(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, repository.ErrInvalidLimit):
		return ErrBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, service.ErrBackpressure):
		return ErrBackpressure
	case errors.Is(err, service.ErrNotStarted):
		return ErrUnavailable
	default:
		return ErrInternal
	}
}
