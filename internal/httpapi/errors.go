package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"jobwatch-engine/internal/store"
)

// APIError is the body of every non-2xx JSON response.
type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// writeStoreError maps store failures onto status codes. code names the
// failed operation.
func writeStoreError(w http.ResponseWriter, r *http.Request, code string, err error) {
	var we *store.WriteError
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		WriteError(w, r, http.StatusServiceUnavailable, code, "request cancelled: "+err.Error())
	case errors.As(err, &we):
		WriteError(w, r, http.StatusInternalServerError, code, we.Op+" failed: "+err.Error())
	default:
		WriteError(w, r, http.StatusInternalServerError, code, err.Error())
	}
}
