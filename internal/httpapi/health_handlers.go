package httpapi

import (
	"net/http"
	"time"

	"jobwatch-engine/internal/events"
)

type HealthHandler struct {
	Store ListingReader
	Hub   *events.Hub
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	}
	if h.Store != nil {
		active, expired, err := h.Store.Counts(r.Context())
		if err != nil {
			body["ok"] = false
			body["error"] = err.Error()
			WriteJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		body["driver"] = h.Store.Driver()
		body["active"] = active
		body["expired"] = expired
	}
	if h.Hub != nil {
		body["events"] = map[string]any{
			"subscribers": h.Hub.Subscribers(),
			"dropped":     h.Hub.Dropped(),
		}
	}
	WriteJSON(w, http.StatusOK, body)
}
