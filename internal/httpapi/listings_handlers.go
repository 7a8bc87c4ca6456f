package httpapi

import (
	"net/http"
	"strconv"

	"jobwatch-engine/internal/store"
)

type ListingsHandler struct {
	Store ListingReader
}

func (h ListingsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	state := q.Get("state")
	switch state {
	case "", "active", "expired", "all":
	default:
		WriteError(w, r, http.StatusBadRequest, "bad_state", "state must be active, expired or all")
		return
	}

	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			WriteError(w, r, http.StatusBadRequest, "bad_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	listings, err := h.Store.List(r.Context(), store.ListOpts{
		State: state, Sort: q.Get("sort"), Limit: limit,
	})
	if err != nil {
		writeStoreError(w, r, "store_error", err)
		return
	}

	withText := q.Get("text") == "1"
	out := make([]ListingView, 0, len(listings))
	for _, l := range listings {
		out = append(out, viewOf(l, withText))
	}
	WriteJSON(w, http.StatusOK, out)
}
