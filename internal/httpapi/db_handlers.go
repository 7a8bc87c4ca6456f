package httpapi

import (
	"net"
	"net/http"
)

type DBHandler struct {
	Store ListingReader
}

// Checkpoint flushes the SQLite WAL. Loopback callers only.
func (h DBHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host != "127.0.0.1" && host != "::1" && host != "localhost" {
		WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden")
		return
	}

	if err := h.Store.Checkpoint(r.Context()); err != nil {
		writeStoreError(w, r, "checkpoint_failed", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
