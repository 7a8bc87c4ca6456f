package httpapi

import (
	"net/http"
	"sync/atomic"

	"jobwatch-engine/internal/scrape/types"
)

type ScrapeHandler struct {
	ScrapeStatus *atomic.Value // types.ScrapeStatus
	Scheduler    Trigger
}

func (h ScrapeHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, _ := h.ScrapeStatus.Load().(types.ScrapeStatus)
	if h.Scheduler != nil {
		st.Running = h.Scheduler.Running()
	}
	WriteJSON(w, http.StatusOK, st)
}

// Run starts a cycle now. It never queues: a cycle already in flight makes
// this a no-op reported as 409.
func (h ScrapeHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "no_scheduler", "crawler is not running")
		return
	}
	if !h.Scheduler.TryRun() {
		WriteJSON(w, http.StatusConflict, map[string]any{"ok": false, "msg": "already running"})
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
