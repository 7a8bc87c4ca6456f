package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// NewMux returns the raw mux; Handler wraps it with the middleware chain.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	hh := HealthHandler{Store: d.Store, Hub: d.Hub}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	// Listings
	lh := ListingsHandler{Store: d.Store}
	mux.HandleFunc("/listings", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.List,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
		Hub:         d.Hub,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sh := SecretsHandler{CfgVal: d.CfgVal, Changed: d.FeedTokenChanged}
	mux.HandleFunc("/api/secrets/feed", methodMux(map[string]http.HandlerFunc{
		http.MethodPost:   sh.SetFeedToken,
		http.MethodDelete: sh.DeleteFeedToken,
	}))

	// Scrape
	sch := ScrapeHandler{ScrapeStatus: d.ScrapeStatus, Scheduler: d.Scheduler}
	mux.HandleFunc("/scrape/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sch.Status,
	}))
	mux.HandleFunc("/scrape/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sch.Run,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	dh := DBHandler{Store: d.Store}
	mux.HandleFunc("/db/checkpoint", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: dh.Checkpoint,
	}))

	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics)
	}

	return mux
}

// Handler is the full API with request ids, panic recovery, access logs
// and CORS.
func Handler(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return Chain(NewMux(d), RequestID, Recover(log), AccessLog(log), Cors)
}
