package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/events"
	"jobwatch-engine/internal/metrics"
	"jobwatch-engine/internal/notify"
	"jobwatch-engine/internal/poll"
	"jobwatch-engine/internal/scrape"
	"jobwatch-engine/internal/scrape/eightfold"
	"jobwatch-engine/internal/scrape/types"
	"jobwatch-engine/internal/scrape/util"
	"jobwatch-engine/internal/secrets"
	"jobwatch-engine/internal/store"
)

// app is the crawl pipeline wired from config.
type app struct {
	store    *store.Store
	feed     *eightfold.Client
	cycle    *poll.Cycle
	status   *atomic.Value
	registry *prometheus.Registry
}

func buildApp(ctx context.Context, rt *runtime, hub *events.Hub) (*app, error) {
	cfg := rt.cfg
	log := rt.log

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	token, err := secrets.FeedToken(secrets.FeedKeyringAccount(cfg))
	if err != nil && !errors.Is(err, secrets.ErrTokenNotFound) {
		log.Warn("could not read feed token from keyring", zap.Error(err))
	}

	limiter := util.NewHostLimiter(cfg.Feed.RequestsPerSecond, cfg.Feed.Burst)
	client := eightfold.New(eightfold.Config{
		BaseURL:    cfg.Feed.BaseURL,
		Domain:     cfg.Feed.Domain,
		ListPath:   cfg.Feed.ListPath,
		DetailPath: cfg.Feed.DetailPath,
		Query:      cfg.Feed.Query,
		UserAgent:  cfg.Feed.UserAgent,
		Token:      token,
		Timeout:    cfg.Feed.RequestTimeout(),
	}, limiter, log.Named("feed"))

	collector := &scrape.Collector{
		Feed:     client,
		PageSize: cfg.Feed.PageSize,
		Delay:    cfg.Feed.PageDelay(),
		MaxPages: cfg.Feed.MaxPages,
		Log:      log.Named("collect"),
	}

	var sinks []types.Notifier
	var onExpire func(domain.Listing)
	if cfg.Notify.Events && hub != nil {
		h := notify.Hub{Events: hub}
		sinks = append(sinks, h)
		onExpire = h.Expired
	}
	if cfg.Notify.Log {
		sinks = append(sinks, notify.Log{Logger: log.Named("notify")})
	}
	tmpl := notify.Template{Title: cfg.Notify.Title, Footer: cfg.Notify.Footer}

	reconciler := &scrape.Reconciler{
		Store:    st,
		Details:  client,
		Notifier: notify.Multi{Sinks: sinks, Log: log.Named("notify")},
		Announce: tmpl.Render,
		OnExpire: onExpire,
		Workers:  cfg.Polling.Workers,
		Log:      log.Named("reconcile"),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var status atomic.Value
	cycle := poll.NewCycle(collector, reconciler, &status)
	cycle.Metrics = metrics.New(reg)
	cycle.Events = hub
	cycle.Interval = cfg.Interval()
	cycle.Log = log.Named("poll")

	log.Info("crawler ready",
		zap.String("feed", client.ListURL(0, cfg.Feed.PageSize)),
		zap.String("store", st.Driver()),
		zap.Bool("token", token != ""),
	)
	return &app{store: st, feed: client, cycle: cycle, status: &status, registry: reg}, nil
}

// reloadFeedToken rereads the token for cfg's feed and hands it to the
// client.
func (a *app) reloadFeedToken(cfg config.Config, log *zap.Logger) {
	token, err := secrets.FeedToken(secrets.FeedKeyringAccount(cfg))
	if err != nil && !errors.Is(err, secrets.ErrTokenNotFound) {
		log.Warn("could not read feed token from keyring", zap.Error(err))
		return
	}
	a.feed.SetToken(token)
	log.Info("feed token reloaded", zap.Bool("token", token != ""))
}
