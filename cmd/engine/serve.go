package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/events"
	"jobwatch-engine/internal/httpapi"
	"jobwatch-engine/internal/scheduler"
)

const shutdownGrace = 30 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the crawler on its interval and serve the local API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := loadRuntime(opts)
	if err != nil {
		return err
	}
	log := rt.log
	defer func() { _ = log.Sync() }()

	unlock, err := lockDataDir(rt.cfg.App.DataDir)
	if err != nil {
		return err
	}
	defer unlock()

	hub := events.NewHub()
	a, err := buildApp(ctx, rt, hub)
	if err != nil {
		return err
	}
	defer func() { _ = a.store.Close() }()

	sched := scheduler.New(rt.cfg.Interval(), func(ctx context.Context) error {
		_, err := a.cycle.Run(ctx)
		return err
	}, log.Named("scheduler"))
	sched.OnSkip = a.cycle.Skipped

	var cfgVal atomic.Value
	cfgVal.Store(rt.cfg)
	cfgPath, dataDir := rt.cfgPath, rt.cfg.App.DataDir

	api := httpapi.Handler(httpapi.Deps{
		Store:        a.store,
		Hub:          hub,
		CfgVal:       &cfgVal,
		ScrapeStatus: a.status,
		UserCfgPath:  cfgPath,
		LoadCfg: func() (config.Config, error) {
			return loadConfig(cfgPath, dataDir)
		},
		Scheduler: sched,
		FeedTokenChanged: func() {
			a.reloadFeedToken(cfgVal.Load().(config.Config), log.Named("feed"))
		},
		Metrics: promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		Log:     log.Named("http"),
	})

	mux := http.NewServeMux()
	mux.Handle("/", api)
	token, tokenPath, err := writeShutdownToken(dataDir)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tokenPath) }()
	mux.Handle("/shutdown", shutdownHandler(token, stop))

	addr := fmt.Sprintf("127.0.0.1:%d", rt.cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Cycles outlive the signal context so shutdown can let one finish.
	// The scheduler is started before the API accepts /scrape/run.
	sched.Start(context.Background())

	serveErr := make(chan error, 1)
	go func() {
		log.Info("engine listening", zap.String("addr", "http://"+addr))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			log.Error("http server failed", zap.Error(err))
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := sched.Stop(sctx); err != nil {
		log.Warn("crawl cycle did not finish before shutdown", zap.Error(err))
	}
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	return nil
}
