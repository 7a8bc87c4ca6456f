// Package poll runs one crawl cycle: collect the feed, reconcile it against
// the store, then sweep records that are gone.
package poll

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/events"
	"jobwatch-engine/internal/metrics"
	"jobwatch-engine/internal/scrape"
)

// Cycle wires the collector and reconciler together with status, metrics and
// event bookkeeping. Run must not be called concurrently; the scheduler
// guarantees that.
type Cycle struct {
	Collector  *scrape.Collector
	Reconciler *scrape.Reconciler
	Metrics    *metrics.Metrics
	Events     *events.Hub
	Interval   time.Duration // only used for the "next scan" log line
	Log        *zap.Logger

	status statusBook
}

// NewCycle returns a cycle that publishes its status into status, which
// must hold a types.ScrapeStatus or nothing.
func NewCycle(col *scrape.Collector, rec *scrape.Reconciler, status *atomic.Value) *Cycle {
	return &Cycle{
		Collector:  col,
		Reconciler: rec,
		status:     statusBook{v: status},
	}
}

func (c *Cycle) log() *zap.Logger {
	if c.Log != nil {
		return c.Log
	}
	return zap.NewNop()
}

// Run performs one crawl. The returned error is the reason collection
// stopped early, if any; a truncated feed still reconciles what it saw but
// never sweeps.
func (c *Cycle) Run(ctx context.Context) (domain.ReconcileReport, error) {
	start := time.Now()
	c.status.started(start)
	c.publish(events.TypeCrawlStarted, nil)

	col := c.Collector.Collect(ctx)

	var rep domain.ReconcileReport
	if col.Complete() && ctx.Err() == nil {
		rep = c.Reconciler.Reconcile(ctx, col.Summaries)
	} else {
		rep = c.Reconciler.Apply(ctx, col.Summaries)
		rep.SweepSkipped = true
		rep.Duration = time.Since(start)
		c.log().Warn("feed read incomplete, skipping no-longer-seen sweep",
			zap.Int("pages", col.Pages), zap.Int("collected", len(col.Summaries)), zap.Error(col.Err))
	}

	err := col.Err
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	result := metrics.ResultOK
	switch {
	case err != nil && len(col.Summaries) == 0:
		result = metrics.ResultError
	case err != nil || rep.SweepSkipped:
		result = metrics.ResultPartial
	}

	took := time.Since(start)
	c.Metrics.ObserveCycle(result, col.Pages, rep, took)
	c.status.finished(time.Now(), rep, err)
	c.publish(events.TypeCrawlFinished, rep)

	c.log().Info("crawl complete, next scan at "+time.Now().Add(c.Interval).Format(time.Kitchen),
		zap.String("result", result),
		zap.Int("pages", col.Pages),
		zap.Int("seen", rep.Seen),
		zap.Int("created", rep.Created),
		zap.Int("updated", rep.Updated),
		zap.Int("expired", rep.Expired),
		zap.Int("detail_failures", rep.DetailFailures),
		zap.Int("write_failures", rep.WriteFailures),
		zap.Duration("took", took),
	)
	return rep, err
}

// Skipped records a tick that was dropped because a cycle was in flight.
func (c *Cycle) Skipped() {
	c.status.skipped()
	c.Metrics.SkippedCycle()
	c.log().Info("previous crawl still running, skipping tick")
}

func (c *Cycle) publish(typ string, data any) {
	if c.Events == nil {
		return
	}
	c.Events.Publish(events.MakeEvent("", typ, 1, data))
}
