package poll

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/metrics"
	"jobwatch-engine/internal/scrape"
	"jobwatch-engine/internal/scrape/types"
	"jobwatch-engine/internal/store"
)

type feed struct {
	mu    sync.Mutex
	items []domain.ListingSummary
	err   error
}

func (f *feed) set(items []domain.ListingSummary, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items, f.err = items, err
}

func (f *feed) FetchPage(_ context.Context, offset, limit int) ([]domain.ListingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if offset >= len(f.items) {
		return nil, nil
	}
	end := min(offset+limit, len(f.items))
	return f.items[offset:end], nil
}

func (f *feed) FetchDetail(_ context.Context, id int64) (*domain.ListingDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.items {
		if s.ID == id {
			return &domain.ListingDetail{ListingSummary: s, Description: "<p>" + s.Title + "</p>"}, nil
		}
	}
	return nil, errors.New("not found")
}

type notes struct {
	mu  sync.Mutex
	ids []string
}

func (n *notes) Notify(_, _, id string) {
	n.mu.Lock()
	n.ids = append(n.ids, id)
	n.mu.Unlock()
}

func summary(id int64, req string) domain.ListingSummary {
	return domain.ListingSummary{
		ID:            id,
		RequisitionID: req,
		CanonicalURL:  "https://jobs.example.com/" + req,
		Title:         "Role " + req,
	}
}

func newTestCycle(t *testing.T, f *feed, n types.Notifier, workers int) (*Cycle, *store.Store, *atomic.Value) {
	t.Helper()

	ctx := context.Background()
	st, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "jobwatch.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { _ = st.Close() })

	log := zaptest.NewLogger(t)
	var status atomic.Value
	c := NewCycle(
		&scrape.Collector{Feed: f, PageSize: 2, Log: log},
		&scrape.Reconciler{Store: st, Details: f, Notifier: n, Workers: workers, Log: log},
		&status,
	)
	c.Metrics = metrics.New(prometheus.NewRegistry())
	c.Log = log
	return c, st, &status
}

func TestCycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := &feed{}
	n := &notes{}
	c, st, status := newTestCycle(t, f, n, 1)

	f.set([]domain.ListingSummary{summary(1, "X"), summary(2, "Y")}, nil)
	rep, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Created)
	assert.ElementsMatch(t, []string{"1", "2"}, n.ids)

	f.set([]domain.ListingSummary{summary(1, "X")}, nil)
	rep, err = c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Created)
	assert.Equal(t, 1, rep.Updated)
	assert.Equal(t, 1, rep.Expired)
	assert.Len(t, n.ids, 2, "no notification for updates")

	active, err := st.List(ctx, store.ListOpts{State: "active"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "X", active[0].RequisitionID)
	assert.Equal(t, 2, active[0].TimesCrawled)

	expired, err := st.List(ctx, store.ListOpts{State: "expired"})
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "Y", expired[0].RequisitionID)

	s := status.Load().(types.ScrapeStatus)
	assert.False(t, s.Running)
	assert.Empty(t, s.LastError)
	assert.NotEmpty(t, s.LastOkAt)
	require.NotNil(t, s.LastReport)
	assert.Equal(t, 1, s.LastReport.Expired)
}

func TestCycleConcurrentWorkersOnSQLite(t *testing.T) {
	ctx := context.Background()
	f := &feed{}
	n := &notes{}
	c, st, _ := newTestCycle(t, f, n, 8)

	var all []domain.ListingSummary
	for i := 1; i <= 60; i++ {
		all = append(all, summary(int64(i), fmt.Sprintf("R%02d", i)))
	}

	f.set(all, nil)
	rep, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, rep.Created)
	assert.Zero(t, rep.WriteFailures)
	assert.Len(t, n.ids, 60)

	f.set(all[:30], nil)
	rep, err = c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Created)
	assert.Equal(t, 30, rep.Updated)
	assert.Equal(t, 30, rep.Expired)
	assert.Zero(t, rep.WriteFailures)

	active, expired, err := st.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, active)
	assert.Equal(t, 30, expired)

	rows, err := st.List(ctx, store.ListOpts{State: "active"})
	require.NoError(t, err)
	for _, l := range rows {
		assert.Equal(t, 2, l.TimesCrawled, l.RequisitionID)
	}
}

func TestCycleFeedFailureDoesNotSweep(t *testing.T) {
	ctx := context.Background()
	f := &feed{}
	c, st, status := newTestCycle(t, f, &notes{}, 1)

	f.set([]domain.ListingSummary{summary(1, "X")}, nil)
	_, err := c.Run(ctx)
	require.NoError(t, err)

	f.set(nil, errors.New("503"))
	rep, err := c.Run(ctx)
	require.Error(t, err)
	assert.True(t, rep.SweepSkipped)
	assert.Zero(t, rep.Expired)

	a, e, err := st.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, a)
	assert.Equal(t, 0, e)

	s := status.Load().(types.ScrapeStatus)
	assert.Equal(t, "503", s.LastError)
}

func TestCycleSkipped(t *testing.T) {
	c, _, status := newTestCycle(t, &feed{}, &notes{}, 1)
	c.Skipped()
	c.Skipped()
	assert.Equal(t, 2, status.Load().(types.ScrapeStatus).SkippedTicks)
}
