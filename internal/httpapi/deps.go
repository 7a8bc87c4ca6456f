package httpapi

import (
	"context"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/events"
	"jobwatch-engine/internal/store"
)

// ListingReader is the read side of the store used by the API.
type ListingReader interface {
	List(ctx context.Context, opts store.ListOpts) ([]domain.Listing, error)
	Counts(ctx context.Context) (active, expired int, err error)
	Checkpoint(ctx context.Context) error
	Driver() string
}

// Trigger starts an out-of-band crawl cycle.
type Trigger interface {
	TryRun() bool
	Running() bool
}

type Deps struct {
	Store ListingReader

	Hub *events.Hub

	// Atomic stores
	CfgVal       *atomic.Value // stores config.Config
	ScrapeStatus *atomic.Value // stores types.ScrapeStatus

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	Scheduler Trigger

	// FeedTokenChanged is called after the feed token is stored or deleted.
	FeedTokenChanged func()

	// Metrics serves /metrics; nil leaves the route unregistered.
	Metrics http.Handler

	Log *zap.Logger
}
