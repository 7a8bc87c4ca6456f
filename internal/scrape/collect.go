package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/scrape/types"
)

const DefaultPageSize = 10

var ErrPageLimit = errors.New("page limit reached")

// Collection is the result of one pass over the feed.
type Collection struct {
	Summaries []domain.ListingSummary
	Pages     int   // fetch calls made, including the terminal one
	Err       error // non-nil when collection stopped early; Summaries holds what was gathered
}

// Complete reports whether the feed was read to its natural end.
func (c Collection) Complete() bool { return c.Err == nil }

// Collector drives a PageFetcher from offset 0 until the feed is exhausted.
// It keeps no state between calls.
type Collector struct {
	Feed     types.PageFetcher
	PageSize int
	Delay    time.Duration // pause between full pages
	MaxPages int           // 0 = unlimited
	Log      *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// Collect reads pages until one comes back empty or short. A failed fetch
// ends collection without failing the cycle.
func (c *Collector) Collect(ctx context.Context) Collection {
	size := c.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}

	var col Collection
	offset := 0
	for {
		if c.MaxPages > 0 && col.Pages >= c.MaxPages {
			col.Err = fmt.Errorf("%w after %d pages", ErrPageLimit, col.Pages)
			log.Warn("stopping collection", zap.Int("pages", col.Pages), zap.Error(col.Err))
			return col
		}

		page, err := c.Feed.FetchPage(ctx, offset, size)
		col.Pages++
		if err != nil {
			col.Err = err
			log.Warn("failed to retrieve job data",
				zap.Int("offset", offset), zap.Int("collected", len(col.Summaries)), zap.Error(err))
			return col
		}
		if len(page) == 0 {
			return col
		}

		col.Summaries = append(col.Summaries, page...)
		if len(page) < size {
			return col
		}
		offset += size

		if err := c.pause(ctx); err != nil {
			col.Err = err
			return col
		}
	}
}

func (c *Collector) pause(ctx context.Context) error {
	if c.sleep != nil {
		return c.sleep(ctx, c.Delay)
	}
	if c.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
