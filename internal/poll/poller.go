package poll

import (
	"sync"
	"sync/atomic"
	"time"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/scrape/types"
)

// statusBook serialises read-modify-write updates of the shared scrape
// status. Readers load the atomic.Value directly.
type statusBook struct {
	mu sync.Mutex
	v  *atomic.Value
}

func (b *statusBook) update(fn func(st *types.ScrapeStatus)) {
	if b.v == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	st := types.ScrapeStatus{}
	if cur, ok := b.v.Load().(types.ScrapeStatus); ok {
		st = cur
	}
	fn(&st)
	b.v.Store(st)
}

func (b *statusBook) started(at time.Time) {
	b.update(func(st *types.ScrapeStatus) {
		st.Running = true
		st.LastRunAt = at.Format(time.RFC3339)
	})
}

func (b *statusBook) finished(at time.Time, rep domain.ReconcileReport, err error) {
	b.update(func(st *types.ScrapeStatus) {
		st.Running = false
		st.LastAdded = rep.Created
		r := rep
		st.LastReport = &r
		if err != nil {
			st.LastError = err.Error()
			return
		}
		st.LastError = ""
		st.LastOkAt = at.Format(time.RFC3339)
	})
}

func (b *statusBook) skipped() {
	b.update(func(st *types.ScrapeStatus) {
		st.SkippedTicks++
	})
}
