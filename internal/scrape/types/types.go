package types

import (
	"context"

	"jobwatch-engine/internal/domain"
)

type ScrapeStatus struct {
	LastRunAt    string                  `json:"last_run_at"`
	LastOkAt     string                  `json:"last_ok_at"`
	LastError    string                  `json:"last_error"`
	LastAdded    int                     `json:"last_added"`
	LastReport   *domain.ReconcileReport `json:"last_report,omitempty"`
	Running      bool                    `json:"running"`
	SkippedTicks int                     `json:"skipped_ticks"`
}

// PageFetcher returns one page of listing summaries starting at offset.
type PageFetcher interface {
	FetchPage(ctx context.Context, offset, limit int) ([]domain.ListingSummary, error)
}

// DetailFetcher returns the full posting for an external id.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, id int64) (*domain.ListingDetail, error)
}

// ListingStore hands out independent units of work; concurrent steps on
// different identity keys each use their own transaction.
type ListingStore interface {
	Begin(ctx context.Context) (ListingTx, error)
}

type ListingTx interface {
	// FindByIdentity returns the active record for key, or nil when none exists.
	FindByIdentity(ctx context.Context, key domain.IdentityKey) (*domain.Listing, error)
	// Insert persists a new record and sets its surrogate ID.
	Insert(ctx context.Context, l *domain.Listing) error
	Update(ctx context.Context, l *domain.Listing) error
	// AllActive returns every record whose NoLongerSeen is not true.
	AllActive(ctx context.Context) ([]domain.Listing, error)
	Commit() error
	Rollback() error
}

// Notifier is a fire-and-forget sink; implementations must not block and
// must swallow their own failures.
type Notifier interface {
	Notify(title, body, referenceID string)
}
