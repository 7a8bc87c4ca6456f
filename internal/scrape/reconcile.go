package scrape

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/scrape/types"
	"jobwatch-engine/internal/scrape/util"
)

const DefaultWorkers = 4

// Announcement renders the notification title and body for a new listing.
type Announcement func(l domain.Listing) (title, body string)

// Reconciler applies a collected listing set to the persisted records.
type Reconciler struct {
	Store    types.ListingStore
	Details  types.DetailFetcher
	Notifier types.Notifier
	Announce Announcement
	// OnExpire, when set, is told about each record the sweep retired.
	OnExpire func(l domain.Listing)
	Workers  int
	Log      *zap.Logger
	Now      func() time.Time
}

type tally struct {
	created, updated, detailFailures, writeFailures atomic.Int32
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

func (r *Reconciler) log() *zap.Logger {
	if r.Log != nil {
		return r.Log
	}
	return zap.NewNop()
}

// Reconcile creates or updates a record for every summary and then expires
// every active record whose identity is absent from current.
func (r *Reconciler) Reconcile(ctx context.Context, current []domain.ListingSummary) domain.ReconcileReport {
	start := time.Now()
	rep := r.Apply(ctx, current)
	if ctx.Err() != nil {
		rep.SweepSkipped = true
		r.log().Warn("cycle cancelled, skipping no-longer-seen sweep", zap.Error(ctx.Err()))
	} else {
		expired, failed := r.Sweep(ctx, current)
		rep.Expired = expired
		rep.WriteFailures += failed
	}
	rep.Duration = time.Since(start)
	return rep
}

// Apply runs the per-summary create/update step on a bounded worker pool
// and returns once every step has finished.
func (r *Reconciler) Apply(ctx context.Context, current []domain.ListingSummary) domain.ReconcileReport {
	var rep domain.ReconcileReport
	rep.Seen = len(current)

	unique := make([]domain.ListingSummary, 0, len(current))
	seen := make(map[domain.IdentityKey]bool, len(current))
	for _, s := range current {
		key := s.Key()
		if key.RequisitionID == "" && key.CanonicalURL == "" {
			rep.Invalid++
			r.log().Warn("listing has no identity, skipping", zap.Int64("id", s.ID), zap.String("title", s.Title))
			continue
		}
		if seen[key] {
			rep.Duplicates++
			r.log().Warn("duplicate listing in feed, keeping the first",
				zap.String("key", key.String()), zap.Int64("id", s.ID))
			continue
		}
		seen[key] = true
		unique = append(unique, s)
	}

	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var t tally
	var g errgroup.Group
	g.SetLimit(workers)
	for _, s := range unique {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r.step(ctx, s, &t)
			return nil
		})
	}
	_ = g.Wait()

	rep.Created = int(t.created.Load())
	rep.Updated = int(t.updated.Load())
	rep.DetailFailures = int(t.detailFailures.Load())
	rep.WriteFailures = int(t.writeFailures.Load())
	return rep
}

func (r *Reconciler) step(ctx context.Context, s domain.ListingSummary, t *tally) {
	key := s.Key()
	log := r.log().With(zap.String("req_id", key.RequisitionID), zap.String("url", key.CanonicalURL))

	updated, found, err := r.touch(ctx, key)
	if err != nil {
		t.writeFailures.Add(1)
		log.Error("failed to update job data", zap.Error(err))
		return
	}
	if found {
		if updated {
			t.updated.Add(1)
		}
		return
	}

	// No transaction is held across the detail request.
	detail, err := r.Details.FetchDetail(ctx, s.ID)
	if err != nil || detail == nil {
		t.detailFailures.Add(1)
		log.Warn("failed to retrieve full data for job", zap.String("title", s.Title), zap.Error(err))
		return
	}

	l := newListing(key, s, detail, r.now())
	if err := r.insert(ctx, &l); err != nil {
		t.writeFailures.Add(1)
		log.Error("failed to save new job data", zap.String("title", l.Title), zap.Error(err))
		return
	}
	t.created.Add(1)
	log.Info("new job found", zap.Int64("id", l.ID), zap.String("title", l.Title))

	if r.Notifier != nil {
		announce := r.Announce
		if announce == nil {
			announce = defaultAnnouncement
		}
		title, body := announce(l)
		r.Notifier.Notify(title, body, strconv.FormatInt(l.JobID, 10))
	}
}

// touch bumps crawl metadata on the active record for key. found is false
// when no active record exists.
func (r *Reconciler) touch(ctx context.Context, key domain.IdentityKey) (updated, found bool, err error) {
	tx, err := r.Store.Begin(ctx)
	if err != nil {
		return false, false, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := tx.FindByIdentity(ctx, key)
	if err != nil || existing == nil {
		return false, false, err
	}

	existing.Observe(r.now())
	if err := tx.Update(ctx, existing); err != nil {
		return false, true, err
	}
	if err := tx.Commit(); err != nil {
		return false, true, err
	}
	return true, true, nil
}

func (r *Reconciler) insert(ctx context.Context, l *domain.Listing) error {
	tx, err := r.Store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.Insert(ctx, l); err != nil {
		return err
	}
	return tx.Commit()
}

// Sweep marks every active record whose identity is not in current as no
// longer seen. It must only run after Apply has returned.
func (r *Reconciler) Sweep(ctx context.Context, current []domain.ListingSummary) (expired, failed int) {
	keys := make(map[domain.IdentityKey]struct{}, len(current))
	for _, s := range current {
		keys[s.Key()] = struct{}{}
	}

	active, err := r.allActive(ctx)
	if err != nil {
		r.log().Error("failed to load active jobs for sweep", zap.Error(err))
		return 0, 1
	}

	for i := range active {
		l := active[i]
		if _, ok := keys[l.Key()]; ok {
			continue
		}
		if ctx.Err() != nil {
			r.log().Warn("sweep interrupted", zap.Int("expired", expired), zap.Error(ctx.Err()))
			return expired, failed
		}

		l.Expire()
		if err := r.save(ctx, &l); err != nil {
			failed++
			r.log().Error("failed to mark job as no longer seen",
				zap.String("req_id", l.RequisitionID), zap.Int64("id", l.ID), zap.Error(err))
			continue
		}
		expired++
		r.log().Info("job doesn't exist anymore",
			zap.String("req_id", l.RequisitionID), zap.String("title", l.Title))
		if r.OnExpire != nil {
			r.OnExpire(l)
		}
	}
	return expired, failed
}

func (r *Reconciler) allActive(ctx context.Context) ([]domain.Listing, error) {
	tx, err := r.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	return tx.AllActive(ctx)
}

func (r *Reconciler) save(ctx context.Context, l *domain.Listing) error {
	tx, err := r.Store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.Update(ctx, l); err != nil {
		return err
	}
	return tx.Commit()
}

func newListing(key domain.IdentityKey, s domain.ListingSummary, d *domain.ListingDetail, now time.Time) domain.Listing {
	jobID := d.ID
	if jobID == 0 {
		jobID = s.ID
	}
	title := d.Title
	if title == "" {
		title = s.Title
	}
	return domain.Listing{
		JobID:           jobID,
		RequisitionID:   key.RequisitionID,
		CanonicalURL:    key.CanonicalURL,
		SourceURL:       d.SourceURL,
		Title:           title,
		Location:        d.LocationText(),
		Team:            d.TeamOrField(),
		PostingDate:     postingDate(d),
		IsRemote:        isRemote(d),
		Description:     d.Description,
		DescriptionText: util.HTMLToText(d.Description),
		FirstSeen:       now,
		LastSeen:        now,
		TimesCrawled:    1,
		NoLongerSeen:    domain.Bool(false),
	}
}

func isRemote(d *domain.ListingDetail) bool {
	return util.ContainsRemote(d.Fields.WorkTypes...) ||
		d.WorkLocationOption.ContainsFold("remote") ||
		d.LocationFlexibility.ContainsFold("remote")
}

var postingDateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

func postingDate(d *domain.ListingDetail) *time.Time {
	if !d.CreatedAt.IsZero() {
		t := d.CreatedAt
		return &t
	}
	for _, raw := range d.Fields.PostingDates {
		raw = strings.TrimSpace(raw)
		for _, layout := range postingDateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	return nil
}

func defaultAnnouncement(l domain.Listing) (string, string) {
	return "New job posting!", l.Title + " (" + l.Team + " team) [Req " + l.RequisitionID + "]"
}
