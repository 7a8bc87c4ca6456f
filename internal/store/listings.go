package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/scrape/types"
)

// Timestamps are written as fixed-width UTC text so they sort correctly in
// SQLite; PostgreSQL casts them to TIMESTAMPTZ.
const tsLayout = "2006-01-02T15:04:05.000000Z"

const listingColumns = `id, job_id, requisition_id, canonical_url, source_url, title, location, team,
  posting_date, is_remote, compensation, description, description_text,
  first_seen, last_seen, times_crawled, no_longer_seen`

const activeClause = `(no_longer_seen IS NULL OR no_longer_seen = ?)`

type listingRow struct {
	ID              int64          `db:"id"`
	JobID           sql.NullInt64  `db:"job_id"`
	RequisitionID   string         `db:"requisition_id"`
	CanonicalURL    string         `db:"canonical_url"`
	SourceURL       string         `db:"source_url"`
	Title           string         `db:"title"`
	Location        string         `db:"location"`
	Team            string         `db:"team"`
	PostingDate     sql.NullString `db:"posting_date"`
	IsRemote        sql.NullBool   `db:"is_remote"`
	Compensation    string         `db:"compensation"`
	Description     string         `db:"description"`
	DescriptionText string         `db:"description_text"`
	FirstSeen       string         `db:"first_seen"`
	LastSeen        string         `db:"last_seen"`
	TimesCrawled    sql.NullInt64  `db:"times_crawled"`
	NoLongerSeen    sql.NullBool   `db:"no_longer_seen"`
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func (r listingRow) toDomain() domain.Listing {
	l := domain.Listing{
		ID:              r.ID,
		JobID:           r.JobID.Int64,
		RequisitionID:   r.RequisitionID,
		CanonicalURL:    r.CanonicalURL,
		SourceURL:       r.SourceURL,
		Title:           r.Title,
		Location:        r.Location,
		Team:            r.Team,
		IsRemote:        r.IsRemote.Valid && r.IsRemote.Bool,
		Compensation:    r.Compensation,
		Description:     r.Description,
		DescriptionText: r.DescriptionText,
		FirstSeen:       parseTS(r.FirstSeen),
		LastSeen:        parseTS(r.LastSeen),
		TimesCrawled:    int(r.TimesCrawled.Int64),
	}
	if r.PostingDate.Valid {
		if t := parseTS(r.PostingDate.String); !t.IsZero() {
			l.PostingDate = &t
		}
	}
	if r.NoLongerSeen.Valid {
		l.NoLongerSeen = domain.Bool(r.NoLongerSeen.Bool)
	}
	return l
}

// values returns column values in listingColumns order, without id.
func values(l *domain.Listing) []any {
	var posting any
	if l.PostingDate != nil {
		posting = formatTS(*l.PostingDate)
	}
	var jobID any
	if l.JobID != 0 {
		jobID = l.JobID
	}
	var noLonger any
	if l.NoLongerSeen != nil {
		noLonger = *l.NoLongerSeen
	}
	return []any{
		jobID, l.RequisitionID, l.CanonicalURL, l.SourceURL, l.Title, l.Location, l.Team,
		posting, l.IsRemote, l.Compensation, l.Description, l.DescriptionText,
		formatTS(l.FirstSeen), formatTS(l.LastSeen), l.TimesCrawled, noLonger,
	}
}

// Tx is one unit of work against the listings table.
type Tx struct {
	tx *sqlx.Tx
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (types.ListingTx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, &WriteError{Op: "begin", Err: err}
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) FindByIdentity(ctx context.Context, key domain.IdentityKey) (*domain.Listing, error) {
	q := t.tx.Rebind(`
SELECT ` + listingColumns + `
FROM listings
WHERE requisition_id = ? AND canonical_url = ? AND ` + activeClause + `
ORDER BY id DESC
LIMIT 1;`)

	var row listingRow
	err := t.tx.GetContext(ctx, &row, q, key.RequisitionID, key.CanonicalURL, false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find listing %s: %w", key, err)
	}
	l := row.toDomain()
	return &l, nil
}

func (t *Tx) Insert(ctx context.Context, l *domain.Listing) error {
	q := t.tx.Rebind(`
INSERT INTO listings (job_id, requisition_id, canonical_url, source_url, title, location, team,
  posting_date, is_remote, compensation, description, description_text,
  first_seen, last_seen, times_crawled, no_longer_seen)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id;`)

	var id int64
	if err := t.tx.QueryRowxContext(ctx, q, values(l)...).Scan(&id); err != nil {
		return &WriteError{Op: "insert", Key: l.Key().String(), Err: err}
	}
	l.ID = id
	return nil
}

func (t *Tx) Update(ctx context.Context, l *domain.Listing) error {
	q := t.tx.Rebind(`
UPDATE listings SET
  job_id = ?, requisition_id = ?, canonical_url = ?, source_url = ?, title = ?, location = ?, team = ?,
  posting_date = ?, is_remote = ?, compensation = ?, description = ?, description_text = ?,
  first_seen = ?, last_seen = ?, times_crawled = ?, no_longer_seen = ?
WHERE id = ?;`)

	args := append(values(l), l.ID)
	res, err := t.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return &WriteError{Op: "update", Key: l.Key().String(), Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &WriteError{Op: "update", Key: l.Key().String(), Err: ErrNotFound}
	}
	return nil
}

func (t *Tx) AllActive(ctx context.Context) ([]domain.Listing, error) {
	q := t.tx.Rebind(`
SELECT ` + listingColumns + `
FROM listings
WHERE ` + activeClause + `
ORDER BY id;`)

	var rows []listingRow
	if err := t.tx.SelectContext(ctx, &rows, q, false); err != nil {
		return nil, fmt.Errorf("list active listings: %w", err)
	}
	out := make([]domain.Listing, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return &WriteError{Op: "commit", Err: err}
	}
	return nil
}

// Rollback is safe to call after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

type ListOpts struct {
	State string // active | expired | all
	Sort  string // last_seen | first_seen | posting_date | title | times_crawled
	Limit int
}

// List returns listings for the API and CLI, newest first by default.
func (s *Store) List(ctx context.Context, opts ListOpts) ([]domain.Listing, error) {
	if opts.Limit <= 0 || opts.Limit > 5000 {
		opts.Limit = 500
	}

	// whitelist sort columns (prevents SQL injection)
	sortCol := map[string]string{
		"last_seen":     "last_seen DESC",
		"first_seen":    "first_seen DESC",
		"posting_date":  "posting_date DESC",
		"title":         "title ASC",
		"times_crawled": "times_crawled DESC",
	}[opts.Sort]
	if sortCol == "" {
		sortCol = "first_seen DESC"
	}

	var (
		where string
		args  []any
	)
	switch opts.State {
	case "expired":
		where = "WHERE no_longer_seen = ?"
		args = append(args, true)
	case "all":
	default:
		where = "WHERE " + activeClause
		args = append(args, false)
	}
	args = append(args, opts.Limit)

	q := s.db.Rebind(fmt.Sprintf(`
SELECT %s
FROM listings
%s
ORDER BY %s, id DESC
LIMIT ?;`, listingColumns, where, sortCol))

	var rows []listingRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Listing, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// Counts returns how many records are active and how many have expired.
func (s *Store) Counts(ctx context.Context) (active, expired int, err error) {
	q := s.db.Rebind(`
SELECT
  COALESCE(SUM(CASE WHEN ` + activeClause + ` THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN no_longer_seen = ? THEN 1 ELSE 0 END), 0)
FROM listings;`)
	err = s.db.QueryRowxContext(ctx, q, false, true).Scan(&active, &expired)
	return active, expired, err
}
