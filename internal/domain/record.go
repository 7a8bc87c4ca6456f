package domain

import "time"

// Listing is the durable record of a posting. Only the reconciler mutates it.
type Listing struct {
	ID              int64
	JobID           int64
	RequisitionID   string
	CanonicalURL    string
	SourceURL       string
	Title           string
	Location        string
	Team            string
	PostingDate     *time.Time
	IsRemote        bool
	Compensation    string
	Description     string
	DescriptionText string
	FirstSeen       time.Time
	LastSeen        time.Time
	TimesCrawled    int

	// NoLongerSeen is tri-state: nil for legacy rows that never had it set,
	// false while observed, true once absent from a complete cycle.
	NoLongerSeen *bool
}

func (l Listing) Key() IdentityKey {
	return IdentityKey{RequisitionID: l.RequisitionID, CanonicalURL: l.CanonicalURL}
}

// Active reports whether the record still counts toward identity uniqueness.
func (l Listing) Active() bool {
	return l.NoLongerSeen == nil || !*l.NoLongerSeen
}

// Observe records one more sighting in the active window.
func (l *Listing) Observe(now time.Time) {
	l.LastSeen = now
	l.TimesCrawled++
}

func (l *Listing) Expire() {
	t := true
	l.NoLongerSeen = &t
}

func Bool(b bool) *bool { return &b }

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	Seen           int           `json:"seen"`
	Created        int           `json:"created"`
	Updated        int           `json:"updated"`
	Expired        int           `json:"expired"`
	Duplicates     int           `json:"duplicates"`
	Invalid        int           `json:"invalid"`
	DetailFailures int           `json:"detail_failures"`
	WriteFailures  int           `json:"write_failures"`
	SweepSkipped   bool          `json:"sweep_skipped"`
	Duration       time.Duration `json:"duration_ns"`
}
