package domain

import (
	"strings"
	"time"
)

// IdentityKey matches a live posting to its persisted record.
type IdentityKey struct {
	RequisitionID string
	CanonicalURL  string
}

func (k IdentityKey) String() string {
	return k.RequisitionID + "@" + k.CanonicalURL
}

// ListingSummary is one row of the paginated feed. It is never persisted.
type ListingSummary struct {
	ID                  int64
	RequisitionID       string
	ATSJobID            string
	CanonicalURL        string
	Title               string
	Location            string
	Locations           []string
	Department          string
	BusinessUnit        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	WorkLocationOption  FlexText
	LocationFlexibility FlexText
}

func (s ListingSummary) Key() IdentityKey {
	return IdentityKey{
		RequisitionID: strings.TrimSpace(s.RequisitionID),
		CanonicalURL:  strings.TrimSpace(s.CanonicalURL),
	}
}

// ListingDetail is the full posting as returned by the detail endpoint.
type ListingDetail struct {
	ListingSummary

	Description string // HTML
	Fields      CustomFields
	SourceURL   string // endpoint the detail was read from
}

// CustomFields mirrors the structured custom_JD.data_fields block. Every
// field is a list upstream even when it only ever carries one value.
type CustomFields struct {
	JobReqIDs    []string
	Teams        []string
	PostingDates []string
	WorkTypes    []string
	Display      []DisplayField
}

type DisplayField struct {
	Label string
	Value string
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func first(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	return xs[0]
}

func (d ListingDetail) TeamOrField() string {
	return firstNonEmpty(d.Department, first(d.Fields.Teams))
}

func (d ListingDetail) LocationText() string {
	return firstNonEmpty(d.Location, strings.Join(d.Locations, "; "))
}
