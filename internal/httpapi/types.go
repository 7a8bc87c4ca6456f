package httpapi

import (
	"time"

	"jobwatch-engine/internal/domain"
)

// ListingView is the JSON shape of a listing record.
type ListingView struct {
	ID              int64      `json:"id"`
	JobID           int64      `json:"jobId"`
	RequisitionID   string     `json:"requisitionId"`
	URL             string     `json:"url"`
	Title           string     `json:"title"`
	Location        string     `json:"location"`
	Team            string     `json:"team"`
	PostingDate     *time.Time `json:"postingDate,omitempty"`
	IsRemote        bool       `json:"isRemote"`
	DescriptionText string     `json:"descriptionText,omitempty"`
	FirstSeen       time.Time  `json:"firstSeen"`
	LastSeen        time.Time  `json:"lastSeen"`
	TimesCrawled    int        `json:"timesCrawled"`
	NoLongerSeen    bool       `json:"noLongerSeen"`
}

func viewOf(l domain.Listing, withText bool) ListingView {
	v := ListingView{
		ID:            l.ID,
		JobID:         l.JobID,
		RequisitionID: l.RequisitionID,
		URL:           l.CanonicalURL,
		Title:         l.Title,
		Location:      l.Location,
		Team:          l.Team,
		PostingDate:   l.PostingDate,
		IsRemote:      l.IsRemote,
		FirstSeen:     l.FirstSeen,
		LastSeen:      l.LastSeen,
		TimesCrawled:  l.TimesCrawled,
		NoLongerSeen:  !l.Active(),
	}
	if withText {
		v.DescriptionText = l.DescriptionText
	}
	return v
}
