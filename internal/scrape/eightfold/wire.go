package eightfold

import (
	"strings"
	"time"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/scrape/util"
)

type positionsResponse struct {
	Positions []position `json:"positions"`
	Count     int        `json:"count"`
}

type position struct {
	ID                   int64           `json:"id"`
	Name                 string          `json:"name"`
	Location             string          `json:"location"`
	Locations            []string        `json:"locations"`
	Department           string          `json:"department"`
	BusinessUnit         string          `json:"business_unit"`
	TUpdate              int64           `json:"t_update"`
	TCreate              int64           `json:"t_create"`
	ATSJobID             string          `json:"ats_job_id"`
	DisplayJobID         string          `json:"display_job_id"`
	JobDescription       string          `json:"job_description"`
	WorkLocationOption   domain.FlexText `json:"work_location_option"`
	LocationFlexibility  domain.FlexText `json:"location_flexibility"`
	CanonicalPositionURL string          `json:"canonicalPositionUrl"`
	CustomJD             *customJD       `json:"custom_JD"`
}

type customJD struct {
	DataFields struct {
		JobReqID    []string `json:"job_req_id"`
		Team        []string `json:"team"`
		PostingDate []string `json:"posting_date"`
		WorkType    []string `json:"work_type"`
	} `json:"data_fields"`
	Display []struct {
		Label string `json:"label"`
		Value string `json:"value"`
	} `json:"display"`
	Enable bool `json:"enable"`
}

func unixOrZero(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func (p position) summary() domain.ListingSummary {
	return domain.ListingSummary{
		ID:                  p.ID,
		RequisitionID:       strings.TrimSpace(p.DisplayJobID),
		ATSJobID:            strings.TrimSpace(p.ATSJobID),
		CanonicalURL:        util.CanonicalURL(p.CanonicalPositionURL),
		Title:               util.CleanText(p.Name),
		Location:            util.NormalizeLocation(p.Location),
		Locations:           p.Locations,
		Department:          util.CleanText(p.Department),
		BusinessUnit:        util.CleanText(p.BusinessUnit),
		CreatedAt:           unixOrZero(p.TCreate),
		UpdatedAt:           unixOrZero(p.TUpdate),
		WorkLocationOption:  p.WorkLocationOption,
		LocationFlexibility: p.LocationFlexibility,
	}
}

func (p position) detail(sourceURL string) *domain.ListingDetail {
	d := &domain.ListingDetail{
		ListingSummary: p.summary(),
		Description:    p.JobDescription,
		SourceURL:      sourceURL,
	}
	if p.CustomJD != nil {
		f := p.CustomJD.DataFields
		d.Fields = domain.CustomFields{
			JobReqIDs:    f.JobReqID,
			Teams:        f.Team,
			PostingDates: f.PostingDate,
			WorkTypes:    f.WorkType,
		}
		for _, disp := range p.CustomJD.Display {
			d.Fields.Display = append(d.Fields.Display, domain.DisplayField{Label: disp.Label, Value: disp.Value})
		}
	}
	return d
}
