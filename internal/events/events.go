package events

import (
	"encoding/json"
	"time"
)

// Event types published on the hub.
const (
	TypeListingCreated = "listing_created"
	TypeListingExpired = "listing_expired"
	TypeCrawlStarted   = "crawl_started"
	TypeCrawlFinished  = "crawl_finished"
	TypeConfigUpdated  = "config_updated"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MakeEvent renders an event as a single JSON line ready for SSE.
func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			raw = b
		}
	}
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}
