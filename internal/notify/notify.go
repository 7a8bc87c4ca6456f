// Package notify holds the sinks a new listing is announced to. Every sink
// is fire-and-forget: Notify never blocks the crawl and never fails it.
package notify

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/events"
	"jobwatch-engine/internal/scrape/types"
)

const (
	DefaultTitle  = "New job posting!"
	DefaultFooter = "Jump on it while it's still fresh!"
)

// Template renders the title and body of a new-listing notification.
type Template struct {
	Title  string
	Footer string
}

func (t Template) Render(l domain.Listing) (string, string) {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = DefaultTitle
	}

	var b strings.Builder
	b.WriteString(l.Title)
	if team := strings.TrimSpace(l.Team); team != "" {
		fmt.Fprintf(&b, " (%s team)", team)
	}
	if l.RequisitionID != "" {
		fmt.Fprintf(&b, " [Req %s]", l.RequisitionID)
	}
	if footer := strings.TrimSpace(t.Footer); footer != "" {
		b.WriteString("\n")
		b.WriteString(footer)
	}
	return title, b.String()
}

// Message is the payload carried by listing_created events.
type Message struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	ReferenceID string `json:"reference_id"`
}

// Hub publishes notifications to SSE subscribers.
type Hub struct {
	Events *events.Hub
}

func (h Hub) Notify(title, body, referenceID string) {
	if h.Events == nil {
		return
	}
	h.Events.Publish(events.MakeEvent("", events.TypeListingCreated, 1, Message{
		Title:       title,
		Body:        body,
		ReferenceID: referenceID,
	}))
}

// ExpiredMessage is the payload carried by listing_expired events.
type ExpiredMessage struct {
	ID            int64  `json:"id"`
	JobID         int64  `json:"job_id"`
	RequisitionID string `json:"requisition_id"`
	Title         string `json:"title"`
}

// Expired publishes a listing the sweep marked as no longer seen.
func (h Hub) Expired(l domain.Listing) {
	if h.Events == nil {
		return
	}
	h.Events.Publish(events.MakeEvent("", events.TypeListingExpired, 1, ExpiredMessage{
		ID:            l.ID,
		JobID:         l.JobID,
		RequisitionID: l.RequisitionID,
		Title:         l.Title,
	}))
}

type Log struct {
	Logger *zap.Logger
}

func (l Log) Notify(title, body, referenceID string) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info(title, zap.String("body", body), zap.String("reference_id", referenceID))
}

// Multi fans a notification out to every sink. A panicking sink is logged
// and skipped.
type Multi struct {
	Sinks []types.Notifier
	Log   *zap.Logger
}

func (m Multi) Notify(title, body, referenceID string) {
	for _, s := range m.Sinks {
		m.deliver(s, title, body, referenceID)
	}
}

func (m Multi) deliver(s types.Notifier, title, body, referenceID string) {
	defer func() {
		if rec := recover(); rec != nil && m.Log != nil {
			m.Log.Error("notifier panicked", zap.Any("panic", rec), zap.String("reference_id", referenceID))
		}
	}()
	s.Notify(title, body, referenceID)
}
