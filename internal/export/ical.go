// Package export renders the merged calendar events as an iCalendar feed
// so any calendar client can act as the render sink.
package export

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"lunarcal/internal/model"
)

const defaultProductID = "-//lunarcal//lunar calendar//EN"

// Options controls the generated calendar.
type Options struct {
	// ProductID is written as PRODID. Defaults to defaultProductID.
	ProductID string
	// Name is written as X-WR-CALNAME when set.
	Name string
	// Stamp is used as DTSTAMP for every event; zero means time.Now.
	Stamp time.Time
}

// Calendar converts events into an iCalendar document. Background events
// are marked transparent and carry their palette color; point events are
// zero-length.
func Calendar(events []model.CalendarEvent, opts Options) *ical.Calendar {
	if opts.ProductID == "" {
		opts.ProductID = defaultProductID
	}
	if opts.Stamp.IsZero() {
		opts.Stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(opts.ProductID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, e := range events {
		ev := cal.AddEvent(UID(e))
		ev.SetDtStampTime(opts.Stamp)
		ev.SetStartAt(e.Start)
		ev.SetEndAt(e.End)
		ev.SetSummary(e.Title)
		ev.SetProperty(ical.ComponentPropertyCategories, string(e.Kind))
		if e.Kind == model.KindBackground {
			ev.SetProperty(ical.ComponentProperty("TRANSP"), "TRANSPARENT")
		}
		if e.Color != "" {
			ev.SetProperty(ical.ComponentProperty("COLOR"), e.Color)
		}
	}
	return cal
}

// Write serializes events as an iCalendar document to w.
func Write(w io.Writer, events []model.CalendarEvent, opts Options) error {
	if w == nil {
		return errors.New("export: nil writer")
	}
	_, err := io.WriteString(w, Calendar(events, opts).Serialize())
	return err
}

// UID derives a stable identifier from the event kind, start and title, so
// clients see the same event across refreshes.
func UID(e model.CalendarEvent) string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteByte('|')
	b.WriteString(e.Start.UTC().Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.WriteString(e.Title)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:12]) + "@lunarcal"
}
