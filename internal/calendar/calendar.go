// Package calendar is the orchestrating layer of the lunar calendar: it
// owns the Location selection, reloads markers and astronomical samples
// when their inputs change, and merges the committed results into the
// event list handed to renderers.
package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"lunarcal/internal/feed"
	"lunarcal/internal/geo"
	appLog "lunarcal/internal/log"
	"lunarcal/internal/merge"
	"lunarcal/internal/model"
	"lunarcal/internal/resolve"
	"lunarcal/internal/segment"
)

// Mode selects the marker feed and subdivision used for day segments.
type Mode string

const (
	// ModePhase splits every phase-to-phase interval into 7 days numbered
	// 1..28 across the lunation.
	ModePhase Mode = "phase"
	// ModeLunation splits every new-moon-to-new-moon interval into 28 days.
	ModeLunation Mode = "lunation"
)

func (m Mode) plan() (feed.Kind, int, segment.Mode) {
	if m == ModeLunation {
		return feed.NewMoons, segment.LunationFactor, segment.Running
	}
	return feed.Phases, segment.PhaseFactor, segment.PhaseIndexed
}

// MarkerSource supplies the yearly marker sequence.
type MarkerSource interface {
	Fetch(ctx context.Context, kind feed.Kind, year int) ([]model.PhaseMarker, error)
}

// SampleResolver produces the astronomical window for a location.
type SampleResolver interface {
	Resolve(ctx context.Context, loc model.Location, ref time.Time) (resolve.Result, error)
}

// Options configures a Calendar.
type Options struct {
	// Year pins the marker year; zero follows the current year.
	Year int
	Mode Mode
	// Timezone decides the current year. Defaults to time.Local.
	Timezone *time.Location
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

type markerSnapshot struct {
	year      int
	mode      Mode
	markers   []model.PhaseMarker
	segments  []model.DaySegment
	fetchedAt time.Time
}

// Calendar recomputes its inputs wholesale on every trigger and keeps only
// the newest result of each kind. It is safe for concurrent use.
type Calendar struct {
	source   MarkerSource
	resolver SampleResolver
	tracker  *geo.Tracker
	opts     Options

	// locMu orders Location changes with astronomical generations so the
	// last requested Location is the one whose samples get committed.
	locMu sync.Mutex

	markerSnap latest[markerSnapshot]
	astroSnap  latest[resolve.Result]
}

func New(source MarkerSource, resolver SampleResolver, tracker *geo.Tracker, opts Options) *Calendar {
	if opts.Mode != ModeLunation {
		opts.Mode = ModePhase
	}
	if opts.Timezone == nil {
		opts.Timezone = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Calendar{
		source:   source,
		resolver: resolver,
		tracker:  tracker,
		opts:     opts,
	}
}

// Year returns the marker year currently in effect.
func (c *Calendar) Year() int {
	if c.opts.Year > 0 {
		return c.opts.Year
	}
	return c.opts.Now().In(c.opts.Timezone).Year()
}

// Refresh reloads markers and the astronomical window concurrently. A
// marker failure does not cancel the window resolution. Only a marker
// transport failure or cancellation is returned; the previously committed
// state stays in place in that case.
func (c *Calendar) Refresh(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return c.RefreshMarkers(ctx) })
	g.Go(func() error { return c.ResolveSamples(ctx) })
	return g.Wait()
}

// RefreshMarkers fetches the marker feed for the current year and rebuilds
// the day segments.
func (c *Calendar) RefreshMarkers(ctx context.Context) error {
	gen := c.markerSnap.begin()
	year := c.Year()
	kind, factor, segMode := c.opts.Mode.plan()

	markers, err := c.source.Fetch(ctx, kind, year)
	if err != nil {
		return fmt.Errorf("calendar: markers for %d: %w", year, err)
	}

	snap := markerSnapshot{
		year:      year,
		mode:      c.opts.Mode,
		markers:   markers,
		segments:  segment.Subdivide(markers, factor, segMode),
		fetchedAt: c.opts.Now(),
	}
	if !c.markerSnap.commit(gen, snap) {
		appLog.Debug("discarding superseded marker snapshot", "year", year, "generation", gen)
		return nil
	}
	appLog.Info("marker snapshot committed", "year", year, "mode", string(c.opts.Mode), "markers", len(markers), "segments", len(snap.segments))
	return nil
}

// ResolveSamples resolves the astronomical window for the current Location.
func (c *Calendar) ResolveSamples(ctx context.Context) error {
	c.locMu.Lock()
	loc, _ := c.tracker.Current()
	gen := c.astroSnap.begin()
	c.locMu.Unlock()

	return c.resolveFor(ctx, gen, loc)
}

// Relocate overrides the Location and resolves the window for it. A
// resolution started earlier that finishes later is discarded.
func (c *Calendar) Relocate(ctx context.Context, loc model.Location) error {
	c.locMu.Lock()
	if _, err := c.tracker.Override(loc); err != nil {
		c.locMu.Unlock()
		return err
	}
	gen := c.astroSnap.begin()
	c.locMu.Unlock()

	return c.resolveFor(ctx, gen, loc)
}

// Locate applies a one-shot geolocation read and re-resolves the window
// when it moved the Location. A failed read is not an error.
func (c *Calendar) Locate(ctx context.Context, o geo.Observer) error {
	if !c.tracker.Observe(ctx, o) {
		return nil
	}
	return c.ResolveSamples(ctx)
}

func (c *Calendar) resolveFor(ctx context.Context, gen uint64, loc model.Location) error {
	res, err := c.resolver.Resolve(ctx, loc, c.opts.Now())
	if err != nil {
		return fmt.Errorf("calendar: resolve samples: %w", err)
	}
	if !c.astroSnap.commit(gen, res) {
		appLog.Debug("discarding superseded astronomical window", "lat", loc.Lat, "lon", loc.Lon, "generation", gen)
	}
	return nil
}

// Events merges the committed snapshots into the render-ready event list.
// Until markers for the current year have been fetched it is empty.
func (c *Calendar) Events() []model.CalendarEvent {
	ms, mgen := c.markerSnap.load()
	if mgen == 0 || ms.year != c.Year() {
		return []model.CalendarEvent{}
	}
	as, _ := c.astroSnap.load()
	return merge.Project(ms.segments, ms.markers, as.Samples)
}

// Revision identifies the committed state; it changes whenever Events may.
type Revision struct {
	Markers uint64 `json:"markers"`
	Samples uint64 `json:"samples"`
	Year    int    `json:"year"`
}

func (c *Calendar) Revision() Revision {
	_, mgen := c.markerSnap.load()
	_, agen := c.astroSnap.load()
	return Revision{Markers: mgen, Samples: agen, Year: c.Year()}
}

// Status summarizes the orchestrator state for diagnostics.
type Status struct {
	Year          int            `json:"year"`
	Mode          Mode           `json:"mode"`
	Location      model.Location `json:"location"`
	LocationState geo.State      `json:"location_state"`
	Markers       int            `json:"markers"`
	Segments      int            `json:"segments"`
	MarkersAt     *time.Time     `json:"markers_fetched_at,omitempty"`
	Samples       int            `json:"samples"`
	SamplesFor    model.Location `json:"samples_location"`
	SamplesAt     *time.Time     `json:"samples_reference,omitempty"`
	SampleStats   resolve.Stats  `json:"sample_stats"`
	Revision      Revision       `json:"revision"`
}

func (c *Calendar) Status() Status {
	loc, st := c.tracker.Current()
	ms, mgen := c.markerSnap.load()
	as, agen := c.astroSnap.load()

	s := Status{
		Year:          c.Year(),
		Mode:          c.opts.Mode,
		Location:      loc,
		LocationState: st,
		Revision:      Revision{Markers: mgen, Samples: agen, Year: c.Year()},
	}
	if mgen != 0 {
		s.Markers = len(ms.markers)
		s.Segments = len(ms.segments)
		s.MarkersAt = &ms.fetchedAt
	}
	if agen != 0 {
		s.Samples = len(as.Samples)
		s.SamplesFor = as.Location
		s.SamplesAt = &as.Reference
		s.SampleStats = as.Stats
	}
	return s
}
