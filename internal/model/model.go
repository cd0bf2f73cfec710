package model

import "time"

// Phase is the index of a principal moon phase as published by the phase feed.
type Phase int

const (
	PhaseNew Phase = iota
	PhaseFirstQuarter
	PhaseFull
	PhaseLastQuarter
)

// Next returns the phase that follows p in the lunar cycle.
func (p Phase) Next() Phase {
	return (p + 1) % 4
}

func (p Phase) Valid() bool {
	return p >= PhaseNew && p <= PhaseLastQuarter
}

// PhaseMarker anchors a subdivision boundary: a moon phase transition or,
// for new-moon feeds, a new-moon instant (Phase is then always PhaseNew).
type PhaseMarker struct {
	Timestamp time.Time
	Phase     Phase
}

// DaySegment is one of F equal subdivisions of the interval between two
// consecutive markers.
type DaySegment struct {
	Start    time.Time
	End      time.Time
	Sequence int
}

// FieldState distinguishes an instant that has not been looked up from one
// that was looked up and does not exist.
type FieldState uint8

const (
	FieldPending FieldState = iota
	FieldAbsent
	FieldPresent
)

// Field is an optional astronomical instant.
type Field struct {
	State FieldState
	At    time.Time
}

func Present(t time.Time) Field { return Field{State: FieldPresent, At: t} }

func Absent() Field { return Field{State: FieldAbsent} }

// Get returns the instant and whether it is present.
func (f Field) Get() (time.Time, bool) {
	return f.At, f.State == FieldPresent
}

func (f Field) Settled() bool {
	return f.State != FieldPending
}

// AstronomicalSample holds the rise/set instants resolved for one calendar
// day at one location. Date is local midnight of that day.
type AstronomicalSample struct {
	Date     time.Time
	SunRise  Field
	SunSet   Field
	MoonRise Field
	MoonSet  Field
}

// Settled reports whether every field has been resolved one way or another.
func (s AstronomicalSample) Settled() bool {
	return s.SunRise.Settled() && s.SunSet.Settled() && s.MoonRise.Settled() && s.MoonSet.Settled()
}

// EventKind selects how the renderer draws a CalendarEvent.
type EventKind string

const (
	KindBackground EventKind = "background"
	KindPoint      EventKind = "point"
)

// CalendarEvent is the render-ready record consumed by the calendar widget,
// the JSON API and the ICS export.
type CalendarEvent struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Title     string    `json:"title"`
	Kind      EventKind `json:"kind"`
	Color     string    `json:"color,omitempty"`
	TextColor string    `json:"textColor,omitempty"`
}

// Location is a point on the Earth in decimal degrees, longitude positive east.
type Location struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
}

func (l Location) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lon >= -180 && l.Lon <= 180
}
