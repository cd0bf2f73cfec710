// Package merge projects day segments, phase markers and astronomical
// samples onto the single event list the calendar renders.
package merge

import (
	"strconv"
	"time"

	"lunarcal/internal/model"
)

// Palette colors day segments by (sequence-1) mod 7. It cycles with the
// lunar day count, not with the weekday.
var Palette = [7]string{
	"red",
	"orange",
	"yellow",
	"green",
	"skyblue",
	"blue",
	"darkmagenta",
}

// TextColor keeps segment titles readable on every palette entry.
const TextColor = "black"

var phaseTitles = map[model.Phase]string{
	model.PhaseNew:          "🌑 New Moon",
	model.PhaseFirstQuarter: "🌓 First Quarter",
	model.PhaseFull:         "🌕 Full Moon",
	model.PhaseLastQuarter:  "🌗 Last Quarter",
}

const (
	TitleSunRise  = "🌅 Sunrise"
	TitleSunSet   = "🌇 Sunset"
	TitleMoonRise = "🌙 Moonrise"
	TitleMoonSet  = "🌘 Moonset"
)

// Color returns the palette entry for a segment sequence number.
func Color(sequence int) string {
	i := (sequence - 1) % len(Palette)
	if i < 0 {
		i += len(Palette)
	}
	return Palette[i]
}

// PhaseTitle names a phase marker.
func PhaseTitle(p model.Phase) string {
	if t, ok := phaseTitles[p]; ok {
		return t
	}
	return "Moon Phase"
}

// Project concatenates segment backgrounds, phase points and rise/set
// points, in that order. Absent or unresolved sample fields are skipped.
// No sorting or de-duplication is done.
func Project(segments []model.DaySegment, markers []model.PhaseMarker, samples []model.AstronomicalSample) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(segments)+len(markers)+4*len(samples))

	for _, s := range segments {
		out = append(out, model.CalendarEvent{
			Start:     s.Start,
			End:       s.End,
			Title:     "Day " + strconv.Itoa(s.Sequence),
			Kind:      model.KindBackground,
			Color:     Color(s.Sequence),
			TextColor: TextColor,
		})
	}

	for _, m := range markers {
		out = append(out, point(m.Timestamp, PhaseTitle(m.Phase)))
	}

	for _, s := range samples {
		for _, f := range []struct {
			field model.Field
			title string
		}{
			{s.SunRise, TitleSunRise},
			{s.SunSet, TitleSunSet},
			{s.MoonRise, TitleMoonRise},
			{s.MoonSet, TitleMoonSet},
		} {
			if at, ok := f.field.Get(); ok {
				out = append(out, point(at, f.title))
			}
		}
	}

	return out
}

func point(at time.Time, title string) model.CalendarEvent {
	return model.CalendarEvent{
		Start: at,
		End:   at,
		Title: title,
		Kind:  model.KindPoint,
	}
}
