package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunarcal/internal/model"
	"lunarcal/internal/segment"
)

var t0 = time.Date(2021, time.January, 6, 9, 37, 0, 0, time.UTC)

func TestProjectSevenHourGap(t *testing.T) {
	markers := []model.PhaseMarker{
		{Timestamp: t0, Phase: model.PhaseNew},
		{Timestamp: t0.Add(7 * time.Hour), Phase: model.PhaseFirstQuarter},
	}
	segs := segment.Subdivide(markers, segment.PhaseFactor, segment.PhaseIndexed)

	events := Project(segs, markers, nil)
	require.Len(t, events, 9)

	wantColors := []string{"red", "orange", "yellow", "green", "skyblue", "blue", "darkmagenta"}
	for i, ev := range events[:7] {
		assert.Equal(t, model.KindBackground, ev.Kind)
		assert.Equal(t, wantColors[i], ev.Color)
		assert.Equal(t, TextColor, ev.TextColor)
		assert.Equal(t, time.Hour, ev.End.Sub(ev.Start))
	}
	assert.Equal(t, "Day 1", events[0].Title)
	assert.Equal(t, "Day 7", events[6].Title)

	assert.Equal(t, model.CalendarEvent{Start: t0, End: t0, Title: "🌑 New Moon", Kind: model.KindPoint}, events[7])
	assert.Equal(t, "🌓 First Quarter", events[8].Title)
	assert.Equal(t, events[8].Start, events[8].End)
}

func TestColorCycles(t *testing.T) {
	for n := 1; n <= 56; n++ {
		assert.Equal(t, Palette[(n-1)%7], Color(n))
		assert.Equal(t, Color(n), Color(n+7))
	}
	assert.Equal(t, "darkmagenta", Color(0))
}

func TestPhaseTitleUnknown(t *testing.T) {
	assert.Equal(t, "🌕 Full Moon", PhaseTitle(model.PhaseFull))
	assert.Equal(t, "Moon Phase", PhaseTitle(model.Phase(9)))
}

func TestProjectOnlySunrise(t *testing.T) {
	rise := t0.Add(2 * time.Hour)
	samples := []model.AstronomicalSample{{
		Date:     t0.Truncate(24 * time.Hour),
		SunRise:  model.Present(rise),
		SunSet:   model.Absent(),
		MoonRise: model.Absent(),
		MoonSet:  model.Field{},
	}}

	events := Project(nil, nil, samples)
	require.Len(t, events, 1)
	assert.Equal(t, model.CalendarEvent{Start: rise, End: rise, Title: TitleSunRise, Kind: model.KindPoint}, events[0])
}

func TestProjectSampleFieldOrderAndPresence(t *testing.T) {
	day := t0.Truncate(24 * time.Hour)
	samples := []model.AstronomicalSample{
		{
			Date:     day,
			SunRise:  model.Present(day.Add(7 * time.Hour)),
			SunSet:   model.Present(day.Add(17 * time.Hour)),
			MoonRise: model.Absent(),
			MoonSet:  model.Present(day.Add(3 * time.Hour)),
		},
		{
			Date:     day.AddDate(0, 0, 1),
			SunRise:  model.Absent(),
			SunSet:   model.Absent(),
			MoonRise: model.Present(day.Add(30 * time.Hour)),
			MoonSet:  model.Absent(),
		},
	}

	events := Project(nil, nil, samples)
	titles := make([]string, 0, len(events))
	for _, ev := range events {
		assert.NotEmpty(t, ev.Title)
		assert.Equal(t, model.KindPoint, ev.Kind)
		titles = append(titles, ev.Title)
	}
	assert.Equal(t, []string{TitleSunRise, TitleSunSet, TitleMoonSet, TitleMoonRise}, titles)
}

func TestProjectConcatenationOrder(t *testing.T) {
	segs := []model.DaySegment{{Start: t0, End: t0.Add(time.Hour), Sequence: 8}}
	markers := []model.PhaseMarker{{Timestamp: t0.Add(-time.Hour), Phase: model.PhaseFirstQuarter}}
	samples := []model.AstronomicalSample{{SunSet: model.Present(t0.Add(-2 * time.Hour))}}

	events := Project(segs, markers, samples)
	require.Len(t, events, 3)
	assert.Equal(t, model.KindBackground, events[0].Kind)
	assert.Equal(t, "red", events[0].Color)
	assert.Equal(t, "🌓 First Quarter", events[1].Title)
	assert.Equal(t, TitleSunSet, events[2].Title)
}

func TestProjectEmpty(t *testing.T) {
	events := Project(nil, nil, nil)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}
