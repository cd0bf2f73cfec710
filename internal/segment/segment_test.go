package segment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunarcal/internal/model"
)

var t0 = time.Date(2021, time.January, 6, 9, 37, 0, 0, time.UTC)

func TestSubdivideSevenHours(t *testing.T) {
	markers := []model.PhaseMarker{
		{Timestamp: t0, Phase: model.PhaseNew},
		{Timestamp: t0.Add(7 * time.Hour), Phase: model.PhaseFirstQuarter},
	}

	segs := Subdivide(markers, PhaseFactor, PhaseIndexed)
	require.Len(t, segs, 7)
	for j, s := range segs {
		assert.Equal(t, t0.Add(time.Duration(j)*time.Hour), s.Start)
		assert.Equal(t, time.Hour, s.End.Sub(s.Start))
		assert.Equal(t, j+1, s.Sequence)
	}
}

func TestSubdivideContiguousWithRemainderGap(t *testing.T) {
	// 2021 phase instants: full moon Jan 28 19:16, last quarter Feb 4 17:37.
	a := model.PhaseMarker{Timestamp: time.Date(2021, 1, 28, 19, 16, 0, 0, time.UTC), Phase: model.PhaseFull}
	b := model.PhaseMarker{Timestamp: time.Date(2021, 2, 4, 17, 37, 0, 0, time.UTC), Phase: model.PhaseLastQuarter}
	gap := b.Timestamp.Sub(a.Timestamp)
	require.NotZero(t, gap%PhaseFactor, "fixture must not divide evenly")

	segs := Subdivide([]model.PhaseMarker{a, b}, PhaseFactor, PhaseIndexed)
	require.Len(t, segs, PhaseFactor)

	assert.Equal(t, a.Timestamp, segs[0].Start)
	for j := 0; j < len(segs)-1; j++ {
		assert.Equal(t, segs[j].End, segs[j+1].Start)
	}
	last := segs[len(segs)-1]
	assert.False(t, last.End.After(b.Timestamp))
	assert.Equal(t, gap%PhaseFactor, b.Timestamp.Sub(last.End))

	for j, s := range segs {
		assert.Equal(t, int(a.Phase)*PhaseFactor+j+1, s.Sequence)
	}
}

func TestSubdivideSequenceAcrossLunation(t *testing.T) {
	markers := make([]model.PhaseMarker, 0, 5)
	p := model.PhaseNew
	for i := range 5 {
		markers = append(markers, model.PhaseMarker{
			Timestamp: t0.Add(time.Duration(i) * 7 * 24 * time.Hour),
			Phase:     p,
		})
		p = p.Next()
	}

	segs := Subdivide(markers, PhaseFactor, PhaseIndexed)
	require.Len(t, segs, 4*PhaseFactor)
	for i, s := range segs {
		assert.Equal(t, i+1, s.Sequence)
		if i > 0 {
			assert.Greater(t, s.Sequence, segs[i-1].Sequence)
		}
	}
}

func TestSubdivideRunningLunation(t *testing.T) {
	markers := []model.PhaseMarker{
		{Timestamp: t0},
		{Timestamp: t0.Add(28 * 24 * time.Hour)},
		{Timestamp: t0.Add(57 * 24 * time.Hour)},
	}

	segs := Subdivide(markers, LunationFactor, Running)
	require.Len(t, segs, 2*LunationFactor)
	for i, s := range segs {
		assert.Equal(t, i%LunationFactor+1, s.Sequence)
	}
	assert.Equal(t, 24*time.Hour, segs[0].End.Sub(segs[0].Start))
	assert.Equal(t, markers[1].Timestamp, segs[LunationFactor].Start)
	assert.False(t, segs[len(segs)-1].End.After(markers[2].Timestamp))
}

func TestSubdivideDegenerateInput(t *testing.T) {
	one := []model.PhaseMarker{{Timestamp: t0}}

	assert.Empty(t, Subdivide(nil, PhaseFactor, PhaseIndexed))
	assert.Empty(t, Subdivide(one, PhaseFactor, PhaseIndexed))
	assert.NotNil(t, Subdivide(one, PhaseFactor, PhaseIndexed))
	assert.Empty(t, Subdivide([]model.PhaseMarker{{Timestamp: t0}, {Timestamp: t0.Add(time.Hour)}}, 0, Running))
}

func TestSubdivideSkipsNonChronologicalPair(t *testing.T) {
	markers := []model.PhaseMarker{
		{Timestamp: t0.Add(7 * time.Hour), Phase: model.PhaseNew},
		{Timestamp: t0, Phase: model.PhaseFirstQuarter},
		{Timestamp: t0.Add(14 * time.Hour), Phase: model.PhaseFull},
	}

	segs := Subdivide(markers, PhaseFactor, PhaseIndexed)
	require.Len(t, segs, PhaseFactor)
	assert.Equal(t, t0, segs[0].Start)
	assert.Equal(t, PhaseFactor+1, segs[0].Sequence)
}
