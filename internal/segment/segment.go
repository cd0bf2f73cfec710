// Package segment subdivides the interval between consecutive moon markers
// into equal "lunar day" segments.
package segment

import (
	"time"

	"lunarcal/internal/model"
)

const (
	// PhaseFactor splits each phase-to-phase interval (about 7.4 days).
	PhaseFactor = 7
	// LunationFactor splits each new-moon-to-new-moon interval.
	LunationFactor = 28
)

// Mode selects how segment sequence numbers are derived.
type Mode int

const (
	// PhaseIndexed numbers segment j of a pair starting at marker m as
	// m.Phase*F + j + 1, so one lunation counts 1..4F.
	PhaseIndexed Mode = iota
	// Running numbers the segments of every pair 1..F.
	Running
)

// Subdivide produces factor contiguous segments for every consecutive
// marker pair. Each segment lasts floor(gap/factor); the truncation
// remainder is left as a gap before the next marker. Nothing is emitted
// after the last marker.
//
// Fewer than two markers, or a non-positive factor, yield an empty result.
// Pairs that are not strictly chronological are skipped.
func Subdivide(markers []model.PhaseMarker, factor int, mode Mode) []model.DaySegment {
	if len(markers) < 2 || factor <= 0 {
		return []model.DaySegment{}
	}

	out := make([]model.DaySegment, 0, (len(markers)-1)*factor)
	for i := 0; i < len(markers)-1; i++ {
		from := markers[i].Timestamp
		gap := markers[i+1].Timestamp.Sub(from)
		if gap <= 0 {
			continue
		}
		step := gap / time.Duration(factor)

		base := 0
		if mode == PhaseIndexed {
			base = int(markers[i].Phase) * factor
		}
		for j := range factor {
			out = append(out, model.DaySegment{
				Start:    from.Add(step * time.Duration(j)),
				End:      from.Add(step * time.Duration(j+1)),
				Sequence: base + j + 1,
			})
		}
	}
	return out
}
