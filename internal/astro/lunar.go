package astro

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/mooncaker816/learnmeeus/v3/coord"
	"github.com/mooncaker816/learnmeeus/v3/globe"
	"github.com/mooncaker816/learnmeeus/v3/julian"
	"github.com/mooncaker816/learnmeeus/v3/moonposition"
	"github.com/mooncaker816/learnmeeus/v3/nutation"
	"github.com/mooncaker816/learnmeeus/v3/rise"
	"github.com/mooncaker816/learnmeeus/v3/sidereal"
	"github.com/soniakeys/unit"

	"lunarcal/internal/model"
)

// DefaultDeltaT is TT-UT in seconds, close enough for the 2020s.
const DefaultDeltaT = 69.0

const (
	secondsPerDay = 86400

	// Refinement stops once a correction is below a second.
	maxCorrections = 12
	converged      = 1.0
)

// Lunar computes moonrise and moonset locally. A first estimate comes from
// the interpolated rise/set method of Meeus, ch. 15, and is then corrected
// against the Moon's position at the estimated instant until it settles.
// The calendar day is taken in UT and results are UTC instants. A moon
// that does not cross the horizon during the UT day is reported absent.
type Lunar struct {
	// DeltaT overrides DefaultDeltaT when non-zero.
	DeltaT float64
}

func (l Lunar) Instant(ctx context.Context, q Query, day time.Time, loc model.Location) (time.Time, bool, error) {
	if q.Solar() {
		return time.Time{}, false, ErrUnsupported
	}
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}

	y, m, d := day.Date()
	h := l.newHorizon(julian.CalendarGregorianToJD(y, int(m), float64(d)), loc)

	best, found := 0.0, false
	for _, seed := range h.seeds(q) {
		for _, shift := range []float64{0, -secondsPerDay, secondsPerDay} {
			sec, ok := h.refine(seed+shift, q == MoonRise)
			if !ok || sec < 0 || sec >= secondsPerDay {
				continue
			}
			if !found || sec < best {
				best, found = sec, true
			}
		}
	}
	if !found {
		return time.Time{}, false, nil
	}
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return midnight.Add(time.Duration(best * float64(time.Second))), true, nil
}

// altitude returns the Moon's altitude above the standard lunar horizon
// at t, in radians.
func (l Lunar) altitude(t time.Time, loc model.Location) float64 {
	t = t.UTC()
	y, m, d := t.Date()
	h := l.newHorizon(julian.CalendarGregorianToJD(y, int(m), float64(d)), loc)
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	dh, _ := h.at(t.Sub(midnight).Seconds())
	return dh
}

// horizon evaluates the Moon against the horizon of one observer on one
// UT day.
type horizon struct {
	jd0 float64   // 0h UT
	th0 unit.Time // apparent sidereal time at 0h UT
	dt  float64
	p   globe.Coord
}

func (l Lunar) newHorizon(jd0 float64, loc model.Location) horizon {
	dt := l.DeltaT
	if dt == 0 {
		dt = DefaultDeltaT
	}
	return horizon{
		jd0: jd0,
		th0: sidereal.Apparent0UT(jd0),
		dt:  dt,
		// Meeus measures longitude positive west.
		p: globe.Coord{
			Lat: unit.AngleFromDeg(loc.Lat),
			Lon: unit.AngleFromDeg(-loc.Lon),
		},
	}
}

// moon returns the apparent geocentric right ascension, declination and
// horizontal parallax at jde.
func moon(jde float64) (unit.RA, unit.Angle, unit.Angle) {
	λ, β, Δ := moonposition.Position(jde)
	Δψ, Δε := nutation.Nutation(jde)
	sε, cε := (nutation.MeanObliquity(jde) + Δε).Sincos()
	α, δ := coord.EclToEq(λ+Δψ, β, sε, cε)
	return α, δ, moonposition.Parallax(Δ)
}

// at returns the altitude above the standard lunar horizon at m seconds
// after 0h UT, and the rate term cos δ cos φ sin H of Meeus (15.2).
func (h horizon) at(m float64) (dh, rate float64) {
	α, δ, π := moon(h.jd0 + (m+h.dt)/secondsPerDay)
	θ := h.th0 + unit.Time(m).Mul(360.985647/360)
	H := θ.Rad() - h.p.Lon.Rad() - α.Rad()

	sφ, cφ := h.p.Lat.Sincos()
	sδ, cδ := δ.Sincos()
	sH, cH := math.Sincos(H)
	alt := math.Asin(sφ*sδ + cφ*cδ*cH)
	return alt - rise.Stdh0Lunar(π).Rad(), cδ * cφ * sH
}

// seeds returns first estimates, in seconds after 0h UT, for the event q.
func (h horizon) seeds(q Query) []float64 {
	α3 := make([]unit.RA, 3)
	δ3 := make([]unit.Angle, 3)
	var π unit.Angle
	for i := range 3 {
		// rise.Times applies ΔT itself, so the table sits at 0h UT epochs.
		α, δ, p := moon(h.jd0 + float64(i-1))
		α3[i], δ3[i] = α, δ
		if i == 1 {
			π = p
		}
	}
	// Keep the right ascension table continuous across 0h.
	for i := 1; i < 3; i++ {
		for α3[i] < α3[i-1]-math.Pi {
			α3[i] += 2 * math.Pi
		}
		for α3[i] > α3[i-1]+math.Pi {
			α3[i] -= 2 * math.Pi
		}
	}

	pick := func(r, s unit.Time) float64 {
		if q == MoonRise {
			return r.Sec()
		}
		return s.Sec()
	}

	h0 := rise.Stdh0Lunar(π)
	tRise, _, tSet, err := rise.Times(h.p, unit.Time(h.dt), h0, h.th0, α3, δ3)
	if err == nil {
		return []float64{pick(tRise, tSet)}
	}
	if !errors.Is(err, rise.ErrorCircumpolar) {
		return nil
	}
	// Circumpolar at noon; the Moon can still cross near either end of a
	// high-latitude day.
	var out []float64
	for _, i := range []int{0, 2} {
		r, _, s, err := rise.ApproxTimes(h.p, h0, h.th0, α3[i], δ3[i])
		if err == nil {
			out = append(out, pick(r, s))
		}
	}
	return out
}

// refine corrects m until the correction is under a second. It reports
// false when the iteration does not settle or lands on the opposite event.
func (h horizon) refine(m float64, rising bool) (float64, bool) {
	for range maxCorrections {
		dh, rate := h.at(m)
		if math.Abs(rate) < 1e-9 {
			return 0, false
		}
		dm := dh / (2 * math.Pi) * secondsPerDay / rate
		m += dm
		if math.IsNaN(m) || math.Abs(m) > 3*secondsPerDay {
			return 0, false
		}
		if math.Abs(dm) < converged {
			// Rising happens east of the meridian, where sin H < 0.
			_, rate = h.at(m)
			return m, (rate < 0) == rising
		}
	}
	return 0, false
}
