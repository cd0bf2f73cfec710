package astro

import (
	"context"
	"time"

	"github.com/nathan-osman/go-sunrise"

	"lunarcal/internal/model"
)

// Solar computes sunrise and sunset locally. Results are UTC instants.
type Solar struct{}

func (Solar) Instant(ctx context.Context, q Query, day time.Time, loc model.Location) (time.Time, bool, error) {
	if !q.Solar() {
		return time.Time{}, false, ErrUnsupported
	}
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}

	// go-sunrise reports polar day and polar night as zero times.
	rise, set := sunrise.SunriseSunset(loc.Lat, loc.Lon, day.Year(), day.Month(), day.Day())
	t := rise
	if q == SunSet {
		t = set
	}
	if t.IsZero() {
		return time.Time{}, false, nil
	}
	return t, true, nil
}
