// Package resolve gathers one astronomical sample per calendar day over a
// fixed window around a reference instant.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/teambition/rrule-go"
	"golang.org/x/sync/errgroup"

	"lunarcal/internal/astro"
	appLog "lunarcal/internal/log"
	"lunarcal/internal/model"
)

const (
	// DaysBefore and DaysAfter bound the window relative to the reference day.
	DaysBefore = 30
	DaysAfter  = 370
	WindowDays = DaysBefore + DaysAfter

	// DefaultConcurrency caps in-flight sub-queries.
	DefaultConcurrency = 64
)

// Stats counts sub-query outcomes of one resolution.
type Stats struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Failed  int `json:"failed"`
}

// Result is the full output of one resolution run.
type Result struct {
	Location  model.Location
	Reference time.Time
	Samples   []model.AstronomicalSample
	Stats     Stats
}

// Resolver fans out four independent sub-queries per day to a provider.
// Resolver is stateless between runs and safe for concurrent use.
type Resolver struct {
	provider    astro.Provider
	tz          *time.Location
	concurrency int
}

type Option func(*Resolver)

// WithConcurrency bounds the number of sub-queries in flight.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithTimezone sets the zone whose midnights delimit calendar days.
func WithTimezone(tz *time.Location) Option {
	return func(r *Resolver) {
		if tz != nil {
			r.tz = tz
		}
	}
}

func New(p astro.Provider, opts ...Option) *Resolver {
	r := &Resolver{
		provider:    p,
		tz:          time.Local,
		concurrency: DefaultConcurrency,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Window returns the local midnights of the WindowDays calendar days
// starting DaysBefore days before ref.
func Window(ref time.Time, tz *time.Location) ([]time.Time, error) {
	local := ref.In(tz)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, tz).AddDate(0, 0, -DaysBefore)

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Count:   WindowDays,
		Dtstart: start,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve: window rule: %w", err)
	}
	return r.All(), nil
}

// Resolve returns one sample per window day, in day order, once every
// sub-query has settled. A failing or empty sub-query only leaves its own
// field absent. The only error is cancellation of ctx.
func (r *Resolver) Resolve(ctx context.Context, loc model.Location, ref time.Time) (Result, error) {
	days, err := Window(ref, r.tz)
	if err != nil {
		return Result{}, err
	}

	started := time.Now()
	fields := make([][len(astro.Queries)]model.Field, len(days))
	var present, absent, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, day := range days {
		for j, q := range astro.Queries {
			g.Go(func() error {
				f := r.query(ctx, q, day, loc)
				switch {
				case f.State == model.FieldPresent:
					present.Add(1)
				case f.Settled():
					absent.Add(1)
				default:
					failed.Add(1)
					f = model.Absent()
				}
				fields[i][j] = f
				return nil
			})
		}
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	samples := make([]model.AstronomicalSample, len(days))
	for i, day := range days {
		samples[i] = model.AstronomicalSample{
			Date:     day,
			SunRise:  fields[i][astro.SunRise],
			SunSet:   fields[i][astro.SunSet],
			MoonRise: fields[i][astro.MoonRise],
			MoonSet:  fields[i][astro.MoonSet],
		}
	}

	res := Result{
		Location:  loc,
		Reference: ref,
		Samples:   samples,
		Stats: Stats{
			Present: int(present.Load()),
			Absent:  int(absent.Load()),
			Failed:  int(failed.Load()),
		},
	}
	appLog.Info("astronomical window resolved",
		"lat", loc.Lat,
		"lon", loc.Lon,
		"days", len(samples),
		"present", res.Stats.Present,
		"absent", res.Stats.Absent,
		"failed", res.Stats.Failed,
		"elapsed", time.Since(started).String(),
	)
	return res, nil
}

// query runs one sub-query. A lookup error or panic is reported as a
// Pending field so the caller can count it separately from a genuine absence.
func (r *Resolver) query(ctx context.Context, q astro.Query, day time.Time, loc model.Location) (f model.Field) {
	defer func() {
		if p := recover(); p != nil {
			appLog.Error("astronomical sub-query panicked", fmt.Errorf("%v", p), "query", q.String(), "day", day.Format(time.DateOnly))
			f = model.Field{}
		}
	}()

	if ctx.Err() != nil {
		return model.Field{}
	}
	at, ok, err := r.provider.Instant(ctx, q, day, loc)
	if errors.Is(err, astro.ErrUnsupported) {
		return model.Absent()
	}
	if err != nil {
		appLog.Debug("astronomical sub-query failed", "query", q.String(), "day", day.Format(time.DateOnly), "err", err.Error())
		return model.Field{}
	}
	if !ok {
		return model.Absent()
	}
	return model.Present(at)
}
