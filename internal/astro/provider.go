// Package astro answers per-day sun and moon rise/set queries for a location.
//
// A provider returns ok=false, with a nil error, when the event does not
// happen on the requested calendar day (polar day, polar night, or the moon
// rising after midnight). Errors are reserved for lookups that could not be
// made at all.
package astro

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lunarcal/internal/model"
)

// ErrUnsupported is returned by providers that do not answer a query kind.
var ErrUnsupported = errors.New("astro: query not supported by provider")

// Query identifies one of the four per-day sub-queries.
type Query int

const (
	SunRise Query = iota
	SunSet
	MoonRise
	MoonSet
)

// Queries lists every sub-query in sample field order.
var Queries = [...]Query{SunRise, SunSet, MoonRise, MoonSet}

func (q Query) String() string {
	switch q {
	case SunRise:
		return "sunrise"
	case SunSet:
		return "sunset"
	case MoonRise:
		return "moonrise"
	case MoonSet:
		return "moonset"
	default:
		return fmt.Sprintf("query(%d)", int(q))
	}
}

func (q Query) Solar() bool { return q == SunRise || q == SunSet }

// Provider resolves a single astronomical instant. day carries the calendar
// date in its own Location; only its year, month and day are significant.
type Provider interface {
	Instant(ctx context.Context, q Query, day time.Time, loc model.Location) (time.Time, bool, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, q Query, day time.Time, loc model.Location) (time.Time, bool, error)

func (f ProviderFunc) Instant(ctx context.Context, q Query, day time.Time, loc model.Location) (time.Time, bool, error) {
	return f(ctx, q, day, loc)
}

// Mux routes sun queries to Sun and moon queries to Moon. A nil side
// reports ErrUnsupported.
type Mux struct {
	Sun  Provider
	Moon Provider
}

func (m Mux) Instant(ctx context.Context, q Query, day time.Time, loc model.Location) (time.Time, bool, error) {
	p := m.Moon
	if q.Solar() {
		p = m.Sun
	}
	if p == nil {
		return time.Time{}, false, ErrUnsupported
	}
	return p.Instant(ctx, q, day, loc)
}
