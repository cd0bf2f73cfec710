package astro

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	appLog "lunarcal/internal/log"
	"lunarcal/internal/model"
)

// DefaultUSNOURL is the US Naval Observatory one-day rise/set/transit endpoint.
const DefaultUSNOURL = "https://aa.usno.navy.mil/api/rstt/oneday"

const usnoMemoLimit = 2048

// USNO answers all four queries from the USNO "rstt/oneday" API. The four
// queries for one day and location share a single request. When that
// shared request fails, each query retries on its own once, so one
// transport error does not blank the whole day.
type USNO struct {
	baseURL string
	client  *http.Client

	group singleflight.Group

	mu   sync.Mutex
	memo map[string]usnoDay
}

// usnoDay holds the UTC "HH:MM" times of one day, keyed by query.
type usnoDay map[Query]string

// NewUSNO creates a USNO provider. An empty baseURL selects DefaultUSNOURL
// and a non-positive timeout selects 15 seconds.
func NewUSNO(baseURL string, timeout time.Duration) *USNO {
	if baseURL == "" {
		baseURL = DefaultUSNOURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &USNO{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		memo:    make(map[string]usnoDay),
	}
}

func (u *USNO) Instant(ctx context.Context, q Query, day time.Time, loc model.Location) (time.Time, bool, error) {
	date := day.Format(time.DateOnly)
	key := fmt.Sprintf("%s@%.4f,%.4f", date, loc.Lat, loc.Lon)

	d, err := u.lookup(ctx, key, date, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	hhmm, ok := d[q]
	if !ok {
		return time.Time{}, false, nil
	}

	clock, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("usno: %s %s: %w", q, date, err)
	}
	y, m, dd := day.Date()
	return time.Date(y, m, dd, clock.Hour(), clock.Minute(), 0, 0, time.UTC), true, nil
}

func (u *USNO) lookup(ctx context.Context, key, date string, loc model.Location) (usnoDay, error) {
	u.mu.Lock()
	d, ok := u.memo[key]
	u.mu.Unlock()
	if ok {
		return d, nil
	}

	v, err, _ := u.group.Do(key, func() (any, error) {
		return u.fetch(ctx, date, loc)
	})
	if err != nil && ctx.Err() == nil {
		appLog.Debug("usno shared request failed; retrying alone", "date", date, "error", err.Error())
		v, err = u.fetch(ctx, date, loc)
	}
	if err != nil {
		return nil, err
	}
	d = v.(usnoDay)
	u.remember(key, d)
	return d, nil
}

func (u *USNO) remember(key string, d usnoDay) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.memo) >= usnoMemoLimit {
		u.memo = make(map[string]usnoDay)
	}
	u.memo[key] = d
}

type usnoPhen struct {
	Phen string `json:"phen"`
	Time string `json:"time"`
}

type usnoResponse struct {
	Error      string `json:"error"`
	Properties struct {
		Data struct {
			SunData  []usnoPhen `json:"sundata"`
			MoonData []usnoPhen `json:"moondata"`
		} `json:"data"`
	} `json:"properties"`
}

func (u *USNO) fetch(ctx context.Context, date string, loc model.Location) (usnoDay, error) {
	q := url.Values{}
	q.Set("date", date)
	q.Set("coords", fmt.Sprintf("%.4f,%.4f", loc.Lat, loc.Lon))
	q.Set("tz", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usno: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usno: %s", resp.Status)
	}

	var body usnoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("usno: decode: %w", err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("usno: %s", body.Error)
	}

	d := make(usnoDay, 4)
	collect := func(phens []usnoPhen, rise, set Query) {
		for _, p := range phens {
			switch {
			case strings.EqualFold(p.Phen, "Rise"):
				d[rise] = p.Time
			case strings.EqualFold(p.Phen, "Set"):
				d[set] = p.Time
			}
		}
	}
	collect(body.Properties.Data.SunData, SunRise, SunSet)
	collect(body.Properties.Data.MoonData, MoonRise, MoonSet)

	appLog.Debug("usno day fetched", "date", date, "events", len(d))
	return d, nil
}
