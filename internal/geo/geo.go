// Package geo owns the process-wide Location selection: a default that may
// be replaced once by a geolocation read, or at any time by an explicit
// override.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	appLog "lunarcal/internal/log"
	"lunarcal/internal/model"
)

// DefaultIPURL is an IP geolocation endpoint answering {"status","lat","lon"}.
const DefaultIPURL = "http://ip-api.com/json/?fields=status,message,lat,lon"

// Observer performs a one-shot read of the device coordinates.
type Observer interface {
	Locate(ctx context.Context) (model.Location, error)
}

// IPObserver derives coordinates from the public IP address.
type IPObserver struct {
	url    string
	client *http.Client
}

func NewIPObserver(url string, timeout time.Duration) *IPObserver {
	if url == "" {
		url = DefaultIPURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &IPObserver{url: url, client: &http.Client{Timeout: timeout}}
}

func (o *IPObserver) Locate(ctx context.Context) (model.Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return model.Location{}, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return model.Location{}, fmt.Errorf("geo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Location{}, fmt.Errorf("geo: %s", resp.Status)
	}

	var body struct {
		Status  string   `json:"status"`
		Message string   `json:"message"`
		Lat     *float64 `json:"lat"`
		Lon     *float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.Location{}, fmt.Errorf("geo: decode: %w", err)
	}
	if body.Status != "" && body.Status != "success" {
		return model.Location{}, fmt.Errorf("geo: lookup %s: %s", body.Status, body.Message)
	}
	if body.Lat == nil || body.Lon == nil {
		return model.Location{}, errors.New("geo: response has no coordinates")
	}

	loc := model.Location{Lat: *body.Lat, Lon: *body.Lon}
	if !loc.Valid() {
		return model.Location{}, fmt.Errorf("geo: coordinates out of range: %v", loc)
	}
	return loc, nil
}

// State is the stage of the Location selection.
type State string

const (
	Unresolved      State = "unresolved"
	Resolved        State = "resolved"
	FailedDefaulted State = "failed-defaulted"
	Overridden      State = "overridden"
)

// Tracker holds the current Location. The observer may move it out of
// Unresolved exactly once; Override always applies.
type Tracker struct {
	mu    sync.RWMutex
	state State
	loc   model.Location
}

func NewTracker(def model.Location) *Tracker {
	return &Tracker{state: Unresolved, loc: def}
}

func (t *Tracker) Current() (model.Location, State) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loc, t.state
}

// Observe runs o once if the tracker is still Unresolved and applies the
// outcome. It reports whether the Location changed. A failed read keeps
// the default and is logged as a warning.
func (t *Tracker) Observe(ctx context.Context, o Observer) bool {
	if _, st := t.Current(); st != Unresolved {
		return false
	}

	loc, err := o.Locate(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Unresolved {
		return false
	}
	if err != nil {
		t.state = FailedDefaulted
		appLog.Warn("geolocation failed; keeping default location", "err", err.Error(), "lat", t.loc.Lat, "lon", t.loc.Lon)
		return false
	}
	changed := loc != t.loc
	t.state = Resolved
	t.loc = loc
	appLog.Info("geolocation resolved", "lat", loc.Lat, "lon", loc.Lon)
	return changed
}

// Override replaces the Location explicitly. It reports whether the
// Location changed.
func (t *Tracker) Override(loc model.Location) (bool, error) {
	if !loc.Valid() {
		return false, fmt.Errorf("geo: invalid location %v", loc)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := loc != t.loc
	t.loc = loc
	t.state = Overridden
	return changed, nil
}
