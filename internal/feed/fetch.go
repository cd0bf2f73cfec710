package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	appLog "lunarcal/internal/log"
	"lunarcal/internal/model"
)

// Default feed locations. "{year}" is replaced with the four-digit year.
const (
	DefaultPhaseURL   = "https://raw.githubusercontent.com/CraigChamberlain/moon-data/master/api/moon-phase-data/{year}/index.json"
	DefaultNewMoonURL = "https://raw.githubusercontent.com/CraigChamberlain/moon-data/master/api/new-moon-data/{year}/index.json"
)

// ErrStatus wraps non-2xx feed responses.
var ErrStatus = errors.New("feed: unexpected status")

// Kind selects which feed supplies the markers.
type Kind int

const (
	// Phases is the four-phases-per-lunation feed.
	Phases Kind = iota
	// NewMoons lists new-moon instants only.
	NewMoons
)

func (k Kind) String() string {
	if k == NewMoons {
		return "new-moon"
	}
	return "phase"
}

// Fetcher downloads and parses yearly marker feeds. Failed fetches are not
// retried and nothing is cached.
type Fetcher struct {
	client     *http.Client
	phaseURL   string
	newMoonURL string
}

// NewFetcher creates a Fetcher. Empty URL templates select the defaults.
func NewFetcher(phaseURL, newMoonURL string, timeout time.Duration) *Fetcher {
	if phaseURL == "" {
		phaseURL = DefaultPhaseURL
	}
	if newMoonURL == "" {
		newMoonURL = DefaultNewMoonURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client:     &http.Client{Timeout: timeout},
		phaseURL:   phaseURL,
		newMoonURL: newMoonURL,
	}
}

// Fetch returns the chronologically sorted markers of the given feed for
// one year. Any transport, status or decode failure is returned as-is to
// the caller.
func (f *Fetcher) Fetch(ctx context.Context, kind Kind, year int) ([]model.PhaseMarker, error) {
	tmpl := f.phaseURL
	if kind == NewMoons {
		tmpl = f.newMoonURL
	}
	url := strings.ReplaceAll(tmpl, "{year}", strconv.Itoa(year))

	appLog.Info("feed fetch start", "feed", kind.String(), "year", year, "url", url)

	body, err := f.get(ctx, url)
	if err != nil {
		appLog.Error("feed fetch failed", err, "feed", kind.String(), "year", year)
		return nil, err
	}

	var markers []model.PhaseMarker
	if kind == NewMoons {
		markers, err = ParseNewMoons(body)
	} else {
		markers, err = ParsePhases(body)
	}
	if err != nil {
		appLog.Error("feed parse failed", err, "feed", kind.String(), "year", year)
		return nil, err
	}

	appLog.Info("feed fetch success", "feed", kind.String(), "year", year, "markers", len(markers))
	return markers, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
