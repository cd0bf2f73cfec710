package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunarcal/internal/model"
)

var (
	moscow = model.Location{Lat: 55.7558, Lon: 37.6173}
	berlin = model.Location{Lat: 52.52, Lon: 13.405}
)

type observerFunc func(ctx context.Context) (model.Location, error)

func (f observerFunc) Locate(ctx context.Context) (model.Location, error) { return f(ctx) }

func TestTrackerObserveOnce(t *testing.T) {
	tr := NewTracker(moscow)
	loc, st := tr.Current()
	assert.Equal(t, moscow, loc)
	assert.Equal(t, Unresolved, st)

	calls := 0
	obs := observerFunc(func(context.Context) (model.Location, error) {
		calls++
		return berlin, nil
	})

	assert.True(t, tr.Observe(context.Background(), obs))
	assert.False(t, tr.Observe(context.Background(), obs))
	assert.Equal(t, 1, calls)

	loc, st = tr.Current()
	assert.Equal(t, berlin, loc)
	assert.Equal(t, Resolved, st)
}

func TestTrackerObserveFailureKeepsDefault(t *testing.T) {
	tr := NewTracker(moscow)
	changed := tr.Observe(context.Background(), observerFunc(func(context.Context) (model.Location, error) {
		return model.Location{}, errors.New("permission denied")
	}))
	assert.False(t, changed)

	loc, st := tr.Current()
	assert.Equal(t, moscow, loc)
	assert.Equal(t, FailedDefaulted, st)
}

func TestTrackerOverride(t *testing.T) {
	tr := NewTracker(moscow)

	changed, err := tr.Override(berlin)
	require.NoError(t, err)
	assert.True(t, changed)

	// The observer no longer runs once an override happened.
	assert.False(t, tr.Observe(context.Background(), observerFunc(func(context.Context) (model.Location, error) {
		t.Fatal("observer must not run")
		return model.Location{}, nil
	})))

	_, err = tr.Override(model.Location{Lat: 91})
	assert.Error(t, err)

	loc, st := tr.Current()
	assert.Equal(t, berlin, loc)
	assert.Equal(t, Overridden, st)
}

func TestIPObserver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","lat":52.52,"lon":13.405}`))
	}))
	defer srv.Close()

	loc, err := NewIPObserver(srv.URL, time.Second).Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, berlin, loc)
}

func TestIPObserverFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"fail","message":"private range"}`))
	}))
	defer srv.Close()

	_, err := NewIPObserver(srv.URL, time.Second).Locate(context.Background())
	assert.ErrorContains(t, err, "private range")
}
