package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunarcal/internal/model"
)

const phases2021 = `[
  {"Date":"2021-01-06T09:37:00.000Z","Phase":3},
  {"Date":"2021-01-13T05:00:00.000Z","Phase":0},
  {"Date":"2021-01-20T21:01:00.000Z","Phase":1},
  {"Date":"2021-01-28T19:16:00.000Z","Phase":2}
]`

const newMoons2021 = `["2021-02-11T19:05:00.000Z", "2021-01-13T05:00:00.000Z", "2021-03-13T10:21"]`

func TestParsePhases(t *testing.T) {
	m, err := ParsePhases([]byte(phases2021))
	require.NoError(t, err)
	require.Len(t, m, 4)

	assert.Equal(t, model.PhaseMarker{
		Timestamp: time.Date(2021, 1, 6, 9, 37, 0, 0, time.UTC),
		Phase:     model.PhaseLastQuarter,
	}, m[0])
	for i := 1; i < len(m); i++ {
		assert.Equal(t, m[i-1].Phase.Next(), m[i].Phase)
		assert.True(t, m[i].Timestamp.After(m[i-1].Timestamp))
	}
}

func TestParsePhasesRejectsBadInput(t *testing.T) {
	_, err := ParsePhases([]byte(`{"Date":"x"}`))
	assert.Error(t, err)

	_, err = ParsePhases([]byte(`[{"Date":"2021-01-06T09:37:00Z","Phase":4}]`))
	assert.ErrorContains(t, err, "out of range")

	_, err = ParsePhases([]byte(`[{"Date":"yesterday","Phase":0}]`))
	assert.ErrorContains(t, err, "unrecognized date")
}

func TestParseNewMoonsSortsAndAcceptsNaiveDates(t *testing.T) {
	m, err := ParseNewMoons([]byte(newMoons2021))
	require.NoError(t, err)
	require.Len(t, m, 3)

	assert.Equal(t, time.Date(2021, 1, 13, 5, 0, 0, 0, time.UTC), m[0].Timestamp)
	assert.Equal(t, time.Date(2021, 3, 13, 10, 21, 0, 0, time.UTC), m[2].Timestamp)
	for _, x := range m {
		assert.Equal(t, model.PhaseNew, x.Phase)
	}
}

func TestFetcher(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/phases/2021.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(phases2021))
	})
	mux.HandleFunc("/new/2021.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(newMoons2021))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewFetcher(srv.URL+"/phases/{year}.json", srv.URL+"/new/{year}.json", time.Second)

	m, err := f.Fetch(context.Background(), Phases, 2021)
	require.NoError(t, err)
	assert.Len(t, m, 4)

	m, err = f.Fetch(context.Background(), NewMoons, 2021)
	require.NoError(t, err)
	assert.Len(t, m, 3)

	_, err = f.Fetch(context.Background(), Phases, 2022)
	assert.ErrorIs(t, err, ErrStatus)
}

func TestFetcherTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewFetcher(url+"/{year}", "", time.Second).Fetch(context.Background(), Phases, 2021)
	assert.Error(t, err)
}
