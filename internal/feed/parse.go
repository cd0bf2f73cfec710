// Package feed loads the yearly moon marker feeds: a phase feed of
// {"Date", "Phase"} records and a new-moon feed of plain date strings.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"lunarcal/internal/model"
)

type phaseRecord struct {
	Date  string `json:"Date"`
	Phase int    `json:"Phase"`
}

// ParsePhases decodes a phase feed document. Records with an unknown phase
// index are rejected.
func ParsePhases(body []byte) ([]model.PhaseMarker, error) {
	var recs []phaseRecord
	if err := json.Unmarshal(body, &recs); err != nil {
		return nil, fmt.Errorf("feed: decode phases: %w", err)
	}

	out := make([]model.PhaseMarker, 0, len(recs))
	for i, r := range recs {
		ts, err := parseTime(r.Date)
		if err != nil {
			return nil, fmt.Errorf("feed: phase record %d: %w", i, err)
		}
		p := model.Phase(r.Phase)
		if !p.Valid() {
			return nil, fmt.Errorf("feed: phase record %d: phase %d out of range", i, r.Phase)
		}
		out = append(out, model.PhaseMarker{Timestamp: ts, Phase: p})
	}
	sortMarkers(out)
	return out, nil
}

// ParseNewMoons decodes a new-moon feed document. Every marker is PhaseNew.
func ParseNewMoons(body []byte) ([]model.PhaseMarker, error) {
	var dates []string
	if err := json.Unmarshal(body, &dates); err != nil {
		return nil, fmt.Errorf("feed: decode new moons: %w", err)
	}

	out := make([]model.PhaseMarker, 0, len(dates))
	for i, d := range dates {
		ts, err := parseTime(d)
		if err != nil {
			return nil, fmt.Errorf("feed: new moon %d: %w", i, err)
		}
		out = append(out, model.PhaseMarker{Timestamp: ts, Phase: model.PhaseNew})
	}
	sortMarkers(out)
	return out, nil
}

// Zone-less values are taken as UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateOnly,
}

func parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", v)
}

func sortMarkers(m []model.PhaseMarker) {
	slices.SortStableFunc(m, func(a, b model.PhaseMarker) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}
