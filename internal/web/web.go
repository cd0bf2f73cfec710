package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"lunarcal/internal/calendar"
	"lunarcal/internal/config"
	"lunarcal/internal/export"
	appLog "lunarcal/internal/log"
	"lunarcal/internal/model"
)

// Calendar is the part of calendar.Calendar the HTTP layer needs.
type Calendar interface {
	Events() []model.CalendarEvent
	Revision() calendar.Revision
	Status() calendar.Status
	Relocate(ctx context.Context, loc model.Location) error
	Refresh(ctx context.Context) error
}

// Server exposes the merged lunar calendar over HTTP.
type Server struct {
	cfg *config.Config
	cal Calendar

	// baseCtx outlives single requests; background relocations use it.
	baseCtx context.Context

	mux *http.ServeMux

	// In-memory cache for /api/events responses; invalidated when the
	// calendar revision changes.
	eventsMu    sync.RWMutex
	eventsCache *eventsCache
}

// eventsCache holds the last merged event list and the revision it was
// built from.
type eventsCache struct {
	revision  calendar.Revision
	events    []model.CalendarEvent
	updatedAt time.Time
}

const eventsCacheTTL = 30 * time.Second

// NewServer constructs a new Server. ctx bounds background work started
// by requests.
func NewServer(ctx context.Context, cfg *config.Config, cal Calendar) *Server {
	s := &Server{
		cfg:     cfg,
		cal:     cal,
		baseCtx: ctx,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="lunarcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/location", s.handleGetLocation)
	s.mux.HandleFunc("POST /api/location", s.handleSetLocation)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// events returns the merged list, rebuilding it when the revision moved
// or the cached copy is older than eventsCacheTTL.
func (s *Server) events() []model.CalendarEvent {
	rev := s.cal.Revision()
	now := time.Now()

	s.eventsMu.RLock()
	ec := s.eventsCache
	s.eventsMu.RUnlock()
	if ec != nil && ec.revision == rev && now.Sub(ec.updatedAt) < eventsCacheTTL {
		return ec.events
	}

	events := s.cal.Events()

	s.eventsMu.Lock()
	s.eventsCache = &eventsCache{
		revision:  rev,
		events:    events,
		updatedAt: now,
	}
	s.eventsMu.Unlock()
	return events
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events   []model.CalendarEvent `json:"events"`
	Revision calendar.Revision     `json:"revision"`
	From     *time.Time            `json:"from,omitempty"`
	To       *time.Time            `json:"to,omitempty"`
}

// handleEvents returns the merged event list.
//
// GET /api/events?from=RFC3339&to=RFC3339
//   - from, to: optional; keep only events overlapping [from, to]
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from: "+err.Error())
		return
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to: "+err.Error())
		return
	}

	events := s.events()
	if from != nil || to != nil {
		events = filterRange(events, from, to)
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:   events,
		Revision: s.cal.Revision(),
		From:     from,
		To:       to,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cal.Status())
}

type locationResponse struct {
	Location model.Location `json:"location"`
	State    string         `json:"state"`
}

func (s *Server) handleGetLocation(w http.ResponseWriter, _ *http.Request) {
	st := s.cal.Status()
	writeJSON(w, http.StatusOK, locationResponse{Location: st.Location, State: string(st.LocationState)})
}

// handleSetLocation overrides the Location and re-resolves the
// astronomical window.
//
// POST /api/location {"lat": 52.52, "lon": 13.405}
//   - wait=1: resolve before responding (200); otherwise respond 202 and
//     resolve in the background.
func (s *Server) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	var loc model.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !loc.Valid() {
		writeError(w, http.StatusBadRequest, "coordinates out of range")
		return
	}

	appLog.Info("location override requested", "lat", loc.Lat, "lon", loc.Lon)

	if r.URL.Query().Get("wait") == "1" {
		if err := s.cal.Relocate(r.Context(), loc); err != nil {
			appLog.Error("relocate failed", err)
			writeError(w, http.StatusInternalServerError, "failed to resolve location")
			return
		}
		writeJSON(w, http.StatusOK, locationResponse{Location: loc, State: string(s.cal.Status().LocationState)})
		return
	}

	go func() {
		if err := s.cal.Relocate(s.baseCtx, loc); err != nil {
			appLog.Error("background relocate failed", err, "lat", loc.Lat, "lon", loc.Lon)
		}
	}()
	writeJSON(w, http.StatusAccepted, locationResponse{Location: loc, State: "pending"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.cal.Refresh(r.Context()); err != nil {
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.cal.Status())
}

func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := export.Write(&buf, s.events(), export.Options{Name: "Lunar calendar"}); err != nil {
		appLog.Error("ics export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func parseTimeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// filterRange keeps events overlapping [from, to]; a nil bound is open.
func filterRange(events []model.CalendarEvent, from, to *time.Time) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(events))
	for _, e := range events {
		if from != nil && e.End.Before(*from) {
			continue
		}
		if to != nil && e.Start.After(*to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
