package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"famboard/internal/board"
	"famboard/internal/config"
	appLog "famboard/internal/log"
	"famboard/internal/model"
	"famboard/internal/timeutil"
)

const (
	defaultDays = 7
	maxDays     = 31
)

// Server exposes the board over a small JSON API.
type Server struct {
	cfg   *config.Config
	board *board.Board
	mux   *http.ServeMux
}

func NewServer(cfg *config.Config, b *board.Board) *Server {
	s := &Server{
		cfg:   cfg,
		board: b,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the routes, wrapped in basic auth when configured.
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
	// Empty credentials disable auth rather than lock everyone out.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards everything except /health.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="famboard", charset="UTF-8"`)
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

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/sources", s.handleSources)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /api/prefs", s.handleGetPrefs)
	s.mux.HandleFunc("PUT /api/prefs", s.handlePutPrefs)
	s.registerTodoRoutes()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type scheduleResponse struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Timezone    string         `json:"timezone"`
	Days        []model.DayRow `json:"days"`
}

// handleSchedule returns the day rows.
//
// GET /api/schedule?days=7&start=2026-02-15
//   - without parameters the current snapshot is returned
//   - days is clamped to [1, 31]; start defaults to today
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("days") == "" && q.Get("start") == "" {
		snap := s.board.Snapshot()
		writeJSON(w, http.StatusOK, scheduleResponse(snap))
		return
	}

	loc := s.board.Location()
	days := timeutil.Clamp(parseIntDefault(q.Get("days"), s.cfg.Schedule.Days), 1, maxDays)
	start := s.board.Now()
	if v := q.Get("start"); v != "" {
		t, err := timeutil.ParseDayKey(v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return
		}
		start = t
	}

	writeJSON(w, http.StatusOK, scheduleResponse{
		GeneratedAt: s.board.Now(),
		Timezone:    loc.String(),
		Days:        s.board.Schedule(start, days),
	})
}

type eventsResponse struct {
	Events     []eventDTO `json:"events"`
	RangeStart time.Time  `json:"range_start"`
	RangeEnd   time.Time  `json:"range_end"`
	Timezone   string     `json:"timezone"`
	WeekStart  string     `json:"week_start"`
}

type eventDTO struct {
	Key         string    `json:"key"`
	UID         string    `json:"uid,omitempty"`
	Sources     []string  `json:"sources"`
	Owners      []string  `json:"owners,omitempty"`
	Color       string    `json:"color,omitempty"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// handleEvents lists visible events around today.
//
// GET /api/events?days=7&backfill=1
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), defaultDays)
	if days <= 0 {
		days = defaultDays
	}
	backfill := max(parseIntDefault(q.Get("backfill"), 1), 0)

	loc := s.board.Location()
	today := timeutil.StartOfDay(s.board.Now())
	rangeStart := timeutil.AddDays(today, -backfill)
	rangeEnd := timeutil.AddDays(today, days)

	events := s.board.Events(rangeStart, rangeEnd)
	dtos := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, eventDTO{
			Key:         ev.Key,
			UID:         ev.UID,
			Sources:     ev.Sources,
			Owners:      ev.Owners,
			Color:       ev.Color,
			Summary:     ev.Summary,
			Description: ev.Description,
			Location:    ev.Location,
			AllDay:      ev.AllDay,
			Start:       ev.Start,
			End:         ev.End,
		})
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:     dtos,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		Timezone:   loc.String(),
		WeekStart:  s.cfg.WeekStart,
	})
}

type sourceDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Person string `json:"person,omitempty"`
	Color  string `json:"color,omitempty"`
	Hidden bool   `json:"hidden"`
}

// handleSources lists calendars without their subscription URLs.
func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	srcs := s.board.Sources()
	out := make([]sourceDTO, 0, len(srcs))
	for _, c := range srcs {
		out = append(out, sourceDTO{ID: c.ID, Name: c.Name, Person: c.Person, Color: c.Color, Hidden: c.Hidden})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.board.Refresh(r.Context()); err != nil {
		appLog.Error("api refresh finished with errors", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse(s.board.Snapshot()))
}

func (s *Server) handleGetPrefs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.board.Prefs())
}

type prefsRequest struct {
	VisibleSources []string `json:"visible_sources"`
	Persons        []string `json:"persons"`
}

func (s *Server) handlePutPrefs(w http.ResponseWriter, r *http.Request) {
	var req prefsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := s.board.Prefs()
	if req.VisibleSources != nil {
		p.VisibleSources = req.VisibleSources
	}
	if req.Persons != nil {
		p.Persons = req.Persons
	}
	if err := s.board.SetPrefs(r.Context(), p); err != nil {
		appLog.Error("api prefs save failed", err)
		writeError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}
	writeJSON(w, http.StatusOK, s.board.Prefs())
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ResolveLocation loads an IANA zone, falling back to local time.
func ResolveLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
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
