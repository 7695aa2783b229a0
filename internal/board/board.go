// Package board ties calendar refresh, the merged event store and the
// schedule engine together and keeps the current day rows ready to serve.
package board

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"famboard/internal/config"
	"famboard/internal/ics"
	appLog "famboard/internal/log"
	"famboard/internal/merge"
	"famboard/internal/model"
	"famboard/internal/normalize"
	"famboard/internal/prefs"
	"famboard/internal/schedule"
	"famboard/internal/timeutil"
	"famboard/internal/todo"
)

// CalendarBackend returns the raw entries of one source within a range.
type CalendarBackend interface {
	FetchEvents(ctx context.Context, src ics.Source, from, to time.Time) ([]model.RawEvent, error)
}

type PrefsStore interface {
	Load(ctx context.Context) (prefs.Prefs, error)
	Save(ctx context.Context, p prefs.Prefs) error
}

// TodoSource lists the todo lists and their items.
type TodoSource interface {
	TodoLists(ctx context.Context) ([]string, error)
	TodoItems(ctx context.Context, listID string) ([]todo.RawItem, error)
}

type Options struct {
	Config   *config.Config
	Location *time.Location
	Clock    timeutil.Clock
	Calendar CalendarBackend
	Prefs    PrefsStore
	Todos    *todo.Store
	// TodoSource is optional; without it todo lists are only what callers add.
	TodoSource TodoSource
}

// Snapshot is the last built rolling window. It is replaced, never mutated.
type Snapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Timezone    string         `json:"timezone"`
	Days        []model.DayRow `json:"days"`
}

type Board struct {
	cfg        *config.Config
	loc        *time.Location
	clock      timeutil.Clock
	calendar   CalendarBackend
	prefsStore PrefsStore
	todos      *todo.Store
	todoSource TodoSource

	store      *merge.Store
	engine     *schedule.Engine
	normalizer *normalize.Normalizer

	// version orders refresh results; a result is applied only if no later
	// request for the same source has been applied already.
	version atomic.Uint64

	mu       sync.RWMutex
	prefs    prefs.Prefs
	snapshot Snapshot

	// buildMu serializes Rebuild so a build never publishes over a later one.
	buildMu sync.Mutex

	refreshMu sync.Mutex
	lastErr   error
	lastRun   time.Time
}

func New(opts Options) (*Board, error) {
	if opts.Config == nil {
		return nil, errors.New("board: config is nil")
	}
	if opts.Calendar == nil {
		return nil, errors.New("board: calendar backend is nil")
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	todos := opts.Todos
	if todos == nil {
		todos = todo.NewStore(nil, loc)
	}

	sources := make([]merge.Source, 0, len(opts.Config.Calendars))
	for _, cal := range opts.Config.Calendars {
		sources = append(sources, merge.Source{ID: cal.ID, Person: cal.Person, Color: cal.Color})
	}
	store := merge.NewStore(sources)

	b := &Board{
		cfg:        opts.Config,
		loc:        loc,
		clock:      clock,
		calendar:   opts.Calendar,
		prefsStore: opts.Prefs,
		todos:      todos,
		todoSource: opts.TodoSource,
		store:      store,
		engine:     schedule.NewEngine(store),
		normalizer: normalize.New(loc),
		prefs:      prefs.Prefs{VisibleSources: opts.Config.VisibleCalendarIDs()},
	}
	return b, nil
}

// LoadPrefs restores saved toggles. Without saved prefs the config's
// non-hidden calendars are visible.
func (b *Board) LoadPrefs(ctx context.Context) error {
	if b.prefsStore == nil {
		return nil
	}
	p, err := b.prefsStore.Load(ctx)
	if errors.Is(err, prefs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.prefs = p
	b.mu.Unlock()
	b.Rebuild()
	return nil
}

func (b *Board) Prefs() prefs.Prefs {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return prefs.Prefs{
		VisibleSources: slices.Clone(b.prefs.VisibleSources),
		Persons:        slices.Clone(b.prefs.Persons),
	}
}

// SetPrefs persists p and rebuilds the board with it.
func (b *Board) SetPrefs(ctx context.Context, p prefs.Prefs) error {
	if p.VisibleSources == nil {
		p.VisibleSources = []string{}
	}
	if b.prefsStore != nil {
		if err := b.prefsStore.Save(ctx, p); err != nil {
			return fmt.Errorf("save prefs: %w", err)
		}
	}
	b.mu.Lock()
	b.prefs = p
	b.mu.Unlock()
	b.Rebuild()
	return nil
}

// Sources lists the configured calendars.
func (b *Board) Sources() []config.CalendarConfig {
	return slices.Clone(b.cfg.Calendars)
}

func (b *Board) Location() *time.Location {
	return b.loc
}

func (b *Board) Todos() *todo.Store {
	return b.todos
}

func (b *Board) filter() merge.Filter {
	p := b.Prefs()
	return merge.Filter{Visible: p.VisibleSources, Persons: p.Persons}
}

func (b *Board) scheduleConfig(now time.Time) schedule.Config {
	s := b.cfg.Schedule
	return schedule.Config{
		Filter:       b.filter(),
		MaxColumns:   s.MaxColumns,
		DayStartHour: s.DayStartHour,
		DayEndHour:   s.DayEndHour,
		SlotMinutes:  s.SlotMinutes,
		AllDayLimit:  s.AllDayLimit,
		Now:          now,
	}
}

// Now is the board's current time in its location.
func (b *Board) Now() time.Time {
	return b.clock.Now().In(b.loc)
}

// window is the range refreshes fetch: the configured days from today.
func (b *Board) window() (time.Time, time.Time) {
	start := timeutil.StartOfDay(b.Now())
	return start, timeutil.AddDays(start, b.cfg.Schedule.Days)
}

// Refresh fetches every configured calendar concurrently and rebuilds the
// snapshot. A failing source keeps its previous events; the joined errors of
// all failed sources are returned.
func (b *Board) Refresh(ctx context.Context) error {
	from, to := b.window()

	var (
		wg   sync.WaitGroup
		emu  sync.Mutex
		errs []error
	)
	for _, cal := range b.cfg.Calendars {
		if cal.URL == "" {
			continue
		}
		version := b.version.Add(1)
		wg.Add(1)
		go func(cal config.CalendarConfig) {
			defer wg.Done()
			if err := b.refreshSource(ctx, cal, version, from, to); err != nil {
				emu.Lock()
				errs = append(errs, err)
				emu.Unlock()
			}
		}(cal)
	}
	if err := b.refreshTodos(ctx); err != nil {
		emu.Lock()
		errs = append(errs, err)
		emu.Unlock()
	}
	wg.Wait()

	err := errors.Join(errs...)
	b.refreshMu.Lock()
	b.lastErr = err
	b.lastRun = b.clock.Now()
	b.refreshMu.Unlock()

	b.Rebuild()
	return err
}

func (b *Board) refreshSource(ctx context.Context, cal config.CalendarConfig, version uint64, from, to time.Time) error {
	raws, err := b.calendar.FetchEvents(ctx, ics.Source{ID: cal.ID, URL: cal.URL}, from, to)
	if err != nil {
		appLog.Error("board: calendar refresh failed", err, "source", cal.ID)
		return fmt.Errorf("source %q: %w", cal.ID, err)
	}
	events, _ := b.normalizer.NormalizeAll(cal.ID, raws)
	if !b.store.Apply(cal.ID, version, events) {
		appLog.Debug("board: stale calendar result discarded", "source", cal.ID, "version", version)
		return nil
	}
	appLog.Info("board: calendar refreshed", "source", cal.ID, "events", len(events), "version", version)
	return nil
}

func (b *Board) refreshTodos(ctx context.Context) error {
	if b.todoSource == nil {
		return nil
	}
	lists, err := b.todoSource.TodoLists(ctx)
	if err != nil {
		return fmt.Errorf("todo lists: %w", err)
	}
	for _, id := range lists {
		version := b.version.Add(1)
		items, err := b.todoSource.TodoItems(ctx, id)
		if err != nil {
			appLog.Error("board: todo refresh failed", err, "list", id)
			return fmt.Errorf("todo list %q: %w", id, err)
		}
		b.todos.Load(id, version, items)
	}
	return nil
}

// LastRefresh reports when Refresh last finished and its error.
func (b *Board) LastRefresh() (time.Time, error) {
	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()
	return b.lastRun, b.lastErr
}

// Rebuild recomputes the rolling window from the current state.
func (b *Board) Rebuild() Snapshot {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()

	now := b.Now()
	days := timeutil.RollingWindow(now, b.cfg.Schedule.Days)
	snap := Snapshot{
		GeneratedAt: now,
		Timezone:    b.loc.String(),
		Days:        b.engine.Build(days, b.scheduleConfig(now)),
	}
	b.mu.Lock()
	b.snapshot = snap
	b.mu.Unlock()
	return snap
}

// Snapshot returns the last built window.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot
}

// Schedule builds rows for an arbitrary window without touching the
// snapshot. Days outside the last refresh range show no events.
func (b *Board) Schedule(start time.Time, days int) []model.DayRow {
	return b.engine.Build(timeutil.RollingWindow(start.In(b.loc), days), b.scheduleConfig(b.Now()))
}

// Events returns the visible events intersecting [from, to).
func (b *Board) Events(from, to time.Time) []model.DayEvent {
	return merge.Dedup(b.store.EventsInRange(from, to, b.filter()))
}
