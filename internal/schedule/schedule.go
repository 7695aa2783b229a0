// Package schedule assembles render-ready day rows for a rolling window of
// days: the all-day strip, the laid-out timed grid, per-person pips and the
// current-time indicator.
//
// Rows are derived from scratch on every call. Callers rebuild whenever the
// window, filters, event versions or the wall-clock minute change.
package schedule

import (
	"sort"
	"time"

	"famboard/internal/layout"
	"famboard/internal/merge"
	"famboard/internal/model"
	"famboard/internal/timeutil"
)

// EventSource yields the merged, filtered events of one day.
type EventSource interface {
	MergedEventsForDay(day time.Time, f merge.Filter) []model.DayEvent
}

// Config is everything a build depends on besides event data.
type Config struct {
	Filter merge.Filter

	// MaxColumns bounds side-by-side timed events; <= 0 is unbounded.
	MaxColumns int
	// DayStartHour and DayEndHour bound the visible grid, [start, end).
	DayStartHour int
	DayEndHour   int
	SlotMinutes  int
	// AllDayLimit caps the visible all-day events; <= 0 shows all.
	AllDayLimit int

	// Now places the current-time indicator. Zero disables it.
	Now time.Time
}

func (c Config) grid() model.Grid {
	start := timeutil.Clamp(c.DayStartHour, 0, 23) * 60
	end := timeutil.Clamp(c.DayEndHour, 1, 24) * 60
	if end <= start {
		start, end = 0, timeutil.MinutesPerDay
	}
	slot := c.SlotMinutes
	if slot <= 0 {
		slot = 30
	}
	return model.Grid{
		StartMin:    start,
		EndMin:      end,
		SlotMinutes: slot,
		Slots:       (end - start + slot - 1) / slot,
	}
}

type Engine struct {
	events EventSource
}

func NewEngine(events EventSource) *Engine {
	return &Engine{events: events}
}

// Build returns one row per day, in the order given.
func (e *Engine) Build(days []time.Time, cfg Config) []model.DayRow {
	rows := make([]model.DayRow, 0, len(days))
	for _, day := range days {
		rows = append(rows, e.BuildDay(day, cfg))
	}
	return rows
}

// BuildDay assembles the row for a single day.
func (e *Engine) BuildDay(day time.Time, cfg Config) model.DayRow {
	day = timeutil.StartOfDay(day)
	grid := cfg.grid()
	events := e.events.MergedEventsForDay(day, cfg.Filter)

	row := model.DayRow{
		Date:      day,
		Key:       timeutil.FormatDayKey(day),
		Grid:      grid,
		AllDay:    []model.DayEvent{},
		Timed:     []model.PositionedEvent{},
		Overflows: []model.Overflow{},
		Pips:      pips(events),
	}

	var timed []model.DayEvent
	for _, ev := range events {
		if ev.AllDay {
			row.AllDay = append(row.AllDay, ev)
		} else {
			timed = append(timed, ev)
		}
	}
	if cfg.AllDayLimit > 0 && len(row.AllDay) > cfg.AllDayLimit {
		row.HiddenAllDay = len(row.AllDay) - cfg.AllDayLimit
		row.AllDay = row.AllDay[:cfg.AllDayLimit]
	}

	items := make([]layout.Item, 0, len(timed))
	placed := make([]model.DayEvent, 0, len(timed))
	for _, ev := range timed {
		start := timeutil.Clamp(startMinute(day, ev.Start), grid.StartMin, grid.EndMin)
		end := timeutil.Clamp(endMinute(day, ev.End), grid.StartMin, grid.EndMin)
		if end <= start {
			row.OutOfRange++
			continue
		}
		items = append(items, layout.Item{Key: ev.Key, StartMin: start, EndMin: end})
		placed = append(placed, ev)
	}

	res := layout.Layout(items, layout.Options{MaxColumns: cfg.MaxColumns})
	for _, p := range res.Items {
		row.Timed = append(row.Timed, model.PositionedEvent{
			DayEvent:   placed[p.Index],
			StartMin:   p.StartMin,
			EndMin:     p.EndMin,
			Lane:       p.Lane,
			LanesTotal: p.LanesTotal,
		})
	}
	for _, o := range res.Overflows {
		row.Overflows = append(row.Overflows, model.Overflow{StartMin: o.StartMin, Count: o.Count, Keys: o.Keys})
	}

	if !cfg.Now.IsZero() && timeutil.SameDay(day, cfg.Now) {
		row.IsToday = true
		row.Now = nowIndicator(day, cfg.Now, grid, timed)
	}
	return row
}

func nowIndicator(day, now time.Time, grid model.Grid, timed []model.DayEvent) *model.NowIndicator {
	minute := timeutil.Clamp(timeutil.MinuteOfDay(day, now), grid.StartMin, grid.EndMin)
	ind := &model.NowIndicator{
		Minute:   minute,
		Fraction: float64(minute-grid.StartMin) / float64(grid.EndMin-grid.StartMin),
	}

	var active *model.DayEvent
	for i := range timed {
		if timed[i].ActiveAt(now) {
			ind.ActiveCount++
			active = &timed[i]
		}
	}
	if ind.ActiveCount == 1 {
		ev := *active
		ind.Active = &ev
	}
	return ind
}

// pips counts events per owner. An event shared by several owners counts
// once for each of them.
func pips(events []model.DayEvent) []model.Pip {
	byPerson := make(map[string]*model.Pip)
	for _, ev := range events {
		for _, owner := range ev.Owners {
			p, ok := byPerson[owner]
			if !ok {
				p = &model.Pip{Person: owner}
				byPerson[owner] = p
			}
			// A merged event carries its first source's color.
			if p.Color == "" && ev.Owner() == owner {
				p.Color = ev.Color
			}
			p.Count++
		}
	}

	out := make([]model.Pip, 0, len(byPerson))
	for _, p := range byPerson {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Person < out[j].Person })
	return out
}

func startMinute(day, t time.Time) int {
	return timeutil.MinuteOfDay(day, t)
}

// endMinute rounds up so sub-minute events keep a positive width.
func endMinute(day, t time.Time) int {
	m := timeutil.MinuteOfDay(day, t)
	start := timeutil.StartOfDay(day)
	local := t.In(start.Location())
	if t.After(start) && m < timeutil.MinutesPerDay && (local.Second() != 0 || local.Nanosecond() != 0) {
		m++
	}
	return m
}
