package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Boundary is one end of a raw calendar event as delivered by a backend.
// Backends speaking JSON send either a bare string or an object with a
// "date" / "dateTime" member; Go backends (ICS) fill Time directly.
type Boundary struct {
	// Value is the textual form, date-only ("2026-02-15") or date-time.
	Value string
	// DateOnly marks Value/Time as a calendar date without time of day.
	DateOnly bool
	// Time is set by backends that already hold a parsed timestamp.
	Time time.Time
}

// DateBoundary builds a date-only boundary from a parsed time.
func DateBoundary(t time.Time) Boundary {
	return Boundary{Time: t, DateOnly: true}
}

// TimeBoundary builds a date-time boundary from a parsed time.
func TimeBoundary(t time.Time) Boundary {
	return Boundary{Time: t}
}

func (b Boundary) IsZero() bool {
	return b.Value == "" && b.Time.IsZero()
}

func (b *Boundary) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = Boundary{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = Boundary{Value: s}
		return nil
	}

	var obj struct {
		Date      string `json:"date"`
		DateTime  string `json:"dateTime"`
		DateTime2 string `json:"date_time"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("boundary: %w", err)
	}
	switch {
	case obj.DateTime != "":
		*b = Boundary{Value: obj.DateTime}
	case obj.DateTime2 != "":
		*b = Boundary{Value: obj.DateTime2}
	case obj.Date != "":
		*b = Boundary{Value: obj.Date, DateOnly: true}
	default:
		*b = Boundary{}
	}
	return nil
}

func (b Boundary) MarshalJSON() ([]byte, error) {
	switch {
	case b.Value != "":
		return json.Marshal(b.Value)
	case b.Time.IsZero():
		return []byte("null"), nil
	case b.DateOnly:
		return json.Marshal(b.Time.Format("2006-01-02"))
	default:
		return json.Marshal(b.Time.Format(time.RFC3339))
	}
}

// RawEvent is a backend calendar entry before normalization. The core never
// mutates it.
type RawEvent struct {
	UID         string         `json:"uid,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	Location    string         `json:"location,omitempty"`
	Start       Boundary       `json:"start"`
	End         Boundary       `json:"end"`
	AllDay      bool           `json:"all_day,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Event is the canonical form of a calendar entry. End is always after Start.
type Event struct {
	// Key is a stable identity used for dedup and deterministic ordering.
	Key      string `json:"key"`
	UID      string `json:"uid,omitempty"`
	SourceID string `json:"source_id"`

	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	AllDay bool      `json:"all_day"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`

	Extra map[string]any `json:"extra,omitempty"`
}

// ActiveAt reports whether t falls in [Start, End).
func (e Event) ActiveAt(t time.Time) bool {
	return !t.Before(e.Start) && t.Before(e.End)
}

// DayEvent is an Event annotated for display on a particular day.
type DayEvent struct {
	Event
	// Owners lists the normalized person keys the event belongs to. More than
	// one entry means several sources surfaced the same event.
	Owners  []string `json:"owners,omitempty"`
	Sources []string `json:"sources,omitempty"`
	Color   string   `json:"color,omitempty"`
}

// Owner returns the primary owner key or "".
func (e DayEvent) Owner() string {
	if len(e.Owners) == 0 {
		return ""
	}
	return e.Owners[0]
}

// PositionedEvent is a timed event placed on the day grid.
type PositionedEvent struct {
	DayEvent
	StartMin   int `json:"start_min"`
	EndMin     int `json:"end_min"`
	Lane       int `json:"lane"`
	LanesTotal int `json:"lanes_total"`
}

// Overflow summarises events that did not fit into the visible columns.
// Count is the number of hidden events, not hidden lanes.
type Overflow struct {
	StartMin int      `json:"start_min"`
	Count    int      `json:"count"`
	Keys     []string `json:"keys,omitempty"`
}

// Pip is a per-person event count shown in a day header.
type Pip struct {
	Person string `json:"person"`
	Color  string `json:"color,omitempty"`
	Count  int    `json:"count"`
}

// NowIndicator positions the current-time line on today's grid. Fraction is
// the offset within the visible hour range, 0..1.
// Active is set only when exactly one timed event is running.
type NowIndicator struct {
	Minute      int       `json:"minute"`
	Fraction    float64   `json:"fraction"`
	ActiveCount int       `json:"active_count"`
	Active      *DayEvent `json:"active,omitempty"`
}

// Grid describes the visible time range of a day.
type Grid struct {
	StartMin    int `json:"start_min"`
	EndMin      int `json:"end_min"`
	SlotMinutes int `json:"slot_minutes"`
	Slots       int `json:"slots"`
}

// DayRow is the render-ready bundle for one calendar day. Rows are always
// rebuilt from scratch; consumers replace, never patch.
type DayRow struct {
	Date    time.Time `json:"date"`
	Key     string    `json:"key"`
	IsToday bool      `json:"is_today"`
	Grid    Grid      `json:"grid"`

	AllDay       []DayEvent `json:"all_day"`
	HiddenAllDay int        `json:"hidden_all_day"`

	Timed      []PositionedEvent `json:"timed"`
	Overflows  []Overflow        `json:"overflows"`
	OutOfRange int               `json:"out_of_range"`

	Pips []Pip         `json:"pips"`
	Now  *NowIndicator `json:"now,omitempty"`
}
