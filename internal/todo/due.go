package todo

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"

	"famboard/internal/timeutil"
)

type DueKind int

const (
	NoDueKind DueKind = iota
	DateOnlyKind
	DateTimeKind
)

func (k DueKind) String() string {
	switch k {
	case DateOnlyKind:
		return "date"
	case DateTimeKind:
		return "datetime"
	default:
		return "none"
	}
}

// DueInfo is either no due date, a calendar date, or an instant. It is only
// ever built by the constructors below and ParseDue.
type DueInfo struct {
	kind DueKind
	at   time.Time
}

func NoDue() DueInfo {
	return DueInfo{}
}

// DueDate keeps only the calendar date of d, in d's location.
func DueDate(d time.Time) DueInfo {
	return DueInfo{kind: DateOnlyKind, at: timeutil.StartOfDay(d)}
}

func DueAt(t time.Time) DueInfo {
	return DueInfo{kind: DateTimeKind, at: t}
}

func (d DueInfo) Kind() DueKind {
	return d.kind
}

// Date is the due day for both dated kinds.
func (d DueInfo) Date() mo.Option[time.Time] {
	if d.kind == NoDueKind {
		return mo.None[time.Time]()
	}
	return mo.Some(timeutil.StartOfDay(d.at))
}

// DateTime is only present for DateTimeKind.
func (d DueInfo) DateTime() mo.Option[time.Time] {
	if d.kind != DateTimeKind {
		return mo.None[time.Time]()
	}
	return mo.Some(d.at)
}

// Match dispatches on the kind.
func Match[T any](d DueInfo, none func() T, date func(time.Time) T, dateTime func(time.Time) T) T {
	switch d.kind {
	case DateOnlyKind:
		return date(d.at)
	case DateTimeKind:
		return dateTime(d.at)
	default:
		return none()
	}
}

// DueOn reports whether the item is due on day.
func (d DueInfo) DueOn(day time.Time) bool {
	return d.Date().
		Map(func(v time.Time) (time.Time, bool) { return v, timeutil.SameDay(v, day) }).
		IsPresent()
}

// Overdue reports whether the due point lies before now. A date-only item is
// overdue once its whole day has passed.
func (d DueInfo) Overdue(now time.Time) bool {
	return Match(d,
		func() bool { return false },
		func(day time.Time) bool { return !now.Before(timeutil.EndOfDay(day)) },
		func(at time.Time) bool { return now.After(at) },
	)
}

func (d DueInfo) String() string {
	return Match(d,
		func() string { return "" },
		func(day time.Time) string { return timeutil.FormatDayKey(day) },
		func(at time.Time) string { return at.Format(time.RFC3339) },
	)
}

func (d DueInfo) MarshalJSON() ([]byte, error) {
	if d.kind == NoDueKind {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}{d.kind.String(), d.String()})
}

// ParseDue reads the due fields a backend may send. due_datetime wins over
// due_date, which wins over the generic due field. No field at all is NoDue;
// a present but unreadable field is an error.
func ParseDue(raw RawItem, loc *time.Location) mo.Result[DueInfo] {
	if loc == nil {
		loc = time.UTC
	}
	if v := strings.TrimSpace(raw.DueDateTime); v != "" {
		t, err := parseDateTime(v, loc)
		if err != nil {
			return mo.Err[DueInfo](fmt.Errorf("due_datetime %q: %w", v, err))
		}
		return mo.Ok(DueAt(t))
	}
	if v := strings.TrimSpace(raw.DueDate); v != "" {
		t, err := timeutil.ParseDayKey(v, loc)
		if err != nil {
			return mo.Err[DueInfo](fmt.Errorf("due_date %q: %w", v, err))
		}
		return mo.Ok(DueDate(t))
	}
	if v := strings.TrimSpace(raw.Due); v != "" {
		if t, err := timeutil.ParseDayKey(v, loc); err == nil {
			return mo.Ok(DueDate(t))
		}
		t, err := parseDateTime(v, loc)
		if err != nil {
			return mo.Err[DueInfo](fmt.Errorf("due %q: %w", v, err))
		}
		return mo.Ok(DueAt(t))
	}
	return mo.Ok(NoDue())
}

func parseDateTime(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date-time")
}
