package todo

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDue(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     RawItem
		kind    DueKind
		want    string
		wantErr bool
	}{
		{name: "nothing", raw: RawItem{}, kind: NoDueKind, want: ""},
		{name: "blank fields", raw: RawItem{Due: "  ", DueDate: " "}, kind: NoDueKind},
		{name: "due_date", raw: RawItem{DueDate: "2026-02-15"}, kind: DateOnlyKind, want: "2026-02-15"},
		{name: "due_datetime zoned", raw: RawItem{DueDateTime: "2026-02-15T09:30:00Z"}, kind: DateTimeKind, want: "2026-02-15T09:30:00Z"},
		{name: "due_datetime local", raw: RawItem{DueDateTime: "2026-02-15 09:30"}, kind: DateTimeKind, want: "2026-02-15T09:30:00+01:00"},
		{name: "generic date", raw: RawItem{Due: "2026-02-15"}, kind: DateOnlyKind, want: "2026-02-15"},
		{name: "generic datetime", raw: RawItem{Due: "2026-02-15T18:00:00+01:00"}, kind: DateTimeKind, want: "2026-02-15T18:00:00+01:00"},
		{name: "datetime wins", raw: RawItem{Due: "2026-01-01", DueDate: "2026-01-02", DueDateTime: "2026-01-03T10:00:00Z"}, kind: DateTimeKind, want: "2026-01-03T10:00:00Z"},
		{name: "date beats generic", raw: RawItem{Due: "2026-01-01", DueDate: "2026-01-02"}, kind: DateOnlyKind, want: "2026-01-02"},
		{name: "bad due_date", raw: RawItem{DueDate: "15.02.2026"}, wantErr: true},
		{name: "bad generic", raw: RawItem{Due: "tomorrow"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseDue(tt.raw, berlin)
			if tt.wantErr {
				assert.True(t, res.IsError())
				assert.Equal(t, NoDueKind, res.OrElse(NoDue()).Kind())
				return
			}
			d, err := res.Get()
			require.NoError(t, err)
			assert.Equal(t, tt.kind, d.Kind())
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestDueInfo_Accessors(t *testing.T) {
	at := time.Date(2026, 2, 15, 9, 30, 0, 0, time.UTC)

	assert.False(t, NoDue().Date().IsPresent())
	assert.False(t, NoDue().DateTime().IsPresent())

	d := DueDate(at)
	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), d.Date().MustGet())
	assert.False(t, d.DateTime().IsPresent())

	dt := DueAt(at)
	assert.Equal(t, at, dt.DateTime().MustGet())
	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), dt.Date().MustGet())
}

func TestDueInfo_DueOnAndOverdue(t *testing.T) {
	day := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	dateOnly := DueDate(day)
	timed := DueAt(day.Add(18 * time.Hour))

	assert.True(t, dateOnly.DueOn(day.Add(5*time.Hour)))
	assert.False(t, dateOnly.DueOn(day.AddDate(0, 0, 1)))
	assert.True(t, timed.DueOn(day))
	assert.False(t, NoDue().DueOn(day))

	assert.False(t, dateOnly.Overdue(day.Add(23*time.Hour)))
	assert.True(t, dateOnly.Overdue(day.AddDate(0, 0, 1)))
	assert.False(t, timed.Overdue(day.Add(18*time.Hour)))
	assert.True(t, timed.Overdue(day.Add(18*time.Hour+time.Second)))
	assert.False(t, NoDue().Overdue(day.AddDate(1, 0, 0)))
}

func TestMatch(t *testing.T) {
	label := func(d DueInfo) string {
		return Match(d,
			func() string { return "-" },
			func(time.Time) string { return "day" },
			func(time.Time) string { return "at" },
		)
	}
	now := time.Now()
	assert.Equal(t, "-", label(NoDue()))
	assert.Equal(t, "day", label(DueDate(now)))
	assert.Equal(t, "at", label(DueAt(now)))
}

func TestDueInfo_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Item{ID: "1", Summary: "Milk", Due: DueDate(time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","summary":"Milk","completed":false,"due":{"kind":"date","value":"2026-02-15"}}`, string(b))

	b, err = json.Marshal(Item{ID: "2", Summary: "Bread"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"2","summary":"Bread","completed":false,"due":null}`, string(b))
}
