package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famboard/internal/model"
)

var day = time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

func ev(key, summary string, start, end time.Time) model.Event {
	return model.Event{Key: key, Summary: summary, Start: start, End: end}
}

func at(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

func summaries(events []model.DayEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Summary)
	}
	return out
}

func newFamilyStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore([]Source{
		{ID: "calendar.alex", Person: "Alex", Color: "#f00"},
		{ID: "calendar.sam", Person: "Sam", Color: "#00f"},
		{ID: "calendar.house"},
	})
	require.True(t, s.Apply("calendar.alex", 1, []model.Event{ev("a1", "Swim", at(9, 0), at(10, 0))}))
	require.True(t, s.Apply("calendar.sam", 1, []model.Event{ev("s1", "Piano", at(11, 0), at(12, 0))}))
	require.True(t, s.Apply("calendar.house", 1, []model.Event{ev("h1", "Bins", at(7, 0), at(7, 15))}))
	return s
}

var allSources = []string{"calendar.alex", "calendar.sam", "calendar.house"}

func TestEventsForDay_PersonFilter(t *testing.T) {
	s := newFamilyStore(t)

	got := s.EventsForDay(day, Filter{Visible: allSources, Persons: []string{"alex"}})
	assert.Equal(t, []string{"Swim"}, summaries(got))

	got = s.EventsForDay(day, Filter{Visible: allSources, Persons: []string{" ALEX "}})
	assert.Equal(t, []string{"Swim"}, summaries(got))

	got = s.EventsForDay(day, Filter{Visible: allSources})
	assert.Equal(t, []string{"Bins", "Swim", "Piano"}, summaries(got))
}

func TestEventsForDay_VisibilityAndAnnotations(t *testing.T) {
	s := newFamilyStore(t)

	got := s.EventsForDay(day, Filter{Visible: []string{"calendar.sam", "calendar.unknown"}})
	require.Len(t, got, 1)
	assert.Equal(t, "Piano", got[0].Summary)
	assert.Equal(t, []string{"sam"}, got[0].Owners)
	assert.Equal(t, "#00f", got[0].Color)
	assert.Equal(t, []string{"calendar.sam"}, got[0].Sources)

	assert.Empty(t, s.EventsForDay(day, Filter{}))
}

func TestEventsForDay_UnownedHiddenByPersonFilter(t *testing.T) {
	s := newFamilyStore(t)
	got := s.EventsForDay(day, Filter{Visible: []string{"calendar.house"}, Persons: []string{"sam"}})
	assert.Empty(t, got)
}

func TestEventsForDay_MidnightAndMultiDay(t *testing.T) {
	s := NewStore([]Source{{ID: "c"}})
	s.Apply("c", 1, []model.Event{
		ev("late", "Late flight", at(22, 0), at(26, 0)),
		ev("trip", "Trip", day.AddDate(0, 0, -1), day.AddDate(0, 0, 2)),
		ev("edge", "Ends at midnight", at(23, 0), at(24, 0)),
	})
	f := Filter{Visible: []string{"c"}}

	assert.ElementsMatch(t, []string{"Late flight", "Trip", "Ends at midnight"}, summaries(s.EventsForDay(day, f)))
	assert.ElementsMatch(t, []string{"Late flight", "Trip"}, summaries(s.EventsForDay(day.AddDate(0, 0, 1), f)))
	assert.ElementsMatch(t, []string{"Trip"}, summaries(s.EventsForDay(day.AddDate(0, 0, -1), f)))
	assert.Empty(t, s.EventsForDay(day.AddDate(0, 0, 2), f))
}

func TestApply_DiscardsStaleVersions(t *testing.T) {
	s := NewStore([]Source{{ID: "c"}})
	require.True(t, s.Apply("c", 2, []model.Event{ev("new", "New", at(9, 0), at(10, 0))}))
	assert.False(t, s.Apply("c", 1, []model.Event{ev("old", "Old", at(9, 0), at(10, 0))}))
	assert.False(t, s.Apply("c", 2, nil))
	assert.Equal(t, uint64(2), s.Version("c"))
	assert.Equal(t, "New", s.Events("c")[0].Summary)

	require.True(t, s.Apply("c", 3, nil))
	assert.Empty(t, s.Events("c"))
}

func TestApply_SameKeyLastWins(t *testing.T) {
	s := NewStore([]Source{{ID: "c"}})
	s.Apply("c", 1, []model.Event{
		ev("k", "First", at(9, 0), at(10, 0)),
		ev("k", "Second", at(9, 0), at(10, 0)),
	})
	got := s.EventsForDay(day, Filter{Visible: []string{"c"}})
	assert.Equal(t, []string{"Second"}, summaries(got))
}

func TestEvents_ReturnsCopy(t *testing.T) {
	s := NewStore([]Source{{ID: "c"}})
	s.Apply("c", 1, []model.Event{ev("k", "Keep", at(9, 0), at(10, 0))})
	got := s.Events("c")
	got[0].Summary = "mutated"
	assert.Equal(t, "Keep", s.Events("c")[0].Summary)
}

func TestMergedEventsForDay_CollapsesSharedEvents(t *testing.T) {
	s := NewStore([]Source{
		{ID: "calendar.alex", Person: "Alex", Color: "#f00"},
		{ID: "calendar.sam", Person: "Sam", Color: "#00f"},
	})
	shared := model.Event{UID: "dentist", Summary: "Dentist", Start: at(15, 0), End: at(16, 0)}
	a, b := shared, shared
	a.Key, a.SourceID = "alex-dentist", "calendar.alex"
	b.Key, b.SourceID = "sam-dentist", "calendar.sam"
	s.Apply("calendar.alex", 1, []model.Event{a, ev("a2", "Swim", at(9, 0), at(10, 0))})
	s.Apply("calendar.sam", 1, []model.Event{b})

	f := Filter{Visible: []string{"calendar.alex", "calendar.sam"}}
	assert.Len(t, s.EventsForDay(day, f), 3)

	merged := s.MergedEventsForDay(day, f)
	require.Len(t, merged, 2)
	assert.Equal(t, "Dentist", merged[1].Summary)
	assert.Equal(t, []string{"alex", "sam"}, merged[1].Owners)
	assert.Equal(t, []string{"calendar.alex", "calendar.sam"}, merged[1].Sources)
	assert.Equal(t, "#f00", merged[1].Color)
}

func TestDedup_WithoutUIDUsesSummaryAndBounds(t *testing.T) {
	base := model.DayEvent{Event: ev("x", "Dinner", at(18, 0), at(19, 0)), Owners: []string{"alex"}}
	other := model.DayEvent{Event: ev("y", "Dinner", at(18, 0), at(19, 0)), Owners: []string{"sam"}}
	longer := model.DayEvent{Event: ev("z", "Dinner", at(18, 0), at(20, 0)), Owners: []string{"sam"}}

	got := Dedup([]model.DayEvent{base, other, longer})
	require.Len(t, got, 2)
	assert.Equal(t, []string{"alex", "sam"}, got[0].Owners)
	assert.Equal(t, []string{"alex"}, base.Owners)
}

func TestPersonKey(t *testing.T) {
	assert.Equal(t, "mary ann", PersonKey("  Mary   Ann "))
	assert.Equal(t, "", PersonKey(" "))
}
