// Package merge keeps the latest events of every calendar source and answers
// "which events touch this day" for a visibility and person filter.
package merge

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	appLog "famboard/internal/log"
	"famboard/internal/model"
	"famboard/internal/timeutil"
)

// Source is display metadata for one calendar entity.
type Source struct {
	ID     string
	Person string
	Color  string
}

// Filter selects what a caller wants to see.
type Filter struct {
	// Visible lists the source IDs that are toggled on. Sources not listed
	// are hidden.
	Visible []string
	// Persons restricts events to these owners. Empty means everyone.
	Persons []string
}

// PersonKey normalizes a person name for filtering and pip grouping.
func PersonKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

type entry struct {
	version uint64
	events  []model.Event
}

// Store is safe for concurrent use. Each source's events are replaced as a
// whole; there is no incremental patching.
type Store struct {
	mu      sync.RWMutex
	sources map[string]Source
	entries map[string]entry
}

func NewStore(sources []Source) *Store {
	s := &Store{entries: make(map[string]entry)}
	s.SetSources(sources)
	return s
}

// SetSources replaces the source metadata. Events of removed sources are kept
// but can no longer be made visible.
func (s *Store) SetSources(sources []Source) {
	m := make(map[string]Source, len(sources))
	for _, src := range sources {
		m[src.ID] = src
	}
	s.mu.Lock()
	s.sources = m
	s.mu.Unlock()
}

// Apply stores events for sourceID if version is newer than what is held.
// It returns false for stale or duplicate versions, which are discarded.
func (s *Store) Apply(sourceID string, version uint64, events []model.Event) bool {
	byKey := make(map[string]int, len(events))
	kept := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if i, ok := byKey[ev.Key]; ok {
			kept[i] = ev
			continue
		}
		byKey[ev.Key] = len(kept)
		kept = append(kept, ev)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.entries[sourceID]; ok && version <= cur.version {
		appLog.Debug("merge: discarding stale result", "source", sourceID, "version", version, "current", cur.version)
		return false
	}
	s.entries[sourceID] = entry{version: version, events: kept}
	return true
}

// Version returns the version currently held for sourceID (0 if none).
func (s *Store) Version(sourceID string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[sourceID].version
}

// Events returns a copy of the events held for sourceID.
func (s *Store) Events(sourceID string) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries[sourceID].events)
}

// EventsForDay returns events of visible sources whose [Start, End)
// intersects day, each annotated with its source's owner and color.
func (s *Store) EventsForDay(day time.Time, f Filter) []model.DayEvent {
	start := timeutil.StartOfDay(day)
	return s.EventsInRange(start, timeutil.EndOfDay(start), f)
}

// MergedEventsForDay is EventsForDay with the same event surfaced by several
// sources collapsed into one record that lists every owner.
func (s *Store) MergedEventsForDay(day time.Time, f Filter) []model.DayEvent {
	return Dedup(s.EventsForDay(day, f))
}

// EventsInRange returns events intersecting [from, to) for the filter.
func (s *Store) EventsInRange(from, to time.Time, f Filter) []model.DayEvent {
	visible := toSet(f.Visible, func(v string) string { return v })
	persons := toSet(f.Persons, PersonKey)

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		if _, ok := visible[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var out []model.DayEvent
	for _, id := range ids {
		src, known := s.sources[id]
		if !known {
			continue
		}
		owner := PersonKey(src.Person)
		if len(persons) > 0 {
			if _, ok := persons[owner]; !ok {
				continue
			}
		}
		for _, ev := range s.entries[id].events {
			if !timeutil.Overlaps(ev.Start, ev.End, from, to) {
				continue
			}
			de := model.DayEvent{Event: ev, Sources: []string{id}, Color: src.Color}
			if owner != "" {
				de.Owners = []string{owner}
			}
			out = append(out, de)
		}
	}
	SortEvents(out)
	return out
}

// Dedup collapses events that share an identity across sources. The first
// occurrence (in input order) wins; later ones only add owners and sources.
func Dedup(events []model.DayEvent) []model.DayEvent {
	out := make([]model.DayEvent, 0, len(events))
	index := make(map[string]int, len(events))
	for _, ev := range events {
		id := identity(ev.Event)
		i, seen := index[id]
		if !seen {
			ev.Owners = slices.Clone(ev.Owners)
			ev.Sources = slices.Clone(ev.Sources)
			index[id] = len(out)
			out = append(out, ev)
			continue
		}
		merged := &out[i]
		for _, o := range ev.Owners {
			if !slices.Contains(merged.Owners, o) {
				merged.Owners = append(merged.Owners, o)
			}
		}
		for _, src := range ev.Sources {
			if !slices.Contains(merged.Sources, src) {
				merged.Sources = append(merged.Sources, src)
			}
		}
	}
	return out
}

func identity(ev model.Event) string {
	start := ev.Start.UTC().Format(time.RFC3339)
	if ev.UID != "" {
		return "uid:" + ev.UID + "|" + start
	}
	return "sum:" + ev.Summary + "|" + start + "|" + ev.End.UTC().Format(time.RFC3339)
}

// SortEvents orders by start, end, then key.
func SortEvents(events []model.DayEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.Key < b.Key
	})
}

func toSet(values []string, norm func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[norm(v)] = struct{}{}
	}
	return set
}
