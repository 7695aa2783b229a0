// Package normalize turns backend calendar entries into canonical events.
//
// Normalization never fails loudly: entries without a usable start are
// dropped, and degenerate intervals are widened so that every event has a
// strictly positive duration.
package normalize

import (
	"maps"
	"strings"
	"time"

	appLog "famboard/internal/log"
	"famboard/internal/model"
	"famboard/internal/timeutil"
)

// Placeholder is the summary used when a backend sends none.
const Placeholder = "(No title)"

var (
	dateLayouts = []string{
		"2006-01-02",
		"20060102",
	}
	// Layouts that carry their own zone.
	zonedLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z0700",
		"20060102T150405Z",
	}
	// Layouts interpreted in the normalizer's location.
	localLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"20060102T150405",
	}
)

// Normalizer parses boundaries relative to Location (UTC when nil).
type Normalizer struct {
	Location *time.Location
}

func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{Location: loc}
}

func (n *Normalizer) loc() *time.Location {
	if n == nil || n.Location == nil {
		return time.UTC
	}
	return n.Location
}

// Normalize converts raw into an Event. The boolean is false when the entry
// has no parsable start and must be skipped.
func (n *Normalizer) Normalize(sourceID string, raw model.RawEvent) (model.Event, bool) {
	start, startDate, ok := n.parseBoundary(raw.Start)
	if !ok {
		appLog.Debug("normalize: dropping event with unparsable start",
			"source", sourceID, "uid", raw.UID, "start", raw.Start.Value)
		return model.Event{}, false
	}

	end, endDate, ok := n.parseBoundary(raw.End)
	if !ok {
		end = start
		endDate = false
	}

	allDay := raw.AllDay || startDate || endDate
	if !end.After(start) {
		if allDay {
			end = timeutil.AddDays(start, 1)
		} else {
			end = start.Add(time.Minute)
		}
	}

	summary := strings.TrimSpace(raw.Summary)
	if summary == "" {
		summary = Placeholder
	}

	ev := model.Event{
		UID:         raw.UID,
		SourceID:    sourceID,
		Summary:     summary,
		Description: raw.Description,
		Location:    raw.Location,
		AllDay:      allDay,
		Start:       start,
		End:         end,
		Extra:       maps.Clone(raw.Extra),
	}
	ev.Key = identityKey(sourceID, ev)
	return ev, true
}

// NormalizeAll normalizes a source's entries and reports how many were dropped.
func (n *Normalizer) NormalizeAll(sourceID string, raws []model.RawEvent) ([]model.Event, int) {
	out := make([]model.Event, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		ev, ok := n.Normalize(sourceID, raw)
		if !ok {
			dropped++
			continue
		}
		out = append(out, ev)
	}
	if dropped > 0 {
		appLog.Info("normalize: dropped unusable events", "source", sourceID, "dropped", dropped, "kept", len(out))
	}
	return out, dropped
}

func (n *Normalizer) parseBoundary(b model.Boundary) (time.Time, bool, bool) {
	if !b.Time.IsZero() {
		if b.DateOnly {
			return timeutil.StartOfDay(b.Time), true, true
		}
		return b.Time, false, true
	}

	s := strings.TrimSpace(b.Value)
	if s == "" {
		return time.Time{}, false, false
	}
	loc := n.loc()

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true, true
		}
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return n.dateHint(t, b.DateOnly), b.DateOnly, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return n.dateHint(t, b.DateOnly), b.DateOnly, true
		}
	}
	return time.Time{}, false, false
}

// dateHint truncates t to its day when the backend flagged it as a date.
func (n *Normalizer) dateHint(t time.Time, dateOnly bool) time.Time {
	if !dateOnly {
		return t
	}
	return timeutil.StartOfDay(t.In(n.loc()))
}

// identityKey is unique per occurrence: recurring instances share a UID, so
// the start instant is always part of the key.
func identityKey(sourceID string, ev model.Event) string {
	stamp := ev.Start.UTC().Format(time.RFC3339)
	if ev.UID != "" {
		return ev.UID + "|" + stamp
	}
	return sourceID + "|" + stamp + "|" + ev.Summary
}
