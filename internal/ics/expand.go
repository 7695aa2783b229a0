package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "famboard/internal/log"
	"famboard/internal/model"
	"famboard/internal/timeutil"
)

const defaultMaxOccurrences = 5000

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// Location is the zone occurrences are converted to. Nil means UTC.
	Location *time.Location

	// Occurrences intersecting [RangeStart, RangeEnd) are returned.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrences caps each series. Zero uses 5000.
	MaxOccurrences int
}

// ExpandResult holds expanded entries and the UIDs whose series hit the cap.
type ExpandResult struct {
	Events    []model.RawEvent
	Truncated []string
}

// Expand turns parsed VEVENTs into concrete entries within the range. RRULE
// series are expanded with their EXDATEs removed and RECURRENCE-ID overrides
// substituted.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: range end before range start")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = defaultMaxOccurrences
	}

	overrides := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride() && ev.UID != "" {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		}
	}

	for _, ev := range events {
		if ev.IsOverride() && ev.UID != "" {
			continue
		}
		var ov []ParsedEvent
		if ev.UID != "" {
			ov = overrides[ev.UID]
		}
		if ev.RawRRule == "" {
			result.Events = append(result.Events, expandSingle(ev, ov, cfg)...)
			continue
		}
		occ, capped := expandRecurring(ev, ov, cfg)
		result.Events = append(result.Events, occ...)
		if capped {
			result.Truncated = append(result.Truncated, ev.UID)
			appLog.Warn("ics: recurrence truncated", "uid", ev.UID, "cap", cfg.MaxOccurrences)
		}
	}

	sort.SliceStable(result.Events, func(i, j int) bool {
		return result.Events[i].Start.Time.Before(result.Events[j].Start.Time)
	})
	return result, nil
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.RawEvent {
	if o, ok := findOverride(overrides, ev.Start); ok {
		ev = o
	}
	if !inRange(ev.Start, ev.End, cfg) {
		return nil
	}
	return []model.RawEvent{toRaw(ev, ev.Start, ev.End, cfg.Location)}
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.RawEvent, bool) {
	opt, err := rrule.StrToROptionInLocation(ev.RawRRule, ev.Start.Location())
	if err != nil {
		appLog.Error("ics: bad RRULE, keeping first instance only", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return expandSingle(ev, overrides, cfg), false
	}
	opt.Dtstart = ev.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		appLog.Error("ics: bad RRULE, keeping first instance only", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return expandSingle(ev, overrides, cfg), false
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)
	if ev.End.IsZero() || dur < 0 {
		dur = 0
	}
	// Instances that started before the range may still be running inside it.
	from := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	to := cfg.RangeEnd.In(ev.Start.Location())

	starts := set.Between(from, to, true)
	capped := false
	if len(starts) > cfg.MaxOccurrences {
		starts = starts[:cfg.MaxOccurrences]
		capped = true
	}

	out := make([]model.RawEvent, 0, len(starts))
	for _, s := range starts {
		inst := ev
		end := s.Add(dur)
		if ev.End.IsZero() {
			end = time.Time{}
		}
		if o, ok := findOverride(overrides, s); ok {
			inst, s, end = o, o.Start, o.End
		}
		if !inRange(s, end, cfg) {
			continue
		}
		out = append(out, toRaw(inst, s, end, cfg.Location))
	}
	return out, capped
}

// findOverride returns the override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.RecurrenceID != nil && ov.RecurrenceID.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func inRange(start, end time.Time, cfg ExpandConfig) bool {
	if end.IsZero() || !end.After(start) {
		// Point events occupy their start instant.
		return !start.Before(cfg.RangeStart) && start.Before(cfg.RangeEnd)
	}
	return timeutil.Overlaps(start, end, cfg.RangeStart, cfg.RangeEnd)
}

// toRaw builds the backend entry for one instance. All-day instances keep
// their calendar date regardless of zone conversion.
func toRaw(ev ParsedEvent, start, end time.Time, loc *time.Location) model.RawEvent {
	raw := model.RawEvent{
		UID:         ev.UID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
	}
	if ev.Seq > 0 {
		raw.Extra = map[string]any{"sequence": ev.Seq}
	}
	if ev.AllDay {
		raw.Start = model.DateBoundary(asDate(start, loc))
		if !end.IsZero() {
			raw.End = model.DateBoundary(asDate(end, loc))
		}
		return raw
	}
	raw.Start = model.TimeBoundary(start.In(loc))
	if !end.IsZero() {
		raw.End = model.TimeBoundary(end.In(loc))
	}
	return raw
}

func asDate(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
