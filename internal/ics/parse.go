package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "famboard/internal/log"
)

// ParsedEvent is one VEVENT before recurrence expansion.
type ParsedEvent struct {
	UID string
	Seq int

	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
	ExDates  []time.Time
	// RecurrenceID is set on VEVENTs that override one instance of a series.
	RecurrenceID *time.Time
}

// IsOverride reports whether the event replaces one recurring instance.
func (e ParsedEvent) IsOverride() bool {
	return e.RecurrenceID != nil
}

// Parse reads an ICS payload. VEVENTs without a start are skipped; floating
// times are interpreted in loc.
func Parse(src Source, body []byte, loc *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", src.ID, err)
	}

	events := make([]ParsedEvent, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(ve, loc)
		if err != nil {
			appLog.Debug("ics: skipping vevent", "id", src.ID, "err", err)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	var out ParsedEvent

	out.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	if seq := propValue(ve, ical.ComponentPropertySequence); seq != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(seq)); err == nil {
			out.Seq = n
		}
	}
	out.Summary = propValue(ve, ical.ComponentPropertySummary)
	out.Description = propValue(ve, ical.ComponentPropertyDescription)
	out.Location = propValue(ve, ical.ComponentPropertyLocation)

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)

	start, err := propTime(dtStart, loc)
	if err != nil {
		return out, fmt.Errorf("DTSTART %q: %w", dtStart.Value, err)
	}
	out.Start = start

	// A missing or unreadable DTEND leaves End zero; normalization widens it.
	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		if end, err := propTime(dtEnd, loc); err == nil {
			out.End = end
		}
	} else if dur := propValue(ve, ical.ComponentPropertyDuration); dur != "" {
		if d, err := parseDuration(dur); err == nil {
			out.End = start.Add(d)
		}
	}

	out.RawRRule = propValue(ve, ical.ComponentPropertyRrule)

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, paramLocation(p, start.Location())); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty("RECURRENCE-ID"); rid != nil {
		if t, err := parseICSTime(rid.Value, paramLocation(rid, start.Location())); err == nil {
			out.RecurrenceID = &t
		}
	}

	return out, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// paramLocation resolves the TZID parameter, falling back to def.
func paramLocation(p *ical.IANAProperty, def *time.Location) *time.Location {
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		if l, err := time.LoadLocation(tzs[0]); err == nil {
			return l
		}
	}
	return def
}

func propTime(p *ical.IANAProperty, loc *time.Location) (time.Time, error) {
	return parseICSTime(p.Value, paramLocation(p, loc))
}

// parseICSTime parses DATE, floating DATE-TIME and UTC DATE-TIME values.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

// parseDuration handles the RFC 5545 dur-value subset calendars emit:
// PnW or PnDTnHnMnS, optionally signed.
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(v, "-"):
		sign, v = -1, v[1:]
	case strings.HasPrefix(v, "+"):
		v = v[1:]
	}
	if !strings.HasPrefix(v, "P") {
		return 0, fmt.Errorf("duration %q: missing P", v)
	}
	v = v[1:]

	var total time.Duration
	inTime := false
	num := 0
	digits := false
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
			digits = true
			continue
		case r == 'T':
			inTime = true
			continue
		}
		if !digits {
			return 0, fmt.Errorf("duration %q: missing number", v)
		}
		n := time.Duration(num)
		switch {
		case r == 'W' && !inTime:
			total += n * 7 * 24 * time.Hour
		case r == 'D' && !inTime:
			total += n * 24 * time.Hour
		case r == 'H' && inTime:
			total += n * time.Hour
		case r == 'M' && inTime:
			total += n * time.Minute
		case r == 'S' && inTime:
			total += n * time.Second
		default:
			return 0, fmt.Errorf("duration %q: unexpected %q", v, r)
		}
		num, digits = 0, false
	}
	if digits {
		return 0, fmt.Errorf("duration %q: trailing number", v)
	}
	return sign * total, nil
}
