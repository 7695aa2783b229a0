package ics

import (
	"context"
	"fmt"
	"time"

	"famboard/internal/cache"
	appLog "famboard/internal/log"
	"famboard/internal/model"
)

// Calendar serves calendar entries for a date range from ICS subscriptions.
// Expanded results are cached per source and range.
type Calendar struct {
	fetcher  *Fetcher
	cache    *cache.Cache[[]model.RawEvent]
	location *time.Location
}

// NewCalendar wires a fetcher and an entry cache. A nil cache disables
// caching.
func NewCalendar(fetcher *Fetcher, c *cache.Cache[[]model.RawEvent], loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{fetcher: fetcher, cache: c, location: loc}
}

func cacheKey(src Source, from, to time.Time) string {
	return src.ID + "|" + src.URL + "|" + from.UTC().Format(time.RFC3339) + "|" + to.UTC().Format(time.RFC3339)
}

// FetchEvents returns the entries of src intersecting [from, to).
func (c *Calendar) FetchEvents(ctx context.Context, src Source, from, to time.Time) ([]model.RawEvent, error) {
	key := cacheKey(src, from, to)
	if c.cache != nil {
		if e, ok := c.cache.Get(key); ok {
			appLog.Debug("ics: cache hit", "id", src.ID, "stored_at", e.StoredAt)
			return e.Value, nil
		}
	}

	res, err := c.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	parsed, err := Parse(src, res.Body, c.location)
	if err != nil {
		return nil, err
	}
	expanded, err := Expand(parsed, ExpandConfig{
		Location:   c.location,
		RangeStart: from,
		RangeEnd:   to,
	})
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", src.ID, err)
	}

	if c.cache != nil {
		c.cache.Set(key, expanded.Events)
	}
	return expanded.Events, nil
}

// Invalidate drops cached entries so the next fetch goes to the network.
func (c *Calendar) Invalidate() {
	if c.cache != nil {
		c.cache.Purge()
	}
}
