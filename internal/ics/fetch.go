package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "famboard/internal/log"
	"famboard/internal/timeutil"
)

const (
	defaultCacheDir     = "./var/famboard/ics-cache"
	defaultFetchTimeout = 15 * time.Second
	// Subscription feeds are small; anything larger is a misconfigured URL.
	maxBodyBytes = 16 << 20
)

var ErrNoCachedBody = errors.New("not modified but no cached body available")

// Source is a single ICS subscription.
type Source struct {
	ID  string
	URL string
}

// FetchResult is the payload of one source, fresh or from the disk cache.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool
}

// cacheMeta is the HTTP validator state stored next to a cached body.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads ICS feeds with conditional requests and keeps the last
// good body on disk so that a flaky server does not blank the board.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	clock    timeutil.Clock
}

// NewFetcher creates a fetcher storing per-URL cache directories under
// cacheDir. A nil client gets a 15s timeout.
func NewFetcher(cacheDir string, client *http.Client, clock timeutil.Clock) *Fetcher {
	if cacheDir == "" {
		cacheDir = defaultCacheDir
	}
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Fetcher{client: client, cacheDir: cacheDir, clock: clock}
}

// Fetch downloads src honoring ETag and Last-Modified. On network errors and
// non-OK statuses the cached body is returned when there is one.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, fmt.Errorf("source %q: URL is empty", src.ID)
	}

	dir := f.cacheDirFor(src.URL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return FetchResult{}, fmt.Errorf("ics cache dir: %w", err)
	}
	meta, _ := loadMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL))

	fallback := func(cause error) (FetchResult, error) {
		if len(cached) == 0 {
			return FetchResult{}, cause
		}
		appLog.Warn("ics fetch failed, using cached body", "id", src.ID, "url", redactURL(src.URL), "err", cause)
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(fmt.Errorf("fetch %s: %w", redactURL(src.URL), err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fallback(fmt.Errorf("read %s: %w", redactURL(src.URL), err))
		}
		meta := cacheMeta{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    f.clock.Now().UTC(),
		}
		if err := saveCache(dir, meta, body); err != nil {
			appLog.Error("ics cache save failed", err, "id", src.ID, "url", redactURL(src.URL))
		}
		appLog.Info("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return FetchResult{}, fmt.Errorf("source %q: %w", src.ID, ErrNoCachedBody)
		}
		appLog.Debug("ics not modified", "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil

	default:
		return fallback(fmt.Errorf("fetch %s: unexpected status %s", redactURL(src.URL), resp.Status))
	}
}

func (f *Fetcher) cacheDirFor(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

// saveCache writes the body before the metadata so that validators never
// describe a body that is not on disk.
func saveCache(dir string, meta cacheMeta, body []byte) error {
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; subscription paths usually embed a
// private token.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
