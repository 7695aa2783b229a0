package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "UTC"
	defaultRefreshCron  = "*/15 * * * *"
	defaultDays         = 7
	defaultDayStartHour = 7
	defaultDayEndHour   = 21
	defaultSlotMinutes  = 30
	defaultMaxColumns   = 3
	defaultAllDayLimit  = 1
	defaultDataDir      = "./var/famboard"
)

// CalendarConfig describes a single calendar source shown on the board.
type CalendarConfig struct {
	// ID is an internal identifier used for visibility toggles and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name" json:"name"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// Person is the family member the calendar belongs to.
	Person string `yaml:"person,omitempty" json:"person,omitempty"`
	// Color is a CSS color used for the calendar's events and pips.
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
	// Hidden sources are loaded but not shown until toggled on.
	Hidden bool `yaml:"hidden,omitempty" json:"hidden,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// ScheduleConfig controls the day grid.
type ScheduleConfig struct {
	// Days is the number of days in the rolling window.
	Days int `yaml:"days" json:"days"`
	// DayStartHour / DayEndHour bound the visible hours of the timed grid.
	DayStartHour int `yaml:"day_start_hour" json:"day_start_hour"`
	DayEndHour   int `yaml:"day_end_hour" json:"day_end_hour"`
	// SlotMinutes is the grid row size.
	SlotMinutes int `yaml:"slot_minutes" json:"slot_minutes"`
	// MaxColumns bounds concurrent events drawn side by side.
	MaxColumns int `yaml:"max_columns" json:"max_columns"`
	// AllDayLimit is how many all-day events are shown before "+N".
	AllDayLimit int `yaml:"all_day_limit" json:"all_day_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as canonical display zone (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday starts a week view. Supported values:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic calendar refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	// Calendars is the list of subscribed calendar sources.
	Calendars []CalendarConfig `yaml:"calendars" json:"calendars"`

	// DataDir holds the preferences database and the ICS disk cache.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		WeekStart:   "monday",
		RefreshCron: defaultRefreshCron,
		Schedule: ScheduleConfig{
			Days:         defaultDays,
			DayStartHour: defaultDayStartHour,
			DayEndHour:   defaultDayEndHour,
			SlotMinutes:  defaultSlotMinutes,
			MaxColumns:   defaultMaxColumns,
			AllDayLimit:  defaultAllDayLimit,
		},
		Calendars: []CalendarConfig{},
		DataDir:   defaultDataDir,
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
		// ok
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = "monday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}

	s := &c.Schedule
	if s.Days <= 0 {
		s.Days = defaultDays
	}
	if s.DayStartHour < 0 || s.DayStartHour > 23 {
		s.DayStartHour = defaultDayStartHour
	}
	if s.DayEndHour <= s.DayStartHour || s.DayEndHour > 24 {
		s.DayEndHour = defaultDayEndHour
		if s.DayEndHour <= s.DayStartHour {
			s.DayEndHour = 24
		}
	}
	if s.SlotMinutes <= 0 || s.SlotMinutes > 60 {
		s.SlotMinutes = defaultSlotMinutes
	}
	if s.MaxColumns < 0 {
		s.MaxColumns = defaultMaxColumns
	}
	if s.AllDayLimit < 0 {
		s.AllDayLimit = defaultAllDayLimit
	}

	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	for i := range c.Calendars {
		cal := &c.Calendars[i]
		if cal.ID == "" {
			// Same fallback order the API has always used for unnamed sources.
			switch {
			case cal.Name != "":
				cal.ID = cal.Name
			default:
				cal.ID = cal.URL
			}
		}
		cal.Person = strings.TrimSpace(cal.Person)
	}
}

// VisibleCalendarIDs returns the IDs of calendars not marked hidden.
func (c *Config) VisibleCalendarIDs() []string {
	ids := make([]string, 0, len(c.Calendars))
	for _, cal := range c.Calendars {
		if !cal.Hidden {
			ids = append(ids, cal.ID)
		}
	}
	return ids
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".famboard-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
