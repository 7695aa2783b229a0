package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_NormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
timezone: Europe/Berlin
week_start: friday
schedule:
  day_start_hour: 22
  slot_minutes: 90
  max_columns: 2
calendars:
  - name: Alex
    url: https://example.com/alex.ics
    person: "  alex "
    color: "#f80"
  - url: https://example.com/school.ics
    hidden: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	assert.Equal(t, "monday", cfg.WeekStart)
	assert.Equal(t, defaultListen, cfg.Listen)

	assert.Equal(t, 22, cfg.Schedule.DayStartHour)
	assert.Equal(t, 24, cfg.Schedule.DayEndHour)
	assert.Equal(t, defaultSlotMinutes, cfg.Schedule.SlotMinutes)
	assert.Equal(t, 2, cfg.Schedule.MaxColumns)
	assert.Equal(t, defaultDays, cfg.Schedule.Days)

	require.Len(t, cfg.Calendars, 2)
	assert.Equal(t, "Alex", cfg.Calendars[0].ID)
	assert.Equal(t, "alex", cfg.Calendars[0].Person)
	assert.Equal(t, "https://example.com/school.ics", cfg.Calendars[1].ID)
	assert.Equal(t, []string{"Alex"}, cfg.VisibleCalendarIDs())
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Calendars = append(cfg.Calendars, CalendarConfig{ID: "sam", URL: "https://example.com/sam.ics", Person: "sam"})
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".famboard-config-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSave_Errors(t *testing.T) {
	assert.Error(t, Save("", DefaultConfig()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("calendars: [unterminated"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}
