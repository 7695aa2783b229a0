package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		"Error":   LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLogWritesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}) })

	Debug("hidden", "k", "v")
	assert.Empty(t, buf.String())

	Info("refresh done", "calendars", 3, "dangling")
	out := buf.String()
	assert.Contains(t, out, "refresh done")
	assert.Contains(t, out, "calendars=3")
	assert.NotContains(t, out, "dangling")

	buf.Reset()
	Error("fetch failed", errors.New("boom"), "id", "family")
	assert.Contains(t, buf.String(), "err=boom")
	assert.Contains(t, buf.String(), "id=family")
}
