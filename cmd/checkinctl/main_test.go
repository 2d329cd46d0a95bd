package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safenotsorry/checkin/internal/config"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := rootCmd()

	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "version"},
		{"due"},
		{"recover"},
		{"send-test"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestSendTest_RequiresPhone(t *testing.T) {
	root := rootCmd()
	root.SetArgs([]string{"send-test"})
	root.SetOut(&discard{})
	root.SetErr(&discard{})

	assert.Error(t, root.Execute())
}

func TestParseAt(t *testing.T) {
	now := time.Date(2025, 3, 2, 22, 0, 42, 0, time.UTC)

	got, err := parseAt("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 2, 22, 0, 0, 0, time.UTC), got)

	got, err = parseAt("2025-03-03T09:00:30+11:00", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 2, 22, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())

	_, err = parseAt("tomorrow", now)
	assert.Error(t, err)
}

func TestDBConfig_DefaultZonesMatchService(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://x@localhost/db")
	t.Setenv("SUPPORTED_TIMEZONES", "")

	var cfg dbConfig
	require.NoError(t, config.Parse(&cfg))
	assert.Equal(t, config.DefaultSupportedTimezones, cfg.SupportedTimezones)
	assert.Contains(t, cfg.timezones(), "Africa/Lagos")
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
