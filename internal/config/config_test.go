package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultRoute, cfg.Console.Route)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.True(t, cfg.Console.Stream)
}

func TestFromYAMLAppliesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("console:\n  route: /officer\n  active_officer: 1A-12\n"))
	require.NoError(t, err)
	assert.Equal(t, "/officer", cfg.Console.Route)
	assert.Equal(t, "1A-12", cfg.Console.ActiveOfficer)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"relative route", "console:\n  route: officer\n"},
		{"bad level", "logging:\n  level: loud\n"},
		{"bad format", "logging:\n  format: xml\n"},
		{"webhook without url", "webhooks:\n  - events: [call.assign]\n"},
		{"relative base path", "server:\n  base_path: api\n"},
		{"broken yaml", "server: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultRoute, cfg.Console.Route)

	_, err = Load(dir)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(Path(dir), []byte("console:\n  route: /ems-fd\n"), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/ems-fd", cfg.Console.Route)
}
