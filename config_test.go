package openroute_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/openroute"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
title = "Widget Service"
version = "2.0.0"
description = "Widgets as a service"
routes_dir = "defs"
addr = ":9090"

[contact]
name = "Platform Team"
email = "platform@example.com"

[license]
name = "MIT"

[[servers]]
url = "https://api.example.com"
description = "production"
`), 0o600))

	cfg, err := openroute.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Widget Service", cfg.Title)
	assert.Equal(t, "2.0.0", cfg.Version)
	assert.Equal(t, "defs", cfg.RoutesDir)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "Platform Team", cfg.Contact.Name)
	assert.Equal(t, "MIT", cfg.License.Name)
	require.Len(t, cfg.Servers, 1)
	assert.Equal(t, "https://api.example.com", cfg.Servers[0].URL)

	// Unset fields fall back to defaults.
	assert.Equal(t, []string{"/health", "/docs", "/openapi", "/ping"}, cfg.PublicPaths)
}

func TestLoadConfig_missing_file(t *testing.T) {
	t.Parallel()

	_, err := openroute.LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadConfig_malformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`title = [broken`), 0o600))

	_, err := openroute.LoadConfig(path)
	require.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := openroute.DefaultConfig()
	assert.Equal(t, "API", cfg.Title)
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Equal(t, "routes", cfg.RoutesDir)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.NotEmpty(t, cfg.PublicPaths)
}
