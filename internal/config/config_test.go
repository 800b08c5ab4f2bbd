// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv isolates a test from DOCCHAT_* variables in the environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DOCCHAT_AI_URL", "DOCCHAT_DOMAIN", "DOCCHAT_STORAGE", "DOCCHAT_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	t.Setenv("DOCCHAT_APP_PREFIX", "")
	require.NoError(t, os.Unsetenv("DOCCHAT_APP_PREFIX"))
	t.Setenv("DOCCHAT_HOME", t.TempDir())
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, "/api/v1", cfg.API.PathPrefix)
	assert.Equal(t, "general", cfg.Chat.DefaultDomain)
	assert.Equal(t, "APP", cfg.Chat.KeyPrefix)
	assert.Equal(t, "Error processing your request", cfg.Chat.ErrorText)
	assert.Equal(t, "buffer", cfg.Chat.SentinelMode)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.True(t, cfg.Location.Enabled)
	assert.Equal(t, []string{"ipapi", "freeipapi"}, cfg.Location.IPProviders)
	assert.Equal(t, 30*time.Second, cfg.APITimeout())
	assert.False(t, cfg.HasDeviceFix())
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().API, cfg.API)
}

func TestLoadTOMLKeepsUnsetDefaults(t *testing.T) {
	clearEnv(t)
	dir := os.Getenv("DOCCHAT_HOME")
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[api]
base_url = "https://docs.example.com"

[chat]
default_domain = "billing"
sentinel_mode = "chunk"

[location]
enabled = false
latitude = 51.5
longitude = -0.12
`), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com", cfg.API.BaseURL)
	assert.Equal(t, "/api/v1", cfg.API.PathPrefix)
	assert.Equal(t, "billing", cfg.Chat.DefaultDomain)
	assert.Equal(t, "chunk", cfg.Chat.SentinelMode)
	assert.Equal(t, "APP", cfg.Chat.KeyPrefix)
	assert.False(t, cfg.Location.Enabled)
	assert.True(t, cfg.HasDeviceFix())
	assert.Equal(t, 80, cfg.UI.WordWrap)
}

func TestLoadJSONFallback(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(os.Getenv("DOCCHAT_HOME"), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"storage":{"backend":"file"}}`), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Storage.Backend)
}

func TestLoadInvalidFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(os.Getenv("DOCCHAT_HOME"), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`[storage]
backend = "redis"
`), 0600))

	_, err := Load()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "storage.backend", verrs[0].Field)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCCHAT_AI_URL", "https://ai.example.com")
	t.Setenv("DOCCHAT_APP_PREFIX", "DOCS")
	t.Setenv("DOCCHAT_DOMAIN", "shipping")
	t.Setenv("DOCCHAT_STORAGE", "memory")
	t.Setenv("DOCCHAT_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://ai.example.com", cfg.API.BaseURL)
	assert.Equal(t, "DOCS", cfg.Chat.KeyPrefix)
	assert.Equal(t, "shipping", cfg.Chat.DefaultDomain)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad scheme", func(c *Config) { c.API.BaseURL = "ftp://x" }, "api.base_url"},
		{"missing host", func(c *Config) { c.API.BaseURL = "http://" }, "api.base_url"},
		{"prefix slash", func(c *Config) { c.API.PathPrefix = "api" }, "api.path_prefix"},
		{"timeout", func(c *Config) { c.API.Timeout = 0 }, "api.timeout"},
		{"rate", func(c *Config) { c.API.RateLimit = -1 }, "api.rate_limit"},
		{"burst", func(c *Config) { c.API.Burst = 0 }, "api.burst"},
		{"domain", func(c *Config) { c.Chat.DefaultDomain = "two words" }, "chat.default_domain"},
		{"prefix", func(c *Config) { c.Chat.KeyPrefix = "A B" }, "chat.key_prefix"},
		{"error text", func(c *Config) { c.Chat.ErrorText = " " }, "chat.error_text"},
		{"sentinel", func(c *Config) { c.Chat.SentinelMode = "lines" }, "chat.sentinel_mode"},
		{"latitude", func(c *Config) { c.Location.Latitude = 91 }, "location.latitude"},
		{"longitude", func(c *Config) { c.Location.Longitude = -181 }, "location.longitude"},
		{"provider", func(c *Config) { c.Location.IPProviders = []string{"geoip"} }, "location.ip_providers"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"wrap", func(c *Config) { c.UI.WordWrap = 5 }, "ui.word_wrap"},
		{"fps", func(c *Config) { c.UI.MaxFPS = 500 }, "ui.max_fps"},
		{"theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.API.Timeout = -1
	cfg.Storage.Backend = "nope"

	err := cfg.Validate()
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
	assert.Contains(t, err.Error(), "api.timeout")
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("api.base_url", "https://x.example"))
	require.NoError(t, cfg.Set("api.timeout", "45"))
	require.NoError(t, cfg.Set("api.rate_limit", "2.5"))
	require.NoError(t, cfg.Set("location.enabled", "no"))
	require.NoError(t, cfg.Set("location.ip_providers", "freeipapi, ipapi"))
	require.NoError(t, cfg.Set("ui.max_fps", 60))

	v, err := cfg.Get("api.base_url")
	require.NoError(t, err)
	assert.Equal(t, "https://x.example", v)
	assert.Equal(t, 45, cfg.API.Timeout)
	assert.Equal(t, 2.5, cfg.API.RateLimit)
	assert.False(t, cfg.Location.Enabled)
	assert.Equal(t, []string{"freeipapi", "ipapi"}, cfg.Location.IPProviders)
	assert.Equal(t, 60, cfg.UI.MaxFPS)

	_, err = cfg.Get("api.nope")
	assert.Error(t, err)
	_, err = cfg.Get("api.base_url.deeper")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("api.timeout", "soon"))
	assert.Error(t, cfg.Set("location.enabled", "maybe"))
	_, err = cfg.Get("")
	assert.Error(t, err)
}

func TestAllKeysResolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Chat.DefaultDomain = "billing"
	cfg.Location.IPProviders = []string{"freeipapi"}

	require.NoError(t, Save(cfg))

	path, err := PathTOML()
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "billing", loaded.Chat.DefaultDomain)
	assert.Equal(t, []string{"freeipapi"}, loaded.Location.IPProviders)
}

func TestCloneIsDeep(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Location.IPProviders[0] = "changed"
	assert.Equal(t, "ipapi", cfg.Location.IPProviders[0])
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DOCCHAT_TEST_FROM_FILE=file\nDOCCHAT_TEST_PRESET=file\n"), 0600))

	t.Setenv("DOCCHAT_TEST_PRESET", "env")
	t.Setenv("DOCCHAT_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("DOCCHAT_TEST_FROM_FILE"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "file", os.Getenv("DOCCHAT_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("DOCCHAT_TEST_PRESET"))
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	require.NoError(t, Watch(ctx, path, func(cfg *Config, err error) {
		if err == nil {
			changes <- cfg
		}
	}))

	cfg := Default()
	cfg.Logging.Level = "debug"
	require.NoError(t, SaveTOML(cfg, path))

	select {
	case got := <-changes:
		assert.Equal(t, "debug", got.Logging.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after write")
	}
}

func TestConfig_ConcurrentAccess(t *testing.T) {
	clearEnv(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}
