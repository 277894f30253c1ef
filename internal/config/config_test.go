package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/campus-menu-client/pkg/cache"
	"github.com/Sternrassler/campus-menu-client/pkg/logging"
)

func clearEnv(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvAccessToken, "")
}

func TestParse_FullFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_ANON_KEY", "anon-123")

	cfg, err := Parse([]byte(`
api:
  base_url: https://menu.example.com
  anon_key: ${TEST_ANON_KEY}
  timeout: 10s
cache:
  dir: /tmp/menu-cache
  policy: long_term
  memory_entries: 200
  max_disk_bytes: 1048576
  redis:
    addr: localhost:6379
    db: 2
connectivity:
  interval: 1m
recovery:
  network_base_delay: 250ms
  ai_probe_url: https://ai.example.com/health
logging:
  level: debug
  pretty: true
metrics:
  listen_addr: 127.0.0.1:9100
`))
	require.NoError(t, err)

	assert.Equal(t, "https://menu.example.com", cfg.API.BaseURL)
	assert.Equal(t, "anon-123", cfg.API.AnonKey)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "/tmp/menu-cache", cfg.Cache.Dir)
	assert.Equal(t, 200, cfg.Cache.MemoryEntries)
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 2, cfg.Cache.Redis.DB)
	assert.Equal(t, cache.DefaultRedisPrefix, cfg.Cache.Redis.Prefix, "unset fields keep defaults")
	assert.Equal(t, time.Minute, cfg.Connectivity.Interval)
	assert.Equal(t, 2*time.Second, cfg.Connectivity.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Recovery.NetworkBaseDelay)
	assert.Equal(t, 3*time.Second, cfg.Recovery.AIBaseDelay)
	assert.Equal(t, "https://ai.example.com/health", cfg.Recovery.AIProbeURL)
	assert.Equal(t, logging.LevelDebug, cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.ListenAddr)

	policy, err := cfg.CachePolicy()
	require.NoError(t, err)
	assert.Equal(t, cache.LongTermPolicy.TTL, policy.TTL)
	assert.Equal(t, int64(1048576), policy.MaxDiskBytes)
	assert.Equal(t, cache.LongTermPolicy.MaxMemoryBytes, policy.MaxMemoryBytes)
}

func TestParse_EnvFallback(t *testing.T) {
	t.Setenv(EnvAPIURL, "https://env.example.com")
	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvAccessToken, "env-token")

	cfg, err := Parse([]byte(`api: {anon_key: file-key}`))
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.API.BaseURL)
	assert.Equal(t, "file-key", cfg.API.AnonKey, "file values win over the environment")
	assert.Equal(t, "env-token", cfg.API.AccessToken)
	assert.Equal(t, "https://env.example.com", cfg.ProbeURL())
}

func TestParse_Invalid(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		yaml string
	}{
		{"missing base url", `cache: {dir: /tmp}`},
		{"bad base url", `api: {base_url: "not a url"}`},
		{"unknown policy", "api: {base_url: 'https://x.example.com'}\ncache: {policy: forever}"},
		{"bad log level", "api: {base_url: 'https://x.example.com'}\nlogging: {level: loud}"},
		{"negative delay", "api: {base_url: 'https://x.example.com'}\nrecovery: {auth_delay: -1s}"},
		{"bad redis addr", "api: {base_url: 'https://x.example.com'}\ncache: {redis: {addr: 'no-port'}}"},
		{"malformed yaml", "api: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "menu.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  base_url: https://file.example.com\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)
	_, err := Load("")
	assert.Error(t, err, "defaults alone have no base URL")

	t.Setenv(EnvAPIURL, "https://env.example.com")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.API.BaseURL)
}
