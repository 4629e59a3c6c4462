package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wsrpc.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[client]
url = "ws://game.example:25585"
schema = "schema.json"
call_timeout_ms = 500

[log]
format = "json"

[transcript]
enabled = true
path = "/tmp/transcript.jsonl"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://game.example:25585", cfg.Client.URL)
	assert.Equal(t, "schema.json", cfg.Client.Schema)
	assert.Equal(t, 500*time.Millisecond, cfg.Client.CallTimeout())
	assert.Equal(t, 10*time.Second, cfg.Client.HandshakeTimeout())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Transcript.Enabled)
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[client\nurl ="), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("WSRPC_URL", "localhost:9999")
	t.Setenv("WSRPC_TOKEN", "s3cret")
	t.Setenv("WSRPC_LOG_LEVEL", "debug")
	t.Setenv("WSRPC_TRANSCRIPT", "/tmp/t.jsonl")
	t.Setenv("WSRPC_CALL_TIMEOUT_MS", "0")

	cfg := Default()
	ApplyEnv(&cfg)

	assert.Equal(t, "localhost:9999", cfg.Client.URL)
	assert.Equal(t, "s3cret", cfg.Client.Token)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.True(t, cfg.Transcript.Enabled)
	assert.Equal(t, "/tmp/t.jsonl", cfg.Transcript.Path)
	assert.Zero(t, cfg.Client.CallTimeout())
}
