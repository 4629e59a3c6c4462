package config

import (
	"errors"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

const EnvPrefix = "WSRPC"

type Config struct {
	Client     ClientConfig     `toml:"client"`
	Log        LogConfig        `toml:"log"`
	Transcript TranscriptConfig `toml:"transcript"`
}

type ClientConfig struct {
	URL                string `toml:"url"`
	Token              string `toml:"token"`
	Schema             string `toml:"schema"`
	HandshakeTimeoutMs int    `toml:"handshake_timeout_ms"`
	CallTimeoutMs      int    `toml:"call_timeout_ms"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type TranscriptConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

func Default() Config {
	return Config{
		Client: ClientConfig{
			URL:                "localhost:8080",
			HandshakeTimeoutMs: 10000,
			CallTimeoutMs:      30000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is not
// an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with WSRPC_* environment variables.
func ApplyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	setString(v, "url", &cfg.Client.URL)
	setString(v, "token", &cfg.Client.Token)
	setString(v, "schema", &cfg.Client.Schema)
	setString(v, "log_level", &cfg.Log.Level)
	setString(v, "log_format", &cfg.Log.Format)
	setString(v, "transcript", &cfg.Transcript.Path)
	if cfg.Transcript.Path != "" && v.IsSet("transcript") {
		cfg.Transcript.Enabled = true
	}
	if v.IsSet("call_timeout_ms") {
		cfg.Client.CallTimeoutMs = v.GetInt("call_timeout_ms")
	}
}

func setString(v *viper.Viper, key string, dst *string) {
	if s := v.GetString(key); s != "" {
		*dst = s
	}
}

func (c ClientConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutMs) * time.Millisecond
}

// CallTimeout is how long the CLI waits for a response. Zero means no limit.
func (c ClientConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMs) * time.Millisecond
}
