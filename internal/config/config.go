// Package config loads the server's global configuration using viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/wireflow/wireflow/internal/obslog"
)

// GlobalConfig is the top-level configuration, loaded from YAML with
// environment variable overrides (WIREFLOW_ prefix).
type GlobalConfig struct {
	Server     ServerConfig     `mapstructure:"server"`
	Channel    ChannelConfig    `mapstructure:"channel"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        obslog.Config    `mapstructure:"log"`
	Components ComponentsConfig `mapstructure:"components"`
}

// ServerConfig configures the control surface and the secondary local
// control plane.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`     // HTTP control surface, e.g. ":8080"
	SocketPath      string        `mapstructure:"socket_path"`     // UDS JSON-RPC control plane; empty disables it
	MaxConnections  int           `mapstructure:"max_connections"` // netutil.LimitListener cap on the HTTP listener
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ChannelConfig holds the channel section of the configuration. It is
// loaded but not read by the runtime: every Channel the runtime creates
// uses the runtime's own default capacity of 64.
type ChannelConfig struct {
	DefaultCapacity int `mapstructure:"default_capacity"` // spec.md §3: default 64
}

// MetricsConfig configures the snapshot engine (spec.md §4.5) and the
// independent Prometheus telemetry server (SPEC_FULL.md §B.2).
type MetricsConfig struct {
	SampleInterval time.Duration `mapstructure:"sample_interval"` // default 500ms
	TelemetryAddr  string        `mapstructure:"telemetry_addr"`  // e.g. ":9090"; empty disables it
	TelemetryPath  string        `mapstructure:"telemetry_path"`  // default "/metrics"
}

// ComponentsConfig holds flags for the built-in components that touch
// the host environment (live packet capture, UDP sockets). The flags are
// loaded but nothing reads them: every built-in component linked into
// wireflowd is registered regardless of their values.
type ComponentsConfig struct {
	EnableNetworkSource bool `mapstructure:"enable_network_source"`
	EnableSIPSource     bool `mapstructure:"enable_sip_source"`
}

// defaults are applied before a config file is read.
func defaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.max_connections", 256)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("channel.default_capacity", 64)
	v.SetDefault("metrics.sample_interval", 500*time.Millisecond)
	v.SetDefault("metrics.telemetry_addr", ":9090")
	v.SetDefault("metrics.telemetry_path", "/metrics")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads path (if non-empty and present) and environment overrides
// into a GlobalConfig. An empty or missing path is not an error — the
// process runs on defaults, matching the teacher's fail-soft config
// bootstrap for local/dev runs.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("WIREFLOW")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config: read %q: %w", path, err)
			}
		}
	}

	var cfg GlobalConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
