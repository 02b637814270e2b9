package bluespess

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Bluespess/bluespess/logging"
)

// ServerConfig is the on-disk server configuration.
type ServerConfig struct {
	// Addr is the listen address for the websocket endpoint.
	Addr string `yaml:"addr"`
	// NetTickMS is the network flush cadence in milliseconds.
	NetTickMS int `yaml:"net_tick_ms"`

	// TemplatesPath and MapPath point at the static game content.
	TemplatesPath string `yaml:"templates_path"`
	MapPath       string `yaml:"map_path"`

	Log logging.Config `yaml:"log"`
}

// DefaultServerConfig returns the configuration used when no file is given.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		NetTickMS: int(defaultNetTickDelay / time.Millisecond),
		Log:       logging.DefaultConfig(),
	}
}

// LoadServerConfig reads a YAML config file, filling omitted fields with
// defaults.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.NetTickMS <= 0 {
		return cfg, fmt.Errorf("net_tick_ms must be positive, got %d", cfg.NetTickMS)
	}
	return cfg, nil
}

// NetTickDelay returns the flush cadence as a duration.
func (c ServerConfig) NetTickDelay() time.Duration {
	return time.Duration(c.NetTickMS) * time.Millisecond
}
