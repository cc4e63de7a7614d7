package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/sdnlb/vip-switch/internal/domain"
	"github.com/sdnlb/vip-switch/internal/errors"
	"gopkg.in/yaml.v2"
)

// Config represents the main configuration structure
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	VirtualIP  string           `yaml:"virtual_ip"`
	Backends   []BackendConfig  `yaml:"backends"`
	PortMap    domain.PortMap   `yaml:"port_map"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Admin      AdminConfig      `yaml:"admin"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ControllerConfig contains the switch-facing listener configuration
type ControllerConfig struct {
	Listen          string `yaml:"listen"`
	EchoIntervalSec int    `yaml:"echo_interval_sec"`
}

// EchoInterval returns the keepalive interval as a duration
func (c ControllerConfig) EchoInterval() time.Duration {
	return time.Duration(c.EchoIntervalSec) * time.Second
}

// BackendConfig contains one backend server entry. Order matters: the list
// position is the backend's pool index. Port may be omitted, in which case
// it is derived from the pool index via port_map.
type BackendConfig struct {
	IP   string `yaml:"ip"`
	MAC  string `yaml:"mac"`
	Port uint16 `yaml:"port,omitempty"`
}

// RateLimitConfig contains packet-in admission configuration
type RateLimitConfig struct {
	Enabled         bool    `yaml:"enabled"`
	EventsPerSecond float64 `yaml:"events_per_second"`
	BurstSize       int     `yaml:"burst_size"`
}

// AdminConfig contains admin API configuration
type AdminConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	JWTSecret string `yaml:"jwt_secret,omitempty"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	File   string `yaml:"file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Controller: ControllerConfig{
			Listen:          ":6633",
			EchoIntervalSec: 15,
		},
		PortMap: domain.PortMap{
			ClientPortBase:  1,
			BackendPortBase: 5,
		},
		RateLimit: RateLimitConfig{
			Enabled:         false,
			EventsPerSecond: 100,
			BurstSize:       200,
		},
		Admin: AdminConfig{
			Enabled: false,
			Listen:  ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// LoadConfig loads configuration from the file named by VS_CONFIG_FILE (or
// the given path when set), applies environment overrides and validates the
// result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("VS_CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeConfigLoad, "config", "Failed to read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeConfigLoad, "config", "Failed to parse config file")
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies the supported environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VS_LISTEN"); v != "" {
		cfg.Controller.Listen = v
	}
	if v := os.Getenv("VS_VIRTUAL_IP"); v != "" {
		cfg.VirtualIP = v
	}
	if v := os.Getenv("VS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VS_ADMIN_LISTEN"); v != "" {
		cfg.Admin.Listen = v
		cfg.Admin.Enabled = true
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if ip := net.ParseIP(c.VirtualIP); ip == nil || ip.To4() == nil {
		return errors.NewError(errors.ErrCodeConfigLoad, "config",
			fmt.Sprintf("virtual_ip must be a valid IPv4 address, got %q", c.VirtualIP))
	}

	if len(c.Backends) == 0 {
		return errors.NewNoBackendsError()
	}

	seen := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		ip := net.ParseIP(b.IP)
		if ip == nil || ip.To4() == nil {
			return errors.NewError(errors.ErrCodeConfigLoad, "config",
				fmt.Sprintf("backends[%d].ip must be a valid IPv4 address, got %q", i, b.IP))
		}
		if _, err := net.ParseMAC(b.MAC); err != nil {
			return errors.NewError(errors.ErrCodeConfigLoad, "config",
				fmt.Sprintf("backends[%d].mac is invalid: %v", i, err))
		}
		key := ip.To4().String()
		if seen[key] {
			return errors.NewError(errors.ErrCodeConfigLoad, "config",
				fmt.Sprintf("backends[%d].ip %s appears more than once", i, key))
		}
		seen[key] = true
	}

	if c.RateLimit.Enabled && c.RateLimit.EventsPerSecond <= 0 {
		return errors.NewError(errors.ErrCodeConfigLoad, "config",
			"rate_limit.events_per_second must be positive when rate limiting is enabled")
	}

	return nil
}

// VirtualAddress returns the parsed virtual service address
func (c *Config) VirtualAddress() net.IP {
	return net.ParseIP(c.VirtualIP).To4()
}

// ToBackends converts backend entries into domain backends, deriving egress
// ports from the port map for entries without an explicit port.
func (c *Config) ToBackends() ([]domain.Backend, error) {
	backends := make([]domain.Backend, 0, len(c.Backends))
	for i, b := range c.Backends {
		mac, err := net.ParseMAC(b.MAC)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeConfigLoad, "config",
				fmt.Sprintf("backends[%d].mac is invalid", i))
		}
		port := b.Port
		if port == 0 {
			port = c.PortMap.BackendPort(i)
		}
		backends = append(backends, domain.Backend{
			IP:   net.ParseIP(b.IP).To4(),
			MAC:  mac,
			Port: port,
		})
	}
	return backends, nil
}
