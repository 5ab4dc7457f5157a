package cliconfig

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/nodecycle/pkg/log"
)

// DefaultListenAddr is the default address of the probe server.
const DefaultListenAddr = ":8081"

// Dependency is an upstream TCP service the node checks.
type Dependency struct {
	Name        string        `json:"name"`
	Address     string        `json:"address"`
	Priority    int           `json:"priority"`
	Critical    bool          `json:"critical"`
	Required    bool          `json:"required"`
	Timeout     time.Duration `json:"timeout"`
	WaitOnStart bool          `json:"wait_on_start"`
}

// Config holds CLI configuration for nodecycle.
type Config struct {
	NodeID     string
	NodeIDFile string
	StatusDir  string

	ListenAddr string
	LogLevel   string
	LogFormat  string

	MonitorInterval time.Duration
	StartTimeout    time.Duration
	StopTimeout     time.Duration
	DrainDelay      time.Duration

	DependencyBackoff    time.Duration
	DependencyBackoffMax time.Duration

	FailOnUnhealthy bool
	WatchConfig     bool

	Dependencies []Dependency
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ListenAddr:           DefaultListenAddr,
		LogLevel:             "info",
		LogFormat:            string(log.FormatConsole),
		MonitorInterval:      10 * time.Second,
		StartTimeout:         30 * time.Second,
		StopTimeout:          30 * time.Second,
		DependencyBackoff:    500 * time.Millisecond,
		DependencyBackoffMax: 10 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if _, err := log.ParseFormat(c.LogFormat); err != nil {
		return fmt.Errorf("log format: %w", err)
	}

	if c.MonitorInterval <= 0 {
		return fmt.Errorf("monitor interval must be positive")
	}
	if c.StartTimeout <= 0 {
		return fmt.Errorf("start timeout must be positive")
	}
	if c.StopTimeout <= 0 {
		return fmt.Errorf("stop timeout must be positive")
	}
	if c.DrainDelay < 0 {
		return fmt.Errorf("drain delay must not be negative")
	}
	if c.DrainDelay >= c.StopTimeout {
		return fmt.Errorf("drain delay (%s) must be shorter than stop timeout (%s)", c.DrainDelay, c.StopTimeout)
	}
	if c.DependencyBackoff <= 0 {
		return fmt.Errorf("dependency backoff must be positive")
	}

	seen := make(map[string]bool, len(c.Dependencies))
	for i, d := range c.Dependencies {
		if d.Name == "" {
			return fmt.Errorf("dependency %d: name is required", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("dependency %q: duplicate name", d.Name)
		}
		seen[d.Name] = true
		if _, _, err := net.SplitHostPort(d.Address); err != nil {
			return fmt.Errorf("dependency %q: address: %w", d.Name, err)
		}
		if d.Timeout < 0 {
			return fmt.Errorf("dependency %q: timeout must not be negative", d.Name)
		}
	}

	return nil
}

// ParseDependency parses the flag/env form of a dependency:
//
//	name=host:port[;critical][;required][;wait][;priority=N][;timeout=D]
func ParseDependency(s string) (Dependency, error) {
	parts := strings.Split(strings.TrimSpace(s), ";")
	name, addr, ok := strings.Cut(parts[0], "=")
	if !ok || name == "" || addr == "" {
		return Dependency{}, fmt.Errorf("dependency %q: want name=host:port", s)
	}
	d := Dependency{Name: strings.TrimSpace(name), Address: strings.TrimSpace(addr)}

	for _, opt := range parts[1:] {
		key, value, _ := strings.Cut(strings.TrimSpace(opt), "=")
		switch key {
		case "critical":
			d.Critical = true
		case "required":
			d.Required = true
		case "wait":
			d.WaitOnStart = true
		case "priority":
			p, err := strconv.Atoi(value)
			if err != nil {
				return Dependency{}, fmt.Errorf("dependency %q: priority: %w", d.Name, err)
			}
			d.Priority = p
		case "timeout":
			t, err := time.ParseDuration(value)
			if err != nil {
				return Dependency{}, fmt.Errorf("dependency %q: timeout: %w", d.Name, err)
			}
			d.Timeout = t
		case "":
		default:
			return Dependency{}, fmt.Errorf("dependency %q: unknown option %q", d.Name, key)
		}
	}
	return d, nil
}

// ParseDependencies parses each entry with ParseDependency.
func ParseDependencies(entries []string) ([]Dependency, error) {
	out := make([]Dependency, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e) == "" {
			continue
		}
		d, err := ParseDependency(e)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setDependencies replaces the dependency list unless the flag was set.
func (s *configSetter) setDependencies(flag string, deps []Dependency, dst *[]Dependency) {
	if len(deps) == 0 || s.changed[flag] {
		return
	}
	*dst = deps
}
