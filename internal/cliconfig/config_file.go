package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// DependencyFileConfig is one [[dependency]] table.
type DependencyFileConfig struct {
	Name        string `toml:"name"`
	Address     string `toml:"address"`
	Priority    int    `toml:"priority"`
	Critical    bool   `toml:"critical"`
	Required    bool   `toml:"required"`
	Timeout     string `toml:"timeout"`
	WaitOnStart bool   `toml:"wait_on_start"`
}

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	NodeID               string                 `toml:"node_id"`
	NodeIDFile           string                 `toml:"node_id_file"`
	StatusDir            string                 `toml:"status_dir"`
	ListenAddr           string                 `toml:"listen_addr"`
	LogLevel             string                 `toml:"log_level"`
	LogFormat            string                 `toml:"log_format"`
	MonitorInterval      string                 `toml:"monitor_interval"`
	StartTimeout         string                 `toml:"start_timeout"`
	StopTimeout          string                 `toml:"stop_timeout"`
	DrainDelay           string                 `toml:"drain_delay"`
	DependencyBackoff    string                 `toml:"dependency_backoff"`
	DependencyBackoffMax string                 `toml:"dependency_backoff_max"`
	FailOnUnhealthy      *bool                  `toml:"fail_on_unhealthy"`
	WatchConfig          *bool                  `toml:"watch_config"`
	Dependencies         []DependencyFileConfig `toml:"dependency"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.nodecycle/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".nodecycle", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("node-id", fc.NodeID, &cfg.NodeID)
	s.setString("node-id-file", fc.NodeIDFile, &cfg.NodeIDFile)
	s.setString("status-dir", fc.StatusDir, &cfg.StatusDir)
	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	if err := s.setDuration("monitor-interval", fc.MonitorInterval, &cfg.MonitorInterval); err != nil {
		return err
	}
	if err := s.setDuration("start-timeout", fc.StartTimeout, &cfg.StartTimeout); err != nil {
		return err
	}
	if err := s.setDuration("stop-timeout", fc.StopTimeout, &cfg.StopTimeout); err != nil {
		return err
	}
	if err := s.setDuration("drain-delay", fc.DrainDelay, &cfg.DrainDelay); err != nil {
		return err
	}
	if err := s.setDuration("dependency-backoff", fc.DependencyBackoff, &cfg.DependencyBackoff); err != nil {
		return err
	}
	if err := s.setDuration("dependency-backoff-max", fc.DependencyBackoffMax, &cfg.DependencyBackoffMax); err != nil {
		return err
	}

	s.setBool("fail-on-unhealthy", fc.FailOnUnhealthy, &cfg.FailOnUnhealthy)
	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)

	deps, err := fc.dependencies()
	if err != nil {
		return err
	}
	s.setDependencies("dependency", deps, &cfg.Dependencies)

	return nil
}

func (fc FileConfig) dependencies() ([]Dependency, error) {
	out := make([]Dependency, 0, len(fc.Dependencies))
	for _, d := range fc.Dependencies {
		dep := Dependency{
			Name:        d.Name,
			Address:     d.Address,
			Priority:    d.Priority,
			Critical:    d.Critical,
			Required:    d.Required,
			WaitOnStart: d.WaitOnStart,
		}
		if d.Timeout != "" {
			t, err := parseDurationField("dependency "+d.Name+" timeout", d.Timeout)
			if err != nil {
				return nil, err
			}
			dep.Timeout = t
		}
		out = append(out, dep)
	}
	return out, nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func parseDurationField(name, value string) (d time.Duration, err error) {
	d, err = time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return d, nil
}
