package cliconfig

import (
	"os"
	"strings"
)

// ApplyEnvConfig applies configuration from environment variables (NODECYCLE_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
//
// NODECYCLE_DEPENDENCIES holds whitespace- or comma-separated entries in the
// ParseDependency form.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("node-id", os.Getenv("NODECYCLE_NODE_ID"), &cfg.NodeID)
	s.setString("node-id-file", os.Getenv("NODECYCLE_NODE_ID_FILE"), &cfg.NodeIDFile)
	s.setString("status-dir", os.Getenv("NODECYCLE_STATUS_DIR"), &cfg.StatusDir)
	s.setString("listen", os.Getenv("NODECYCLE_LISTEN_ADDR"), &cfg.ListenAddr)
	s.setString("log-level", os.Getenv("NODECYCLE_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv("NODECYCLE_LOG_FORMAT"), &cfg.LogFormat)

	if err := s.setDuration("monitor-interval", os.Getenv("NODECYCLE_MONITOR_INTERVAL"), &cfg.MonitorInterval); err != nil {
		return err
	}
	if err := s.setDuration("start-timeout", os.Getenv("NODECYCLE_START_TIMEOUT"), &cfg.StartTimeout); err != nil {
		return err
	}
	if err := s.setDuration("stop-timeout", os.Getenv("NODECYCLE_STOP_TIMEOUT"), &cfg.StopTimeout); err != nil {
		return err
	}
	if err := s.setDuration("drain-delay", os.Getenv("NODECYCLE_DRAIN_DELAY"), &cfg.DrainDelay); err != nil {
		return err
	}
	if err := s.setDuration("dependency-backoff", os.Getenv("NODECYCLE_DEPENDENCY_BACKOFF"), &cfg.DependencyBackoff); err != nil {
		return err
	}
	if err := s.setDuration("dependency-backoff-max", os.Getenv("NODECYCLE_DEPENDENCY_BACKOFF_MAX"), &cfg.DependencyBackoffMax); err != nil {
		return err
	}

	s.setBoolFromString("fail-on-unhealthy", os.Getenv("NODECYCLE_FAIL_ON_UNHEALTHY"), &cfg.FailOnUnhealthy)
	s.setBoolFromString("watch-config", os.Getenv("NODECYCLE_WATCH_CONFIG"), &cfg.WatchConfig)

	if v := os.Getenv("NODECYCLE_DEPENDENCIES"); v != "" {
		entries := strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\n' || r == '\t'
		})
		deps, err := ParseDependencies(entries)
		if err != nil {
			return err
		}
		s.setDependencies("dependency", deps, &cfg.Dependencies)
	}

	return nil
}
