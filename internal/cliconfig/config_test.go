package cliconfig

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %v, want %v", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.MonitorInterval != 10*time.Second {
		t.Errorf("MonitorInterval = %v, want 10s", cfg.MonitorInterval)
	}
	if cfg.LogFormat != "console" {
		t.Errorf("LogFormat = %v, want console", cfg.LogFormat)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	withDefaults := func(mod func(*Config)) Config {
		c := DefaultConfig()
		mod(&c)
		return c
	}

	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "valid with dependencies",
			config: withDefaults(func(c *Config) {
				c.Dependencies = []Dependency{
					{Name: "db", Address: "localhost:5432", Critical: true},
					{Name: "cache", Address: "[::1]:6379"},
				}
			}),
		},
		{
			name:    "missing listen address",
			config:  withDefaults(func(c *Config) { c.ListenAddr = "" }),
			wantErr: "listen address",
		},
		{
			name:    "bad log level",
			config:  withDefaults(func(c *Config) { c.LogLevel = "loud" }),
			wantErr: "log level",
		},
		{
			name:    "bad log format",
			config:  withDefaults(func(c *Config) { c.LogFormat = "xml" }),
			wantErr: "log format",
		},
		{
			name:    "invalid monitor interval",
			config:  withDefaults(func(c *Config) { c.MonitorInterval = 0 }),
			wantErr: "monitor interval",
		},
		{
			name:    "invalid stop timeout",
			config:  withDefaults(func(c *Config) { c.StopTimeout = -1 }),
			wantErr: "stop timeout",
		},
		{
			name:    "drain delay longer than stop timeout",
			config:  withDefaults(func(c *Config) { c.DrainDelay = time.Minute }),
			wantErr: "drain delay",
		},
		{
			name: "duplicate dependency",
			config: withDefaults(func(c *Config) {
				c.Dependencies = []Dependency{
					{Name: "db", Address: "a:1"},
					{Name: "db", Address: "b:2"},
				}
			}),
			wantErr: "duplicate",
		},
		{
			name: "dependency without port",
			config: withDefaults(func(c *Config) {
				c.Dependencies = []Dependency{{Name: "db", Address: "localhost"}}
			}),
			wantErr: "address",
		},
		{
			name: "dependency without name",
			config: withDefaults(func(c *Config) {
				c.Dependencies = []Dependency{{Address: "localhost:1"}}
			}),
			wantErr: "name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseDependency(t *testing.T) {
	tests := []struct {
		in      string
		want    Dependency
		wantErr bool
	}{
		{
			in:   "db=localhost:5432",
			want: Dependency{Name: "db", Address: "localhost:5432"},
		},
		{
			in: "db=localhost:5432;critical;required;wait;priority=-3;timeout=750ms",
			want: Dependency{
				Name: "db", Address: "localhost:5432",
				Critical: true, Required: true, WaitOnStart: true,
				Priority: -3, Timeout: 750 * time.Millisecond,
			},
		},
		{in: "db", wantErr: true},
		{in: "=localhost:1", wantErr: true},
		{in: "db=localhost:1;priority=high", wantErr: true},
		{in: "db=localhost:1;timeout=later", wantErr: true},
		{in: "db=localhost:1;sticky", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDependency(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDependency() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseDependency() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
