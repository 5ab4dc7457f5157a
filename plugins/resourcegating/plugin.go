// Package resourcegating reports process load as a health contributor.
// Load is approximated from the goroutine count per CPU; when it crosses the
// threshold the contributor reports degraded so the node stays up but is
// marked as busy.
package resourcegating

import (
	"context"
	"fmt"
	"runtime"

	"github.com/bft-labs/nodecycle/pkg/health"
)

// Config holds configuration for the load contributor.
type Config struct {
	// LoadThreshold is the approximate load fraction (0.0-1.0) above which
	// the contributor reports degraded.
	// Default: 0.85
	LoadThreshold float64

	// GoroutinesPerCPU is the goroutine count per CPU treated as full load.
	// Default: 100
	GoroutinesPerCPU float64

	// Priority orders the contributor among the others. Default: 100, so
	// dependency checks run first.
	Priority int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LoadThreshold:    0.85,
		GoroutinesPerCPU: 100,
		Priority:         100,
	}
}

// Contributor implements health.Contributor.
type Contributor struct {
	cfg Config

	numGoroutine func() int
	numCPU       func() int
}

// New creates a load contributor. Zero fields in cfg take their defaults.
func New(cfg Config) *Contributor {
	def := DefaultConfig()
	if cfg.LoadThreshold <= 0 {
		cfg.LoadThreshold = def.LoadThreshold
	}
	if cfg.GoroutinesPerCPU <= 0 {
		cfg.GoroutinesPerCPU = def.GoroutinesPerCPU
	}
	return &Contributor{
		cfg:          cfg,
		numGoroutine: runtime.NumGoroutine,
		numCPU:       runtime.NumCPU,
	}
}

// Name returns the contributor name.
func (c *Contributor) Name() string {
	return "resources"
}

func (c *Contributor) Priority() int    { return c.cfg.Priority }
func (c *Contributor) IsCritical() bool { return false }

// Load returns the approximate load in [0, 1].
func (c *Contributor) Load() float64 {
	cpus := c.numCPU()
	// Restricted containers can report zero CPUs.
	if cpus <= 0 {
		cpus = 1
	}
	load := float64(c.numGoroutine()) / float64(cpus) / c.cfg.GoroutinesPerCPU
	if load > 1.0 {
		load = 1.0
	}
	return load
}

// CheckHealth reports degraded while the load is above the threshold.
func (c *Contributor) CheckHealth(context.Context) (health.Result, error) {
	load := c.Load()
	if load > c.cfg.LoadThreshold {
		return health.Result{
			Status:  health.StatusDegraded,
			Message: fmt.Sprintf("load %.2f above threshold %.2f", load, c.cfg.LoadThreshold),
		}, nil
	}
	return health.Result{Status: health.StatusHealthy, Message: fmt.Sprintf("load %.2f", load)}, nil
}

var _ health.Contributor = (*Contributor)(nil)
