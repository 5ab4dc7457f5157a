// Package monitor periodically runs health and readiness passes and moves
// the node between Ready and Degraded based on the health verdict.
//
// The monitor is a lifecycle.Subsystem: register it with the orchestrator
// and it starts ticking once the node has begun its subsystems.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/nodecycle/pkg/health"
	"github.com/bft-labs/nodecycle/pkg/lifecycle"
	"github.com/bft-labs/nodecycle/pkg/log"
)

// DefaultInterval is used when Config.Interval is not positive.
const DefaultInterval = 10 * time.Second

// Checker is the part of health.Aggregator the monitor drives.
type Checker interface {
	CheckHealth(ctx context.Context) (health.Status, map[string]health.Result)
	CheckReadiness(ctx context.Context) (bool, map[string]health.Readiness)
	TransitionToStage(stage lifecycle.Stage, reason string) error
	Stage() lifecycle.Stage
}

// Config controls the monitor loop.
type Config struct {
	// Interval between passes.
	Interval time.Duration

	// FailOnUnhealthy moves the node to Failed instead of Degraded when the
	// health verdict is Unhealthy.
	FailOnUnhealthy bool
}

// Snapshot is the outcome of one monitor pass.
type Snapshot struct {
	Health    health.Status               `json:"health"`
	Details   map[string]health.Result    `json:"details"`
	Ready     bool                        `json:"ready"`
	Readiness map[string]health.Readiness `json:"readiness"`
	Stage     lifecycle.Stage             `json:"stage"`
	At        time.Time                   `json:"at"`
}

// Monitor runs the periodic pass.
type Monitor struct {
	checker Checker
	cfg     Config
	logger  log.Logger

	last atomic.Pointer[Snapshot]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a monitor. It does nothing until Begin or RunOnce is called.
func New(checker Checker, cfg Config, logger log.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Monitor{
		checker: checker,
		cfg:     cfg,
		logger:  log.OrNoop(logger).With(log.String("component", "monitor")),
	}
}

// Name returns the subsystem name.
func (m *Monitor) Name() string {
	return "monitor"
}

// Begin starts the loop. The loop outlives ctx and runs until End.
func (m *Monitor) Begin(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return fmt.Errorf("monitor already running")
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(loopCtx, m.done)

	m.logger.Info("monitor started",
		log.Duration("interval", m.cfg.Interval),
		log.Bool("fail_on_unhealthy", m.cfg.FailOnUnhealthy),
	)
	return nil
}

// End stops the loop and waits for an in-flight pass to finish or ctx to
// end. Calling End without Begin is a no-op.
func (m *Monitor) End(ctx context.Context) error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		m.logger.Info("monitor stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for monitor to stop: %w", ctx.Err())
	}
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := m.RunOnce(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("monitor pass could not apply stage", log.Err(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Last returns the most recent snapshot, or nil before the first pass.
func (m *Monitor) Last() *Snapshot {
	return m.last.Load()
}

// RunOnce performs one pass: health and readiness run concurrently, then the
// health verdict is applied to the stage when the node is serving. The
// snapshot is returned even when applying the stage fails.
func (m *Monitor) RunOnce(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	// Passes fold contributor errors into their verdicts and never fail, so
	// the group is only a join.
	var g errgroup.Group
	g.Go(func() error {
		snap.Health, snap.Details = m.checker.CheckHealth(ctx)
		return nil
	})
	g.Go(func() error {
		snap.Ready, snap.Readiness = m.checker.CheckReadiness(ctx)
		return nil
	})
	_ = g.Wait()

	err := m.apply(snap)
	snap.Stage = m.checker.Stage()
	snap.At = time.Now()
	m.last.Store(snap)
	return snap, err
}

func (m *Monitor) apply(snap *Snapshot) error {
	cur := m.checker.Stage()
	if !cur.Serving() {
		return nil
	}

	target := m.target(snap.Health)
	if target == cur {
		return nil
	}

	reason := fmt.Sprintf("health %s", snap.Health)
	if names := notHealthy(snap.Details); len(names) > 0 {
		reason += ": " + strings.Join(names, ", ")
	}

	err := m.checker.TransitionToStage(target, reason)
	if err != nil && !m.checker.Stage().Serving() {
		// Stop or another writer moved the node out from under us.
		return nil
	}
	return err
}

func (m *Monitor) target(s health.Status) lifecycle.Stage {
	switch s {
	case health.StatusHealthy:
		return lifecycle.StageReady
	case health.StatusUnhealthy:
		if m.cfg.FailOnUnhealthy {
			return lifecycle.StageFailed
		}
	}
	return lifecycle.StageDegraded
}

func notHealthy(details map[string]health.Result) []string {
	var names []string
	for name, res := range details {
		if res.Status != health.StatusHealthy {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
