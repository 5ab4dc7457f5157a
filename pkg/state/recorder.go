package state

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/nodecycle/pkg/health"
	"github.com/bft-labs/nodecycle/pkg/lifecycle"
	"github.com/bft-labs/nodecycle/pkg/log"
)

// Recorder keeps a Repository in step with a node's lifecycle and health
// events. It implements lifecycle.EventEmitter and health.EventEmitter.
//
// Save errors are logged and otherwise ignored; a failing disk never
// affects the node.
type Recorder struct {
	repo   Repository
	logger log.Logger
	now    func() time.Time

	mu     sync.Mutex
	status Status
}

// NewRecorder returns a recorder that starts at Initializing.
func NewRecorder(repo Repository, nodeID string, logger log.Logger) *Recorder {
	r := &Recorder{
		repo:   repo,
		logger: log.OrNoop(logger).With(log.String("component", "state")),
		now:    time.Now,
	}
	r.status = Status{NodeID: nodeID, Stage: lifecycle.StageInitializing, Since: r.now()}
	return r
}

// Status returns the last recorded status.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Recorder) OnStageChange(c lifecycle.StageChange) {
	r.update(func(s *Status) {
		s.Stage = c.Current
		s.Reason = c.Reason
		s.Since = c.At
		if s.Since.IsZero() {
			s.Since = r.now()
		}
	})
}

func (r *Recorder) OnHealthCheck(rep health.HealthReport) {
	r.update(func(s *Status) {
		st := rep.Status
		s.Health = &st
	})
}

func (r *Recorder) OnReadinessCheck(rep health.ReadinessReport) {
	r.update(func(s *Status) {
		ready := rep.Ready
		s.Ready = &ready
	})
}

func (r *Recorder) OnHookComplete(lifecycle.HookEvent)           {}
func (r *Recorder) OnSubsystemComplete(lifecycle.SubsystemEvent) {}

// update applies fn and saves under the lock so writes land in event order.
func (r *Recorder) update(fn func(*Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn(&r.status)
	r.status.UpdatedAt = r.now()
	if err := r.repo.Save(context.Background(), r.status); err != nil {
		r.logger.Warn("failed to save status", log.Err(err))
	}
}
