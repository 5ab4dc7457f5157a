package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/nodecycle/pkg/lifecycle"
	"github.com/bft-labs/nodecycle/pkg/log"
)

// Option configures an Aggregator.
type Option func(*Aggregator) error

// WithContributors registers health contributors.
func WithContributors(cs ...Contributor) Option {
	return func(a *Aggregator) error {
		for _, c := range cs {
			if err := a.AddContributor(c); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithReadinessContributors registers readiness contributors.
func WithReadinessContributors(cs ...ReadinessContributor) Option {
	return func(a *Aggregator) error {
		for _, c := range cs {
			if err := a.AddReadinessContributor(c); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithEventEmitter sets the receiver for health and readiness reports.
func WithEventEmitter(e EventEmitter) Option {
	return func(a *Aggregator) error {
		if e != nil {
			a.emitter = e
		}
		return nil
	}
}

// WithStageEmitter sets the receiver for stage changes made through
// TransitionToStage.
func WithStageEmitter(e lifecycle.EventEmitter) Option {
	return func(a *Aggregator) error {
		if e != nil {
			a.stages = e
		}
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(a *Aggregator) error {
		a.logger = log.OrNoop(l)
		return nil
	}
}

// Aggregator combines contributor results into a single health verdict and a
// single readiness verdict. It is safe for concurrent use.
type Aggregator struct {
	register *lifecycle.StageRegister

	mu        sync.RWMutex
	health    []Contributor
	readiness []ReadinessContributor
	sealed    bool

	// One pass of each kind runs at a time.
	healthPass    sync.Mutex
	readinessPass sync.Mutex

	emitter EventEmitter
	stages  lifecycle.EventEmitter
	logger  log.Logger
	now     func() time.Time
}

// NewAggregator returns an aggregator bound to register. A nil register is
// replaced with a fresh one in StageInitializing.
func NewAggregator(register *lifecycle.StageRegister, opts ...Option) (*Aggregator, error) {
	if register == nil {
		register = lifecycle.NewStageRegister()
	}
	a := &Aggregator{
		register: register,
		emitter:  NoopEmitter{},
		stages:   lifecycle.NoopEmitter{},
		logger:   log.NoopLogger{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// AddContributor registers a health contributor. Names must be unique.
func (a *Aggregator) AddContributor(c Contributor) error {
	if c == nil {
		return fmt.Errorf("health: nil contributor")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return fmt.Errorf("%w: contributor %q", lifecycle.ErrRegistrationClosed, c.Name())
	}
	for _, existing := range a.health {
		if existing.Name() == c.Name() {
			return fmt.Errorf("%w: %q", ErrDuplicateName, c.Name())
		}
	}
	a.health = append(a.health, c)
	sort.SliceStable(a.health, func(i, j int) bool {
		return a.health[i].Priority() < a.health[j].Priority()
	})
	return nil
}

// AddReadinessContributor registers a readiness contributor. Names must be
// unique among readiness contributors.
func (a *Aggregator) AddReadinessContributor(c ReadinessContributor) error {
	if c == nil {
		return fmt.Errorf("health: nil readiness contributor")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return fmt.Errorf("%w: readiness contributor %q", lifecycle.ErrRegistrationClosed, c.Name())
	}
	for _, existing := range a.readiness {
		if existing.Name() == c.Name() {
			return fmt.Errorf("%w: %q", ErrDuplicateName, c.Name())
		}
	}
	a.readiness = append(a.readiness, c)
	sort.SliceStable(a.readiness, func(i, j int) bool {
		return a.readiness[i].Priority() < a.readiness[j].Priority()
	})
	return nil
}

// Seal rejects further registration with lifecycle.ErrRegistrationClosed.
func (a *Aggregator) Seal() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sealed = true
}

// Stage returns the current stage of the bound register.
func (a *Aggregator) Stage() lifecycle.Stage {
	return a.register.Current()
}

// CheckHealth evaluates health contributors in priority order.
//
// The pass stops at the first critical contributor that is unhealthy; later
// contributors are absent from the returned map. If ctx ends mid-pass the
// partial map is returned and the verdict is at least StatusDegraded.
// Concurrent calls run one after another.
func (a *Aggregator) CheckHealth(ctx context.Context) (Status, map[string]Result) {
	a.healthPass.Lock()
	defer a.healthPass.Unlock()

	start := time.Now()

	a.mu.RLock()
	contributors := append([]Contributor(nil), a.health...)
	a.mu.RUnlock()

	verdict := StatusHealthy
	details := make(map[string]Result, len(contributors))
	critical := make(map[string]bool, len(contributors))
	cancelled := false

	for _, c := range contributors {
		if err := ctx.Err(); err != nil {
			cancelled = true
			verdict = Worse(verdict, StatusDegraded)
			a.logger.Warn("health pass interrupted",
				log.Int("evaluated", len(details)),
				log.Int("total", len(contributors)),
				log.Err(err),
			)
			break
		}

		res := a.evalHealth(ctx, c)
		details[c.Name()] = res
		critical[c.Name()] = c.IsCritical()

		if res.Status == StatusUnhealthy && c.IsCritical() {
			verdict = StatusUnhealthy
			a.logger.Warn("critical contributor unhealthy",
				log.String("contributor", c.Name()),
				log.String("message", res.Message),
			)
			break
		}
		if res.Status != StatusHealthy {
			verdict = Worse(verdict, StatusDegraded)
			a.logger.Debug("contributor not healthy",
				log.String("contributor", c.Name()),
				log.Stringer("status", res.Status),
				log.String("message", res.Message),
			)
		}
	}

	a.emitter.OnHealthCheck(HealthReport{
		Status:    verdict,
		Details:   details,
		Critical:  critical,
		Duration:  time.Since(start),
		Evaluated: len(details),
		Total:     len(contributors),
		Cancelled: cancelled,
	})
	return verdict, details
}

func (a *Aggregator) evalHealth(ctx context.Context, c Contributor) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Status: StatusUnhealthy, Message: recovered(r).Error()}
		}
	}()
	out, err := c.CheckHealth(ctx)
	if err != nil {
		return Result{Status: StatusUnhealthy, Message: err.Error()}
	}
	if !out.Status.Valid() {
		return Result{Status: StatusUnhealthy, Message: fmt.Sprintf("invalid status %d: %s", int(out.Status), out.Message)}
	}
	return out
}

// CheckReadiness evaluates every readiness contributor in priority order.
//
// The verdict is false when any required contributor is not ready. If ctx
// ends mid-pass the remaining contributors are reported as not ready without
// being called. Concurrent calls run one after another.
func (a *Aggregator) CheckReadiness(ctx context.Context) (bool, map[string]Readiness) {
	a.readinessPass.Lock()
	defer a.readinessPass.Unlock()

	start := time.Now()

	a.mu.RLock()
	contributors := append([]ReadinessContributor(nil), a.readiness...)
	a.mu.RUnlock()

	ready := true
	details := make(map[string]Readiness, len(contributors))
	required := make(map[string]bool, len(contributors))
	evaluated := 0
	cancelled := false

	for _, c := range contributors {
		var res Readiness
		if err := ctx.Err(); err != nil {
			cancelled = true
			res = Readiness{Ready: false, Reason: "not evaluated: " + err.Error()}
		} else {
			res = a.evalReadiness(ctx, c)
			evaluated++
		}
		details[c.Name()] = res
		required[c.Name()] = c.IsRequired()

		if !res.Ready && c.IsRequired() {
			ready = false
			a.logger.Debug("required contributor not ready",
				log.String("contributor", c.Name()),
				log.String("reason", res.Reason),
			)
		}
	}

	a.emitter.OnReadinessCheck(ReadinessReport{
		Ready:     ready,
		Details:   details,
		Required:  required,
		Duration:  time.Since(start),
		Evaluated: evaluated,
		Cancelled: cancelled,
	})
	return ready, details
}

func (a *Aggregator) evalReadiness(ctx context.Context, c ReadinessContributor) (res Readiness) {
	defer func() {
		if r := recover(); r != nil {
			res = Readiness{Ready: false, Reason: recovered(r).Error()}
		}
	}()
	out, err := c.CheckReadiness(ctx)
	if err != nil {
		return Readiness{Ready: false, Reason: err.Error()}
	}
	return out
}

// TransitionToStage moves the bound register to stage. Requesting the
// current stage does nothing and emits nothing. Legality is enforced by the
// register; Stopping and Stopped belong to the orchestrator.
func (a *Aggregator) TransitionToStage(stage lifecycle.Stage, reason string) error {
	prev, err := a.register.Apply(stage, func(prev lifecycle.Stage) {
		a.stages.OnStageChange(lifecycle.StageChange{
			Previous: prev,
			Current:  stage,
			Reason:   reason,
			At:       a.now(),
		})
	})
	if err != nil {
		a.logger.Warn("stage transition rejected",
			log.String("from", prev.String()),
			log.String("to", stage.String()),
			log.Err(err),
		)
		return err
	}
	if prev != stage {
		a.logger.Info("stage transition",
			log.String("from", prev.String()),
			log.String("to", stage.String()),
			log.String("reason", reason),
		)
	}
	return nil
}
