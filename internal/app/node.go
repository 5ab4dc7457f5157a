package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	httpadapter "github.com/bft-labs/nodecycle/internal/adapters/http"
	"github.com/bft-labs/nodecycle/internal/cliconfig"
	"github.com/bft-labs/nodecycle/internal/probes"
	"github.com/bft-labs/nodecycle/pkg/health"
	"github.com/bft-labs/nodecycle/pkg/lifecycle"
	"github.com/bft-labs/nodecycle/pkg/log"
	"github.com/bft-labs/nodecycle/pkg/monitor"
	"github.com/bft-labs/nodecycle/pkg/state"
	"github.com/bft-labs/nodecycle/pkg/telemetry"
	"github.com/bft-labs/nodecycle/plugins/configwatcher"
)

// ErrNodeFailed is returned by Run when the node reaches the Failed stage
// while running.
var ErrNodeFailed = errors.New("node failed")

// Priority of the built-in startup and shutdown hooks. They run before any
// host hook registered at priority 0.
const builtinHookPriority = -100

// stagePollInterval is how often Run checks for a Failed stage.
const stagePollInterval = 100 * time.Millisecond

// Option configures a Node.
type Option func(*Node)

// WithLogger sets the logger for the node and everything it wires.
func WithLogger(l log.Logger) Option {
	return func(n *Node) { n.logger = log.OrNoop(l) }
}

// WithRegistry sets the Prometheus registry metrics are registered on and
// served from.
func WithRegistry(r *prometheus.Registry) Option {
	return func(n *Node) { n.registry = r }
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(n *Node) { n.tracerProvider = tp }
}

// WithDialer replaces the dialer used by dependency checks.
func WithDialer(d probes.DialFunc) Option {
	return func(n *Node) { n.dial = d }
}

// WithConfigFile enables reloading path when cfg.WatchConfig is set.
// onChange receives every successfully parsed version of the file.
func WithConfigFile(path string, onChange func(cliconfig.FileConfig)) Option {
	return func(n *Node) {
		n.configPath = path
		n.onConfigChange = onChange
	}
}

// WithHooks registers additional startup and shutdown hooks.
func WithHooks(startup, shutdown []lifecycle.Hook) Option {
	return func(n *Node) {
		n.extraStartup = append(n.extraStartup, startup...)
		n.extraShutdown = append(n.extraShutdown, shutdown...)
	}
}

// WithSubsystems registers additional subsystems after the built-in ones.
func WithSubsystems(subs ...lifecycle.Subsystem) Option {
	return func(n *Node) { n.extraSubsystems = append(n.extraSubsystems, subs...) }
}

// WithContributors registers additional health and readiness contributors.
func WithContributors(hs []health.Contributor, rs []health.ReadinessContributor) Option {
	return func(n *Node) {
		n.extraHealth = append(n.extraHealth, hs...)
		n.extraReadiness = append(n.extraReadiness, rs...)
	}
}

// Node wires the orchestrator, aggregator, monitor, probe server and
// telemetry for one process.
type Node struct {
	cfg    cliconfig.Config
	id     string
	logger log.Logger

	registry       *prometheus.Registry
	tracerProvider trace.TracerProvider
	dial           probes.DialFunc
	configPath     string
	onConfigChange func(cliconfig.FileConfig)

	extraStartup    []lifecycle.Hook
	extraShutdown   []lifecycle.Hook
	extraSubsystems []lifecycle.Subsystem
	extraHealth     []health.Contributor
	extraReadiness  []health.ReadinessContributor

	register     *lifecycle.StageRegister
	hooks        *lifecycle.HookSet
	subsystems   *lifecycle.SubsystemSet
	orchestrator *lifecycle.Orchestrator
	aggregator   *health.Aggregator
	monitor      *monitor.Monitor
	probeServer  *httpadapter.ProbeServer
	metrics      *telemetry.MetricsEmitter
	status       *state.Recorder
}

// NewNode builds a node from cfg. cfg must already be validated.
func NewNode(cfg cliconfig.Config, opts ...Option) (*Node, error) {
	n := &Node{
		cfg:    cfg,
		id:     cfg.NodeID,
		logger: log.NoopLogger{},
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.id == "" {
		n.id = uuid.NewString()
	}
	if n.registry == nil {
		n.registry = prometheus.NewRegistry()
	}
	if n.tracerProvider == nil {
		n.tracerProvider = otel.GetTracerProvider()
	}
	n.logger = n.logger.With(log.String("node_id", n.id))

	n.register = lifecycle.NewStageRegister()
	n.metrics = telemetry.NewMetricsEmitter(n.registry)
	emitter := telemetry.Multi{
		telemetry.NewLogEmitter(n.logger),
		n.metrics,
		telemetry.NewTraceEmitter(n.tracerProvider, attribute.String("node.id", n.id)),
	}
	if cfg.StatusDir != "" {
		n.status = state.NewRecorder(state.NewFileRepository(cfg.StatusDir), n.id, n.logger)
		emitter = append(emitter, n.status)
	}

	deps := make([]*probes.TCPDependency, 0, len(cfg.Dependencies))
	healthContributors := make([]health.Contributor, 0, len(cfg.Dependencies)+len(n.extraHealth))
	readinessContributors := []health.ReadinessContributor{probes.NewStageReadiness(n.register.Reader())}
	for _, d := range cfg.Dependencies {
		dep := probes.NewTCPDependency(probes.Dependency{
			Name:        d.Name,
			Address:     d.Address,
			Priority:    d.Priority,
			Critical:    d.Critical,
			Required:    d.Required,
			Timeout:     d.Timeout,
			WaitOnStart: d.WaitOnStart,
		}, n.dial)
		deps = append(deps, dep)
		healthContributors = append(healthContributors, dep)
		readinessContributors = append(readinessContributors, dep)
	}
	healthContributors = append(healthContributors, n.extraHealth...)
	readinessContributors = append(readinessContributors, n.extraReadiness...)

	agg, err := health.NewAggregator(n.register,
		health.WithContributors(healthContributors...),
		health.WithReadinessContributors(readinessContributors...),
		health.WithEventEmitter(emitter),
		health.WithStageEmitter(emitter),
		health.WithLogger(n.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("build aggregator: %w", err)
	}
	agg.Seal()
	n.aggregator = agg

	n.monitor = monitor.New(agg, monitor.Config{
		Interval:        cfg.MonitorInterval,
		FailOnUnhealthy: cfg.FailOnUnhealthy,
	}, n.logger)

	n.probeServer = httpadapter.NewProbeServer(httpadapter.ProbeServerConfig{
		Addr:       cfg.ListenAddr,
		NodeID:     n.id,
		Gatherer:   n.registry,
		DrainDelay: cfg.DrainDelay,
	}, agg, n.register.Reader(), n.monitor, n.logger)

	if err := n.buildHooks(deps); err != nil {
		return nil, err
	}
	if err := n.buildSubsystems(); err != nil {
		return nil, err
	}

	n.orchestrator = lifecycle.NewOrchestrator(n.register, n.hooks, n.subsystems,
		lifecycle.WithLogger(n.logger),
		lifecycle.WithEventEmitter(emitter),
	)
	return n, nil
}

func (n *Node) buildHooks(deps []*probes.TCPDependency) error {
	n.hooks = lifecycle.NewHookSet()

	var startup []lifecycle.Hook
	for _, d := range deps {
		if d.Dependency().WaitOnStart {
			startup = append(startup, probes.WaitForDependencies(deps, builtinHookPriority,
				n.cfg.DependencyBackoff, n.cfg.DependencyBackoffMax, n.logger))
			break
		}
	}
	startup = append(startup, n.extraStartup...)
	for _, h := range startup {
		if err := n.hooks.RegisterStartup(h); err != nil {
			return err
		}
	}

	shutdown := append([]lifecycle.Hook(nil), n.extraShutdown...)
	if f, ok := n.tracerProvider.(flusher); ok {
		shutdown = append(shutdown, flushTraces(f))
	}
	for _, h := range shutdown {
		if err := n.hooks.RegisterShutdown(h); err != nil {
			return err
		}
	}
	return nil
}

// The probe server ends first so it can drain while the node is Stopping.
func (n *Node) buildSubsystems() error {
	n.subsystems = lifecycle.NewSubsystemSet()

	subs := []lifecycle.Subsystem{n.probeServer, n.monitor}
	if n.cfg.WatchConfig && n.configPath != "" {
		subs = append(subs, configwatcher.New(configwatcher.DefaultConfig(n.configPath), n.onConfigChange, n.logger))
	}
	subs = append(subs, n.extraSubsystems...)

	for _, s := range subs {
		if err := n.subsystems.RegisterSubsystem(s); err != nil {
			return err
		}
	}
	return nil
}

type flusher interface {
	ForceFlush(ctx context.Context) error
}

// flushTraces runs last so spans for the rest of shutdown are exported.
func flushTraces(f flusher) lifecycle.Hook {
	return lifecycle.HookFunc("flush-traces", 1000, f.ForceFlush)
}

// ID returns the node instance id.
func (n *Node) ID() string { return n.id }

// Stage returns the current lifecycle stage.
func (n *Node) Stage() lifecycle.Stage { return n.register.Current() }

// Aggregator returns the node's health aggregator.
func (n *Node) Aggregator() *health.Aggregator { return n.aggregator }

// Monitor returns the node's health monitor.
func (n *Node) Monitor() *monitor.Monitor { return n.monitor }

// ProbeServer returns the node's probe server.
func (n *Node) ProbeServer() *httpadapter.ProbeServer { return n.probeServer }

// Status returns the status file recorder, or nil when no status dir is
// configured.
func (n *Node) Status() *state.Recorder { return n.status }

// Orchestrator returns the node's orchestrator.
func (n *Node) Orchestrator() *lifecycle.Orchestrator { return n.orchestrator }

// Run starts the node, waits for ctx to end or the node to fail, then stops
// it. Start and Stop are bounded by the configured timeouts.
func (n *Node) Run(ctx context.Context) error {
	startCtx, cancel := context.WithTimeout(ctx, n.cfg.StartTimeout)
	err := n.orchestrator.Start(startCtx)
	cancel()
	if err != nil {
		n.teardown()
		return fmt.Errorf("start: %w", err)
	}

	n.logger.Info("node running",
		log.String("listen", n.probeServer.Addr()),
		log.Int("dependencies", len(n.cfg.Dependencies)),
	)

	if failed := n.wait(ctx); failed {
		n.logger.Error("node failed, tearing down subsystems")
		n.teardown()
		return ErrNodeFailed
	}

	return n.shutdown()
}

// shutdown stops a running node. The node can fail between wait returning
// and Stop taking effect; Stop then refuses and the subsystems are torn down
// here instead.
func (n *Node) shutdown() error {
	n.logger.Info("shutting down")
	stopCtx, cancel := context.WithTimeout(context.Background(), n.cfg.StopTimeout)
	defer cancel()
	err := n.orchestrator.Stop(stopCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, lifecycle.ErrInvalidTransition) && n.register.Current() == lifecycle.StageFailed {
		n.logger.Error("node failed before shutdown, tearing down subsystems")
		n.teardown()
		return ErrNodeFailed
	}
	return fmt.Errorf("stop: %w", err)
}

// wait blocks until ctx ends or the stage becomes Failed. It reports
// whether the node failed.
func (n *Node) wait(ctx context.Context) bool {
	ticker := time.NewTicker(stagePollInterval)
	defer ticker.Stop()
	for {
		if n.register.Current() == lifecycle.StageFailed {
			return true
		}
		select {
		case <-ctx.Done():
			return n.register.Current() == lifecycle.StageFailed
		case <-ticker.C:
		}
	}
}

// teardown ends every subsystem after a failure. The orchestrator refuses
// to Stop a Failed node, and subsystems must tolerate End without Begin.
func (n *Node) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.StopTimeout)
	defer cancel()
	if err := n.subsystems.EndAll(ctx); err != nil {
		n.logger.Warn("teardown after failure reported errors", log.Err(err))
	}
}
