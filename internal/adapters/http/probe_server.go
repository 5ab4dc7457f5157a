package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/nodecycle/pkg/health"
	"github.com/bft-labs/nodecycle/pkg/lifecycle"
	"github.com/bft-labs/nodecycle/pkg/log"
	"github.com/bft-labs/nodecycle/pkg/monitor"
)

// Checker runs health and readiness passes on demand.
type Checker interface {
	CheckHealth(ctx context.Context) (health.Status, map[string]health.Result)
	CheckReadiness(ctx context.Context) (bool, map[string]health.Readiness)
}

// SnapshotSource returns the latest monitor pass, or nil if none has run.
type SnapshotSource interface {
	Last() *monitor.Snapshot
}

// ProbeServerConfig configures the probe server.
type ProbeServerConfig struct {
	// Addr is the listen address, e.g. ":8081".
	Addr string

	// NodeID is reported by /stage and the probe endpoints.
	NodeID string

	// Gatherer serves /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	// DrainDelay keeps serving probes this long after End is called so that
	// load balancers see /readyz fail before the listener closes.
	DrainDelay time.Duration
}

type healthResponse struct {
	Status  health.Status            `json:"status"`
	Stage   lifecycle.Stage          `json:"stage"`
	NodeID  string                   `json:"node_id,omitempty"`
	Details map[string]health.Result `json:"details"`
	At      time.Time                `json:"at"`
}

type readyResponse struct {
	Ready   bool                        `json:"ready"`
	Stage   lifecycle.Stage             `json:"stage"`
	NodeID  string                      `json:"node_id,omitempty"`
	Details map[string]health.Readiness `json:"details"`
	At      time.Time                   `json:"at"`
}

type stageResponse struct {
	Stage  lifecycle.Stage `json:"stage"`
	NodeID string          `json:"node_id,omitempty"`
}

// ProbeServer exposes health, readiness, stage and metrics over HTTP.
// It is a lifecycle.Subsystem: Begin binds and serves, End shuts down.
type ProbeServer struct {
	cfg       ProbeServerConfig
	checker   Checker
	stages    lifecycle.StageReader
	snapshots SnapshotSource
	logger    log.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	serveErr chan error
}

// NewProbeServer creates a probe server. snapshots may be nil, in which case
// every probe request runs a fresh pass.
func NewProbeServer(cfg ProbeServerConfig, checker Checker, stages lifecycle.StageReader, snapshots SnapshotSource, logger log.Logger) *ProbeServer {
	return &ProbeServer{
		cfg:       cfg,
		checker:   checker,
		stages:    stages,
		snapshots: snapshots,
		logger:    log.OrNoop(logger).With(log.String("component", "probe-server")),
	}
}

// Name returns the subsystem name.
func (s *ProbeServer) Name() string {
	return "probe-server"
}

// Handler returns the probe routes.
func (s *ProbeServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /stage", s.handleStage)
	if s.cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Begin binds the listen address and serves in the background. A bind
// failure is returned so the node fails to start.
func (s *ProbeServer) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return errors.New("probe server already running")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			s.logger.Error("probe server stopped unexpectedly", log.Err(err))
		}
		serveErr <- err
	}()

	s.server, s.listener, s.serveErr = srv, ln, serveErr
	s.logger.Info("probe server listening", log.String("addr", ln.Addr().String()))
	return nil
}

// End waits out the drain delay, then gracefully shuts the server down
// within ctx. Calling End without a successful Begin is a no-op.
func (s *ProbeServer) End(ctx context.Context) error {
	s.mu.Lock()
	srv, serveErr := s.server, s.serveErr
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	if d := s.cfg.DrainDelay; d > 0 {
		s.logger.Info("draining before shutdown", log.Duration("delay", d))
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	s.mu.Lock()
	s.server, s.listener, s.serveErr = nil, nil, nil
	s.mu.Unlock()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown probe server: %w", err)
	}
	return <-serveErr
}

// Addr returns the bound address while the server is running.
func (s *ProbeServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *ProbeServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Stage: s.stages.Current(), NodeID: s.cfg.NodeID}
	if snap := s.snapshot(resp.Stage); snap != nil {
		resp.Status, resp.Details, resp.At = snap.Health, snap.Details, snap.At
	} else {
		resp.Status, resp.Details = s.checker.CheckHealth(r.Context())
		resp.At = time.Now()
	}

	code := http.StatusOK
	if resp.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

func (s *ProbeServer) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := readyResponse{Stage: s.stages.Current(), NodeID: s.cfg.NodeID}
	if snap := s.snapshot(resp.Stage); snap != nil {
		resp.Ready, resp.Details, resp.At = snap.Ready, snap.Readiness, snap.At
	} else {
		resp.Ready, resp.Details = s.checker.CheckReadiness(r.Context())
		resp.At = time.Now()
	}

	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

func (s *ProbeServer) handleStage(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, stageResponse{Stage: s.stages.Current(), NodeID: s.cfg.NodeID})
}

// snapshot returns the monitor's last pass while the node is serving. Once
// the node leaves Ready/Degraded the monitor stops being authoritative and
// probes are answered with a fresh pass.
func (s *ProbeServer) snapshot(stage lifecycle.Stage) *monitor.Snapshot {
	if s.snapshots == nil || !stage.Serving() {
		return nil
	}
	return s.snapshots.Last()
}

func (s *ProbeServer) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write probe response", log.Err(err))
	}
}
