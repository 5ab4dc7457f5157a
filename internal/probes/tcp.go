package probes

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/bft-labs/nodecycle/pkg/health"
)

// DefaultDialTimeout is used when a dependency has no timeout configured.
const DefaultDialTimeout = 2 * time.Second

// Dependency describes an upstream service reachable over TCP.
type Dependency struct {
	Name        string
	Address     string
	Priority    int
	Critical    bool
	Required    bool
	Timeout     time.Duration
	WaitOnStart bool
}

// DialFunc opens a connection. net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// TCPDependency checks that a dependency accepts TCP connections. It is both
// a health contributor and a readiness contributor.
type TCPDependency struct {
	dep  Dependency
	dial DialFunc
}

// NewTCPDependency returns a checker for dep. A nil dial uses net.Dialer.
func NewTCPDependency(dep Dependency, dial DialFunc) *TCPDependency {
	if dep.Timeout <= 0 {
		dep.Timeout = DefaultDialTimeout
	}
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	return &TCPDependency{dep: dep, dial: dial}
}

func (t *TCPDependency) Name() string           { return t.dep.Name }
func (t *TCPDependency) Priority() int          { return t.dep.Priority }
func (t *TCPDependency) IsCritical() bool       { return t.dep.Critical }
func (t *TCPDependency) IsRequired() bool       { return t.dep.Required }
func (t *TCPDependency) Dependency() Dependency { return t.dep }

// Probe dials the dependency once and closes the connection.
func (t *TCPDependency) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.dep.Timeout)
	defer cancel()

	conn, err := t.dial(ctx, "tcp", t.dep.Address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.dep.Address, err)
	}
	return conn.Close()
}

// CheckHealth reports Unhealthy when the dependency cannot be reached.
func (t *TCPDependency) CheckHealth(ctx context.Context) (health.Result, error) {
	start := time.Now()
	if err := t.Probe(ctx); err != nil {
		return health.Result{Status: health.StatusUnhealthy, Message: err.Error()}, nil
	}
	return health.Result{
		Status:  health.StatusHealthy,
		Message: fmt.Sprintf("reachable in %s", time.Since(start).Round(time.Millisecond)),
	}, nil
}

// CheckReadiness reports not ready when the dependency cannot be reached.
func (t *TCPDependency) CheckReadiness(ctx context.Context) (health.Readiness, error) {
	if err := t.Probe(ctx); err != nil {
		return health.Readiness{Ready: false, Reason: err.Error()}, nil
	}
	return health.Readiness{Ready: true}, nil
}
