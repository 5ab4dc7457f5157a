package app

import (
	"context"
	"fmt"

	"github.com/bft-labs/nodecycle/internal/cliconfig"
	"github.com/bft-labs/nodecycle/internal/probes"
	"github.com/bft-labs/nodecycle/pkg/health"
	"github.com/bft-labs/nodecycle/pkg/log"
)

// CheckReport is the result of a one-shot dependency check.
type CheckReport struct {
	NodeID    string                      `json:"node_id,omitempty"`
	Status    health.Status               `json:"status"`
	Health    map[string]health.Result    `json:"health"`
	Ready     bool                        `json:"ready"`
	Readiness map[string]health.Readiness `json:"readiness"`
}

// OK reports whether the checked dependencies are usable: not unhealthy
// and ready.
func (r *CheckReport) OK() bool {
	return r.Status != health.StatusUnhealthy && r.Ready
}

// Check probes the configured dependencies once without starting a node.
// The stage readiness contributor is left out since nothing is running.
func Check(ctx context.Context, cfg cliconfig.Config, dial probes.DialFunc, logger log.Logger) (*CheckReport, error) {
	var (
		hs []health.Contributor
		rs []health.ReadinessContributor
	)
	for _, d := range cfg.Dependencies {
		dep := probes.NewTCPDependency(probes.Dependency{
			Name:     d.Name,
			Address:  d.Address,
			Priority: d.Priority,
			Critical: d.Critical,
			Required: d.Required,
			Timeout:  d.Timeout,
		}, dial)
		hs = append(hs, dep)
		rs = append(rs, dep)
	}

	agg, err := health.NewAggregator(nil,
		health.WithContributors(hs...),
		health.WithReadinessContributors(rs...),
		health.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("build aggregator: %w", err)
	}

	status, details := agg.CheckHealth(ctx)
	ready, readiness := agg.CheckReadiness(ctx)
	return &CheckReport{
		NodeID:    cfg.NodeID,
		Status:    status,
		Health:    details,
		Ready:     ready,
		Readiness: readiness,
	}, nil
}
