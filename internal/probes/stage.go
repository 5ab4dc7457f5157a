package probes

import (
	"context"
	"math"

	"github.com/bft-labs/nodecycle/pkg/health"
	"github.com/bft-labs/nodecycle/pkg/lifecycle"
)

// StageReadiness is a required readiness contributor that is ready only
// while the node is Ready or Degraded. It runs before every other readiness
// contributor.
type StageReadiness struct {
	stages lifecycle.StageReader
}

// NewStageReadiness returns a contributor reading stages.
func NewStageReadiness(stages lifecycle.StageReader) *StageReadiness {
	return &StageReadiness{stages: stages}
}

func (s *StageReadiness) Name() string     { return "stage" }
func (s *StageReadiness) Priority() int    { return math.MinInt32 }
func (s *StageReadiness) IsRequired() bool { return true }

func (s *StageReadiness) CheckReadiness(context.Context) (health.Readiness, error) {
	cur := s.stages.Current()
	if cur.Serving() {
		return health.Readiness{Ready: true}, nil
	}
	return health.Readiness{Ready: false, Reason: "stage is " + cur.String()}, nil
}
