package state

import (
	"time"

	"github.com/bft-labs/nodecycle/pkg/health"
	"github.com/bft-labs/nodecycle/pkg/lifecycle"
)

// Status is the persisted view of a node.
type Status struct {
	// NodeID identifies the process instance.
	NodeID string `json:"node_id"`

	// Stage is the current lifecycle stage.
	Stage lifecycle.Stage `json:"stage"`

	// Reason is the reason given for the last stage change.
	Reason string `json:"reason,omitempty"`

	// Since is when the node entered Stage.
	Since time.Time `json:"since"`

	// Health is the verdict of the last health pass, nil before the first.
	Health *health.Status `json:"health,omitempty"`

	// Ready is the verdict of the last readiness pass, nil before the first.
	Ready *bool `json:"ready,omitempty"`

	// UpdatedAt is when the status was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsEmpty returns true if the status has never been recorded.
func (s Status) IsEmpty() bool {
	return s.NodeID == "" && s.Since.IsZero()
}
