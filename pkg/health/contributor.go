package health

import "context"

// Result is one health contributor's outcome.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Readiness is one readiness contributor's outcome.
type Readiness struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// Contributor is a named, prioritized health check.
//
// A returned error counts as StatusUnhealthy with the error text as message.
type Contributor interface {
	Name() string
	Priority() int
	IsCritical() bool
	CheckHealth(ctx context.Context) (Result, error)
}

// ReadinessContributor is a named, prioritized readiness check.
//
// A returned error counts as not ready with the error text as reason.
type ReadinessContributor interface {
	Name() string
	Priority() int
	IsRequired() bool
	CheckReadiness(ctx context.Context) (Readiness, error)
}

// HealthCheck adapts a function into a Contributor.
type HealthCheck struct {
	Label    string
	Order    int
	Critical bool
	Fn       func(ctx context.Context) (Result, error)
}

func (c HealthCheck) Name() string     { return c.Label }
func (c HealthCheck) Priority() int    { return c.Order }
func (c HealthCheck) IsCritical() bool { return c.Critical }

func (c HealthCheck) CheckHealth(ctx context.Context) (Result, error) {
	if c.Fn == nil {
		return Result{Status: StatusHealthy}, nil
	}
	return c.Fn(ctx)
}

// ReadinessCheck adapts a function into a ReadinessContributor.
type ReadinessCheck struct {
	Label    string
	Order    int
	Required bool
	Fn       func(ctx context.Context) (Readiness, error)
}

func (c ReadinessCheck) Name() string     { return c.Label }
func (c ReadinessCheck) Priority() int    { return c.Order }
func (c ReadinessCheck) IsRequired() bool { return c.Required }

func (c ReadinessCheck) CheckReadiness(ctx context.Context) (Readiness, error) {
	if c.Fn == nil {
		return Readiness{Ready: true}, nil
	}
	return c.Fn(ctx)
}
