package component

import "context"

// HealthStatus is the health state reported by a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health is one component's health report.
type Health struct {
	Name    string         `json:"name"`
	Status  HealthStatus   `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Component is a lifecycle-managed part of a flowkit process: the
// orchestrator, the HTTP server, the event hub.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}

// Description is what a component reports about itself at startup.
type Description struct {
	// Type groups components in logs: "orchestrator", "server", "sse".
	Type string
	// Details is a one-line summary, e.g. "0.0.0.0:8080 h2c".
	Details string
}

// Describable is implemented by components that report a Description.
type Describable interface {
	Describe() Description
}

// Overall folds component reports into one status: unhealthy wins over
// degraded, degraded over healthy.
func Overall(reports []Health) HealthStatus {
	status := StatusHealthy
	for _, h := range reports {
		switch h.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}
