package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name" yaml:"name"`
	Status  HealthStatus `json:"status" yaml:"status"`
	Message string       `json:"message,omitempty" yaml:"message,omitempty"`
}

// Component is a lifecycle-managed instance. Singletons created by an
// injector that implement it are started and stopped with the injector.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component and releases resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description holds summary information for the bootstrap display.
type Description struct {
	// Name is the display name. If empty, the component's Name() is used.
	Name string `yaml:"name"`
	// Type categorizes the component: "repository", "client", "worker", etc.
	Type string `yaml:"type,omitempty"`
	// Details is a one-liner shown in the startup summary.
	Details string `yaml:"details,omitempty"`
}

// Describable is optionally implemented by Components to self-report in the
// startup summary.
type Describable interface {
	Describe() Description
}

// Describe returns the description of c, derived from its name when c does
// not implement Describable.
func Describe(c Component) Description {
	d := Description{}
	if dc, ok := c.(Describable); ok {
		d = dc.Describe()
	}
	if d.Name == "" {
		d.Name = c.Name()
	}
	return d
}
