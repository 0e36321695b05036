package observability

import "github.com/kbukum/injectkit/component"

// ServiceHealth describes the overall health of a service and its components.
type ServiceHealth struct {
	Service    string                 `json:"service" yaml:"service"`
	Status     component.HealthStatus `json:"status" yaml:"status"`
	Version    string                 `json:"version,omitempty" yaml:"version,omitempty"`
	Components []component.Health     `json:"components,omitempty" yaml:"components,omitempty"`
}

// NewServiceHealth creates a healthy ServiceHealth.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{
		Service: service,
		Status:  component.StatusHealthy,
		Version: version,
	}
}

// AddComponent adds a component health result and degrades overall status if needed.
func (sh *ServiceHealth) AddComponent(ch component.Health) {
	sh.Components = append(sh.Components, ch)

	switch ch.Status {
	case component.StatusUnhealthy:
		sh.Status = component.StatusUnhealthy
	case component.StatusDegraded:
		if sh.Status != component.StatusUnhealthy {
			sh.Status = component.StatusDegraded
		}
	}
}

// AddComponents adds every result of a registry health check.
func (sh *ServiceHealth) AddComponents(hs []component.Health) *ServiceHealth {
	for _, h := range hs {
		sh.AddComponent(h)
	}
	return sh
}
