package model

import "time"

// Container is a runtime-observed container. Containers are never created
// directly by this system except through the compose apply step; they are
// always derived by querying the runtime.
type Container struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"created_at"`
}

// Running reports whether the container is in the runtime's running state.
func (c Container) Running() bool {
	return c.State == "running"
}

// ParsedName is the structured identity recovered from a managed container
// name of the form {prefix}-{appId}-{tenantId}-{service}[-{replica}].
type ParsedName struct {
	AppID    string
	TenantID string
	Service  string
	// Replica is the purely numeric replica suffix, empty when absent.
	Replica string
}

// TenantStatus is the aggregated view of one tenant's containers as
// reported by fleet discovery.
type TenantStatus struct {
	AppID             string      `json:"app_id"`
	TenantID          string      `json:"tenant_id"`
	Healthy           bool        `json:"healthy"`
	RunningContainers int         `json:"running_containers"`
	TotalContainers   int         `json:"total_containers"`
	Containers        []Container `json:"containers"`
}
