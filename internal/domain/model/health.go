package model

import "time"

// HealthStateCode classifies a probed container.
type HealthStateCode string

const (
	HealthStateHealthy   HealthStateCode = "healthy"
	HealthStateUnhealthy HealthStateCode = "unhealthy"
	HealthStateUnknown   HealthStateCode = "unknown"
)

// HealthState is the in-memory probe state for one container name. It is
// created lazily on first probe, mutated on every tick and never persisted;
// after a process restart it is re-derived within one polling interval.
type HealthState struct {
	AppID               string          `json:"app_id"`
	TenantID            string          `json:"tenant_id"`
	Service             string          `json:"service"`
	State               HealthStateCode `json:"state"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
	LastCheck           time.Time       `json:"last_check"`
}

// HealthTransition is emitted when a container's classification changes.
// Steady-state polls are silent.
type HealthTransition struct {
	ID            string          `json:"id"`
	ContainerName string          `json:"container_name"`
	AppID         string          `json:"app_id"`
	TenantID      string          `json:"tenant_id"`
	Service       string          `json:"service"`
	From          HealthStateCode `json:"from"`
	To            HealthStateCode `json:"to"`
	At            time.Time       `json:"at"`
}
