package model

import "time"

// EnvVar is a global, per-app environment variable.
type EnvVar struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Sensitive   bool      `json:"sensitive"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TenantEnvOverride holds one tenant's per-key overrides of the app's
// global environment variables.
type TenantEnvOverride struct {
	AppID     string        `json:"app_id"`
	TenantID  string        `json:"tenant_id"`
	Overrides []OverrideVar `json:"overrides"`
}

// OverrideVar is a single overridden variable within a TenantEnvOverride.
type OverrideVar struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Sensitive bool      `json:"sensitive"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EnvVarSource tells which layer an effective variable came from.
type EnvVarSource string

const (
	// EnvSourceGlobal marks a variable taken unchanged from the app's
	// global layer.
	EnvSourceGlobal EnvVarSource = "global"
	// EnvSourceOverride marks a global variable whose value was replaced
	// by a tenant override.
	EnvSourceOverride EnvVarSource = "override"
	// EnvSourceTenantOnly marks an override with no global counterpart.
	EnvSourceTenantOnly EnvVarSource = "tenant-only"
)

// EffectiveEnvVar is one entry of the merged per-tenant view. A key appears
// at most once; where both layers define it the override wins.
type EffectiveEnvVar struct {
	Key       string       `json:"key"`
	Value     string       `json:"value"`
	Sensitive bool         `json:"sensitive"`
	Source    EnvVarSource `json:"source"`
}
