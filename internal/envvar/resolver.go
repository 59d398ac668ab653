// Package envvar maintains the two-layer environment variable store
// (global per app, per-tenant override) and produces the merged view and
// the generated shared environment file tenants consume.
package envvar

import (
	"context"
	"fmt"
	"regexp"

	"overwatch/internal/config"
	"overwatch/internal/domain/model"
	"overwatch/internal/infra/store"
)

// keyPattern restricts variable keys to uppercase snake case.
var keyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// protectedKeys are the core identifiers the system injects itself plus
// runtime variables capable of altering process behavior. They can never
// be taken as user input through either layer.
var protectedKeys = map[string]bool{
	"APP_ID":          true,
	"TENANT_ID":       true,
	"TENANT_DOMAIN":   true,
	"IMAGE_REGISTRY":  true,
	"IMAGE_TAG":       true,
	"PROJECT_PREFIX":  true,
	"DB_HOST":         true,
	"DB_PORT":         true,
	"DB_NAME":         true,
	"DB_USER":         true,
	"DB_PASSWORD":     true,
	"JWT_SECRET":      true,
	"SHARED_NETWORK":  true,
	"PATH":            true,
	"HOME":            true,
	"LD_PRELOAD":      true,
	"LD_LIBRARY_PATH": true,
	"NODE_OPTIONS":    true,
	"PYTHONPATH":      true,
	"GODEBUG":         true,
}

// ValidateKey rejects keys that are not uppercase snake case or that
// belong to the protected set.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: key %q must match ^[A-Z][A-Z0-9_]*$", model.ErrValidation, key)
	}
	if protectedKeys[key] {
		return fmt.Errorf("%w: key %q is protected and cannot be set", model.ErrValidation, key)
	}
	return nil
}

// Resolver computes effective per-tenant environments and keeps the
// generated shared environment files in sync with every mutation.
type Resolver struct {
	cfg       *config.Config
	apps      *store.AppStore
	vars      *store.EnvVarStore
	overrides *store.OverrideStore
}

// NewResolver creates a Resolver over the given stores.
func NewResolver(cfg *config.Config, apps *store.AppStore, vars *store.EnvVarStore, overrides *store.OverrideStore) *Resolver {
	return &Resolver{cfg: cfg, apps: apps, vars: vars, overrides: overrides}
}

// ListEnvVars returns an app's global variables.
func (r *Resolver) ListEnvVars(ctx context.Context, appID string) ([]model.EnvVar, error) {
	if _, err := r.apps.Get(ctx, appID); err != nil {
		return nil, err
	}
	return r.vars.List(ctx, appID)
}

// SetEnvVar upserts a global variable and regenerates the shared file of
// every tenant of the app. The returned count tells the caller how many
// tenants must be restarted to pick the change up.
func (r *Resolver) SetEnvVar(ctx context.Context, appID string, v model.EnvVar) (model.EnvVar, int, error) {
	if _, err := r.apps.Get(ctx, appID); err != nil {
		return model.EnvVar{}, 0, err
	}
	if err := ValidateKey(v.Key); err != nil {
		return model.EnvVar{}, 0, err
	}

	saved, err := r.vars.Set(ctx, appID, v)
	if err != nil {
		return model.EnvVar{}, 0, err
	}

	count, err := r.RegenerateApp(ctx, appID)
	return saved, count, err
}

// DeleteEnvVar removes a global variable; deleting an unknown key is a
// NotFound. Tenant shared files are regenerated afterwards.
func (r *Resolver) DeleteEnvVar(ctx context.Context, appID, key string) (int, error) {
	if err := r.vars.Delete(ctx, appID, key); err != nil {
		return 0, err
	}
	return r.RegenerateApp(ctx, appID)
}

// SetTenantOverride upserts one tenant override and regenerates that
// tenant's shared file.
func (r *Resolver) SetTenantOverride(ctx context.Context, appID, tenantID string, v model.OverrideVar) (model.OverrideVar, error) {
	if _, err := r.apps.Get(ctx, appID); err != nil {
		return model.OverrideVar{}, err
	}
	if err := ValidateKey(v.Key); err != nil {
		return model.OverrideVar{}, err
	}

	saved, err := r.overrides.Set(ctx, appID, tenantID, v)
	if err != nil {
		return model.OverrideVar{}, err
	}
	return saved, r.RegenerateShared(ctx, appID, tenantID)
}

// DeleteTenantOverride removes one override key and regenerates the
// tenant's shared file.
func (r *Resolver) DeleteTenantOverride(ctx context.Context, appID, tenantID, key string) error {
	if err := r.overrides.Delete(ctx, appID, tenantID, key); err != nil {
		return err
	}
	return r.RegenerateShared(ctx, appID, tenantID)
}

// ClearTenantOverrides drops every override of a tenant. Used by tenant
// deletion; no shared file is regenerated because the tenant directory is
// going away.
func (r *Resolver) ClearTenantOverrides(ctx context.Context, appID, tenantID string) error {
	return r.overrides.ClearTenant(ctx, appID, tenantID)
}

// Effective computes the merged view for a tenant: global variables first,
// with an override's value and sensitivity substituted where a matching
// key exists, then any override whose key has no global counterpart. No
// key appears twice.
func (r *Resolver) Effective(ctx context.Context, appID, tenantID string) ([]model.EffectiveEnvVar, error) {
	globals, err := r.vars.List(ctx, appID)
	if err != nil {
		return nil, err
	}
	rec, err := r.overrides.Get(ctx, appID, tenantID)
	if err != nil {
		return nil, err
	}

	overrideByKey := make(map[string]model.OverrideVar, len(rec.Overrides))
	for _, o := range rec.Overrides {
		overrideByKey[o.Key] = o
	}

	merged := make([]model.EffectiveEnvVar, 0, len(globals)+len(rec.Overrides))
	seen := make(map[string]bool, len(globals))
	for _, g := range globals {
		entry := model.EffectiveEnvVar{
			Key:       g.Key,
			Value:     g.Value,
			Sensitive: g.Sensitive,
			Source:    model.EnvSourceGlobal,
		}
		if o, ok := overrideByKey[g.Key]; ok {
			entry.Value = o.Value
			entry.Sensitive = o.Sensitive
			entry.Source = model.EnvSourceOverride
		}
		merged = append(merged, entry)
		seen[g.Key] = true
	}

	for _, o := range rec.Overrides {
		if seen[o.Key] {
			continue
		}
		merged = append(merged, model.EffectiveEnvVar{
			Key:       o.Key,
			Value:     o.Value,
			Sensitive: o.Sensitive,
			Source:    model.EnvSourceTenantOnly,
		})
	}

	return merged, nil
}
