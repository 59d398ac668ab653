// Package tenant orchestrates the tenant lifecycle: provisioning,
// reconfiguration and destruction, with rollback of prior steps when a
// later step fails.
package tenant

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"overwatch/internal/config"
	"overwatch/internal/domain/model"
	"overwatch/internal/domain/repository"
	"overwatch/internal/envvar"
	"overwatch/internal/infra/store"
	"overwatch/pkg/log"
)

// Manager creates, updates and deletes tenants. All multi-step operations
// run to completion or roll back; callers cannot abort one in flight.
type Manager struct {
	cfg      *config.Config
	apps     *store.AppStore
	resolver *envvar.Resolver
	db       repository.DatabaseAdapter
	runtime  repository.ContainerRuntime
	compose  repository.ComposeGenerator
}

// NewManager wires a Manager.
func NewManager(cfg *config.Config, apps *store.AppStore, resolver *envvar.Resolver, db repository.DatabaseAdapter, runtime repository.ContainerRuntime, compose repository.ComposeGenerator) *Manager {
	return &Manager{cfg: cfg, apps: apps, resolver: resolver, db: db, runtime: runtime, compose: compose}
}

// DatabaseName derives the conventional database name for a tenant.
// Hyphens are mapped to underscores to stay a plain SQL identifier. Note
// that deletion never relies on this derivation; it reads the real name
// from the tenant's environment file.
func (m *Manager) DatabaseName(appID, tenantID string) string {
	sanitize := func(s string) string { return strings.ReplaceAll(s, "-", "_") }
	return fmt.Sprintf("%s_%s_%s", m.cfg.Database.Prefix, sanitize(appID), sanitize(tenantID))
}

// CreateTenant provisions a tenant of appID: credentials, a dedicated
// database, the tenant directory with its environment files, the compose
// descriptor, and finally the running containers. The database is created
// before any filesystem write so a failed database step leaves no partial
// directory; any failure after it rolls the database and directory back
// and re-raises the original error.
func (m *Manager) CreateTenant(ctx context.Context, appID, tenantID, domain, imageTag string) (*model.Tenant, error) {
	if err := model.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	app, err := m.apps.Get(ctx, appID)
	if err != nil {
		return nil, err
	}

	dir := m.cfg.GetTenantDir(appID, tenantID)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: tenant %s/%s already exists", model.ErrConflict, appID, tenantID)
	}

	if imageTag == "" {
		imageTag = app.DefaultImageTag
	}
	if domain == "" && app.DomainTemplate != "" {
		domain = strings.ReplaceAll(app.DomainTemplate, "{tenant}", tenantID)
	}
	if domain == "" {
		return nil, fmt.Errorf("%w: domain is required for tenant %s/%s", model.ErrValidation, appID, tenantID)
	}

	dbPasswordLen, secretLen := m.credentialLengths(app)
	dbPassword, err := generateCredential(dbPasswordLen)
	if err != nil {
		return nil, err
	}
	secret, err := generateCredential(secretLen)
	if err != nil {
		return nil, err
	}

	dbName := m.DatabaseName(appID, tenantID)
	if err := m.db.CreateDatabase(ctx, dbName, dbName, dbPassword); err != nil {
		return nil, fmt.Errorf("failed to provision database %s: %w", dbName, err)
	}

	tenant := model.Tenant{AppID: appID, TenantID: tenantID, Domain: domain, ImageTag: imageTag}
	if err := m.materialize(ctx, app, tenant, dbName, dbPassword, secret); err != nil {
		m.rollbackCreate(appID, tenantID, dbName)
		return nil, err
	}

	log.Info("Tenant created", "app_id", appID, "tenant_id", tenantID, "domain", domain, "image_tag", imageTag)
	return &tenant, nil
}

// materialize performs every post-database creation step.
func (m *Manager) materialize(ctx context.Context, app *model.App, tenant model.Tenant, dbName, dbPassword, secret string) error {
	dir := m.cfg.GetTenantDir(tenant.AppID, tenant.TenantID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create tenant directory: %w", err)
	}

	env := EnvFile{
		AppID:         tenant.AppID,
		TenantID:      tenant.TenantID,
		TenantDomain:  tenant.Domain,
		ImageRegistry: app.Registry.URL,
		ImageTag:      tenant.ImageTag,
		ProjectPrefix: m.cfg.ProjectPrefix,
		DBHost:        m.cfg.Database.Host,
		DBPort:        m.cfg.Database.Port,
		DBName:        dbName,
		DBUser:        dbName,
		DBPassword:    dbPassword,
		JWTSecret:     secret,
		SharedNetwork: m.cfg.SharedNetwork,
	}
	envPath := filepath.Join(dir, config.TenantEnvFileName)
	if err := os.WriteFile(envPath, []byte(env.Render()), 0o600); err != nil {
		return fmt.Errorf("failed to write tenant environment file: %w", err)
	}

	if err := m.resolver.RegenerateShared(ctx, tenant.AppID, tenant.TenantID); err != nil {
		return fmt.Errorf("failed to generate shared environment file: %w", err)
	}

	if err := m.compose.Generate(ctx, app, tenant, dir); err != nil {
		return fmt.Errorf("failed to generate compose descriptor: %w", err)
	}

	if err := m.runtime.ComposeUp(ctx, dir); err != nil {
		return fmt.Errorf("failed to start tenant: %w", err)
	}
	return nil
}

// rollbackCreate undoes a partially created tenant. Both steps are best
// effort; the caller re-raises the original error regardless.
func (m *Manager) rollbackCreate(appID, tenantID, dbName string) {
	dir := m.cfg.GetTenantDir(appID, tenantID)
	if err := os.RemoveAll(dir); err != nil {
		log.Warn("Rollback could not remove tenant directory", "dir", dir, "error", err)
	}
	// Fresh context: the operation's context may already be poisoned.
	if err := m.db.DropDatabase(context.Background(), dbName); err != nil {
		log.Warn("Rollback could not drop database", "database", dbName, "error", err)
	}
	log.Info("Tenant creation rolled back", "app_id", appID, "tenant_id", tenantID)
}

// DeleteTenant tears a tenant down. Container teardown is best-effort and
// its failures are reported as skipped steps: the removal of the tenant
// directory is what authoritatively deletes the tenant. The database name
// is resolved from the persisted environment file, supporting tenants
// whose database diverges from the naming convention.
func (m *Manager) DeleteTenant(ctx context.Context, appID, tenantID string, keepData bool) ([]model.StepResult, error) {
	dir := m.cfg.GetTenantDir(appID, tenantID)
	envPath := filepath.Join(dir, config.TenantEnvFileName)
	content, err := os.ReadFile(envPath)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant %s/%s", model.ErrNotFound, appID, tenantID)
	}
	dbName := ParseEnvFile(string(content))["DB_NAME"]

	var steps []model.StepResult

	if err := m.resolver.ClearTenantOverrides(ctx, appID, tenantID); err != nil {
		return steps, fmt.Errorf("failed to clear tenant overrides: %w", err)
	}
	steps = append(steps, model.Done("clear-overrides"))

	if err := m.runtime.ComposeDown(ctx, dir); err != nil {
		log.Warn("Container teardown failed, continuing with deletion", "app_id", appID, "tenant_id", tenantID, "error", err)
		steps = append(steps, model.Skipped("compose-down", err.Error()))
	} else {
		steps = append(steps, model.Done("compose-down"))
	}

	if keepData {
		steps = append(steps, model.Skipped("drop-database", "keepData requested"))
	} else if dbName == "" {
		steps = append(steps, model.Skipped("drop-database", "environment file has no DB_NAME"))
	} else {
		if err := m.db.DropDatabase(ctx, dbName); err != nil {
			return steps, fmt.Errorf("failed to drop database %s: %w", dbName, err)
		}
		steps = append(steps, model.Done("drop-database"))
	}

	if err := os.RemoveAll(dir); err != nil {
		return steps, fmt.Errorf("failed to remove tenant directory: %w", err)
	}
	steps = append(steps, model.Done("remove-directory"))

	log.Info("Tenant deleted", "app_id", appID, "tenant_id", tenantID, "keep_data", keepData)
	return steps, nil
}

// UpdateTenant switches a tenant to a new image tag. The environment file
// is patched in place; if the subsequent runtime operations fail it is
// restored to its pre-update content before the error propagates, so the
// update is all-or-nothing from the caller's perspective.
func (m *Manager) UpdateTenant(ctx context.Context, appID, tenantID, newTag string) error {
	if newTag == "" {
		return fmt.Errorf("%w: image tag is required", model.ErrValidation)
	}

	dir := m.cfg.GetTenantDir(appID, tenantID)
	envPath := filepath.Join(dir, config.TenantEnvFileName)
	original, err := os.ReadFile(envPath)
	if err != nil {
		return fmt.Errorf("%w: tenant %s/%s", model.ErrNotFound, appID, tenantID)
	}

	updated, err := ReplaceEnvValue(string(original), "IMAGE_TAG", newTag)
	if err != nil {
		return fmt.Errorf("failed to patch environment file: %w", err)
	}
	if err := os.WriteFile(envPath, []byte(updated), 0o600); err != nil {
		return fmt.Errorf("failed to write environment file: %w", err)
	}
	if err := m.resolver.RegenerateShared(ctx, appID, tenantID); err != nil {
		m.restoreEnvFile(envPath, original)
		return err
	}

	if err := m.pullAndRecreate(ctx, dir); err != nil {
		m.restoreEnvFile(envPath, original)
		if regenErr := m.resolver.RegenerateShared(ctx, appID, tenantID); regenErr != nil {
			log.Warn("Could not regenerate shared env after restore", "app_id", appID, "tenant_id", tenantID, "error", regenErr)
		}
		return err
	}

	log.Info("Tenant updated", "app_id", appID, "tenant_id", tenantID, "image_tag", newTag)
	return nil
}

func (m *Manager) pullAndRecreate(ctx context.Context, dir string) error {
	if err := m.runtime.ComposePull(ctx, dir); err != nil {
		return fmt.Errorf("failed to pull images: %w", err)
	}
	if err := m.runtime.ComposeUpRecreate(ctx, dir); err != nil {
		return fmt.Errorf("failed to recreate containers: %w", err)
	}
	return nil
}

func (m *Manager) restoreEnvFile(path string, original []byte) {
	if err := os.WriteFile(path, original, 0o600); err != nil {
		log.Error("Failed to restore environment file after failed update", "path", path, "error", err)
	}
}

// ListTenants enumerates the tenants of an app by walking its tenant
// directories. Directories without an environment file are not tenants.
func (m *Manager) ListTenants(ctx context.Context, appID string) ([]string, error) {
	if _, err := m.apps.Get(ctx, appID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(m.cfg.GetAppTenantsDir(appID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tenants of app %s: %w", appID, err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		envFile := filepath.Join(m.cfg.GetTenantDir(appID, entry.Name()), config.TenantEnvFileName)
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		ids = append(ids, entry.Name())
	}
	return ids, nil
}

func (m *Manager) credentialLengths(app *model.App) (int, int) {
	dbLen := m.cfg.Credentials.DBPasswordLength
	secretLen := m.cfg.Credentials.SecretLength
	if app.Credentials != nil {
		if app.Credentials.DBPasswordLength > 0 {
			dbLen = app.Credentials.DBPasswordLength
		}
		if app.Credentials.SecretLength > 0 {
			secretLen = app.Credentials.SecretLength
		}
	}
	return dbLen, secretLen
}
