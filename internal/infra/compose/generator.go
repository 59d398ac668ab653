// Package compose installs an app's pre-authored compose project into a
// tenant directory. Files are copied as-is; all per-tenant variability
// flows through the generated environment files, which compose reads via
// ${VAR} interpolation.
package compose

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"overwatch/internal/config"
	"overwatch/internal/domain/model"
	"overwatch/pkg/log"
)

// StaticGenerator copies the template directory of an app into the tenant
// directory.
type StaticGenerator struct {
	cfg *config.Config
}

// NewStaticGenerator creates a StaticGenerator rooted at the configured
// templates path.
func NewStaticGenerator(cfg *config.Config) *StaticGenerator {
	return &StaticGenerator{cfg: cfg}
}

// Generate copies every file of the app's template directory into dir.
// Environment files are never part of a template; they are owned by the
// tenant lifecycle and must not be clobbered here.
func (g *StaticGenerator) Generate(ctx context.Context, app *model.App, tenant model.Tenant, dir string) error {
	templateDir := g.cfg.GetAppTemplateDir(app.ID)
	entries, err := os.ReadDir(templateDir)
	if err != nil {
		return fmt.Errorf("%w: app %s has no compose template at %s", model.ErrNotFound, app.ID, templateDir)
	}

	copied := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == config.TenantEnvFileName || name == config.SharedEnvFileName {
			continue
		}
		data, err := os.ReadFile(filepath.Join(templateDir, name))
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			return fmt.Errorf("failed to install template file %s: %w", name, err)
		}
		copied++
	}

	if copied == 0 {
		return fmt.Errorf("%w: compose template of app %s is empty", model.ErrValidation, app.ID)
	}

	log.Debug("Installed compose project", "app_id", app.ID, "tenant_id", tenant.TenantID, "files", copied)
	return nil
}
