package envvar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"overwatch/internal/config"
	"overwatch/pkg/log"
)

// sharedFileHeader is fixed so that repeated regeneration with unchanged
// inputs produces byte-identical output.
const sharedFileHeader = "# Generated by overwatch - do not edit manually.\n" +
	"# Changes belong in the app's env vars or the tenant's overrides.\n"

// RegenerateShared rewrites the tenant's shared.env from the current
// merged view. If the target path is a symbolic link it is unlinked first
// so a real file is always written and a stale or hostile symlink cannot
// redirect the write outside the tenant directory.
func (r *Resolver) RegenerateShared(ctx context.Context, appID, tenantID string) error {
	dir := r.cfg.GetTenantDir(appID, tenantID)
	if _, err := os.Stat(filepath.Join(dir, config.TenantEnvFileName)); err != nil {
		return fmt.Errorf("tenant %s/%s has no environment file: %w", appID, tenantID, err)
	}

	merged, err := r.Effective(ctx, appID, tenantID)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(sharedFileHeader)
	for _, v := range merged {
		b.WriteString(v.Key)
		b.WriteString("=")
		b.WriteString(v.Value)
		b.WriteString("\n")
	}

	target := filepath.Join(dir, config.SharedEnvFileName)
	if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
		log.Warn("Replacing symlinked shared env file with a regular file", "path", target)
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("failed to remove symlink %s: %w", target, err)
		}
	}

	if err := os.WriteFile(target, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}

// RegenerateApp regenerates the shared file of every tenant of one app
// and returns the number regenerated.
func (r *Resolver) RegenerateApp(ctx context.Context, appID string) (int, error) {
	entries, err := os.ReadDir(r.cfg.GetAppTenantsDir(appID))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read tenants of app %s: %w", appID, err)
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		tenantID := entry.Name()
		envFile := filepath.Join(r.cfg.GetTenantDir(appID, tenantID), config.TenantEnvFileName)
		if _, err := os.Stat(envFile); err != nil {
			// Not a tenant directory.
			continue
		}
		if err := r.RegenerateShared(ctx, appID, tenantID); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// RegenerateAll walks every known app's tenant directories and regenerates
// each shared file. Callers use the returned count to warn operators how
// many tenants need a restart to pick up a change.
func (r *Resolver) RegenerateAll(ctx context.Context) (int, error) {
	ids, err := r.apps.IDs(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, appID := range ids {
		n, err := r.RegenerateApp(ctx, appID)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
