// Package backup orchestrates tagged backup and restore transactions
// against an external content-addressed backup tool. It decides what gets
// backed up and when; the snapshot storage format and encryption belong to
// the tool.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"overwatch/internal/config"
	"overwatch/internal/domain/model"
	"overwatch/internal/domain/repository"
	"overwatch/internal/fleet"
	"overwatch/internal/infra/store"
	"overwatch/internal/tenant"
	"overwatch/pkg/log"
)

// containerPathPattern is the allow-list for container-internal paths that
// get interpolated into external-process arguments. Alphanumerics, slash,
// underscore, dot and hyphen only; parent references are rejected
// separately.
var containerPathPattern = regexp.MustCompile(`^[A-Za-z0-9/_.-]+$`)

// Coordinator runs backup and restore transactions for tenants. In-process
// it never serializes operations against the same app; the tool's own
// repository lock is the concurrency control, and contention is surfaced
// as a reported condition rather than retried.
type Coordinator struct {
	cfg     *config.Config
	apps    *store.AppStore
	db      repository.DatabaseAdapter
	runtime repository.ContainerRuntime
	runner  CommandRunner
	namer   fleet.Namer
}

// NewCoordinator wires a Coordinator.
func NewCoordinator(cfg *config.Config, apps *store.AppStore, db repository.DatabaseAdapter, runtime repository.ContainerRuntime, runner CommandRunner, namer fleet.Namer) *Coordinator {
	return &Coordinator{cfg: cfg, apps: apps, db: db, runtime: runtime, runner: runner, namer: namer}
}

// clientFor derives the per-app repository target and invocation
// environment. A missing credential is a configuration error, reported
// before any tool invocation is attempted.
func (c *Coordinator) clientFor(app *model.App) (*resticClient, error) {
	if app.Backup == nil || app.Backup.Endpoint == "" || app.Backup.Bucket == "" {
		return nil, fmt.Errorf("%w: app %s has no backup repository configured", model.ErrValidation, app.ID)
	}
	required := map[string]string{
		"RESTIC_PASSWORD":       c.cfg.Backup.Password,
		"AWS_ACCESS_KEY_ID":     c.cfg.Backup.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY": c.cfg.Backup.SecretAccessKey,
	}
	env := []string{
		fmt.Sprintf("RESTIC_REPOSITORY=s3:%s/%s", app.Backup.Endpoint, app.Backup.Bucket),
	}
	for name, value := range required {
		if value == "" {
			return nil, fmt.Errorf("%w: backup requires %s to be configured", model.ErrValidation, name)
		}
		env = append(env, name+"="+value)
	}
	return &resticClient{
		binary:  c.cfg.Backup.Binary,
		env:     env,
		timeout: c.cfg.BackupTimeout(),
		runner:  c.runner,
	}, nil
}

// GetBackupInfo probes the app's repository with a trivial read and
// classifies the outcome: initialized, not yet initialized, or locked by
// another operation (with the lock metadata extracted for a human to act
// on).
func (c *Coordinator) GetBackupInfo(ctx context.Context, appID string) (model.BackupInfo, error) {
	app, err := c.apps.Get(ctx, appID)
	if err != nil {
		return model.BackupInfo{}, err
	}
	client, err := c.clientFor(app)
	if err != nil {
		return model.BackupInfo{}, err
	}

	info := model.BackupInfo{
		AppID:      appID,
		Repository: fmt.Sprintf("s3:%s/%s", app.Backup.Endpoint, app.Backup.Bucket),
	}

	_, err = client.run(ctx, "snapshots", "--latest", "1", "--json")
	if err == nil {
		info.State = model.RepositoryInitialized
		return info, nil
	}

	var tErr *toolError
	if errors.As(err, &tErr) {
		if lock, ok := ParseLockInfo(tErr.stderr); ok {
			info.State = model.RepositoryLocked
			info.Lock = lock
			return info, nil
		}
		if repositoryAbsent(tErr.stderr) {
			info.State = model.RepositoryNotInitialized
			return info, nil
		}
	}
	return model.BackupInfo{}, genericToolFailure("status", err)
}

// ensureRepository initializes the repository when the probe says it does
// not exist yet.
func (c *Coordinator) ensureRepository(ctx context.Context, client *resticClient) error {
	_, err := client.run(ctx, "snapshots", "--latest", "1", "--json")
	if err == nil {
		return nil
	}
	var tErr *toolError
	if errors.As(err, &tErr) {
		if lock, ok := ParseLockInfo(tErr.stderr); ok {
			return fmt.Errorf("%w: repository is locked by PID %s on %s (%s old)",
				model.ErrConflict, lock.PID, lock.Host, lock.Age)
		}
		if repositoryAbsent(tErr.stderr) {
			log.Info("Initializing backup repository")
			if _, err := client.run(ctx, "init"); err != nil {
				return genericToolFailure("init", err)
			}
			return nil
		}
	}
	return genericToolFailure("status", err)
}

// CreateBackup assembles a scratch directory with the tenant's database
// dump, its environment file and every backup-enabled container path, then
// snapshots it tagged app:{id} and tenant:{id}. The scratch directory is
// removed regardless of outcome. The returned string is the new snapshot
// id.
func (c *Coordinator) CreateBackup(ctx context.Context, appID, tenantID string) (string, []model.StepResult, error) {
	app, err := c.apps.Get(ctx, appID)
	if err != nil {
		return "", nil, err
	}
	client, err := c.clientFor(app)
	if err != nil {
		return "", nil, err
	}

	tenantDir := c.cfg.GetTenantDir(appID, tenantID)
	envContent, err := os.ReadFile(filepath.Join(tenantDir, config.TenantEnvFileName))
	if err != nil {
		return "", nil, fmt.Errorf("%w: tenant %s/%s", model.ErrNotFound, appID, tenantID)
	}
	dbName := tenant.ParseEnvFile(string(envContent))["DB_NAME"]

	if err := c.ensureRepository(ctx, client); err != nil {
		return "", nil, err
	}

	scratch := filepath.Join(os.TempDir(), "overwatch-backup-"+uuid.NewString())
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.Warn("Failed to remove backup scratch directory", "dir", scratch, "error", err)
		}
	}()

	tenantRoot := filepath.Join(scratch, tenantID)
	if err := os.MkdirAll(tenantRoot, 0o700); err != nil {
		return "", nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	var steps []model.StepResult

	if dbName == "" {
		steps = append(steps, model.Skipped("database-dump", "environment file has no DB_NAME"))
	} else {
		if err := c.db.Dump(ctx, dbName, filepath.Join(tenantRoot, "database.sql")); err != nil {
			steps = append(steps, model.Failed("database-dump", err))
			return "", steps, fmt.Errorf("failed to dump database %s: %w", dbName, err)
		}
		steps = append(steps, model.Done("database-dump"))
	}

	if err := os.WriteFile(filepath.Join(tenantRoot, config.TenantEnvFileName), envContent, 0o600); err != nil {
		return "", steps, fmt.Errorf("failed to copy tenant environment file: %w", err)
	}
	steps = append(steps, model.Done("env-file"))

	pathSteps, err := c.copyServicePaths(ctx, app, tenantID, tenantRoot)
	steps = append(steps, pathSteps...)
	if err != nil {
		return "", steps, err
	}

	metadata := model.BackupMetadata{
		Timestamp: time.Now().UTC(),
		AppID:     appID,
		Tenants:   []string{tenantID},
		Project:   c.cfg.ProjectPrefix,
		Version:   model.BackupMetadataVersion,
	}
	metadataBytes, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "", steps, fmt.Errorf("failed to encode backup metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(scratch, "metadata.json"), metadataBytes, 0o600); err != nil {
		return "", steps, fmt.Errorf("failed to write backup metadata: %w", err)
	}

	output, err := client.run(ctx, "backup", scratch, "--json",
		"--tag", "app:"+appID, "--tag", "tenant:"+tenantID)
	if err != nil {
		var tErr *toolError
		if errors.As(err, &tErr) {
			if lock, ok := ParseLockInfo(tErr.stderr); ok {
				return "", steps, fmt.Errorf("%w: repository is locked by PID %s on %s (%s old)",
					model.ErrConflict, lock.PID, lock.Host, lock.Age)
			}
		}
		return "", steps, genericToolFailure("backup", err)
	}

	snapshotID, err := parseSnapshotID(output)
	if err != nil {
		return "", steps, genericToolFailure("backup", err)
	}

	log.Info("Backup created", "app_id", appID, "tenant_id", tenantID, "snapshot_id", snapshotID)
	return snapshotID, steps, nil
}

// copyServicePaths copies every backup-enabled container path into the
// scratch tree. An absent container or an empty path skips the step; a
// malformed path aborts the backup before anything is interpolated into an
// external-process argument.
func (c *Coordinator) copyServicePaths(ctx context.Context, app *model.App, tenantID, tenantRoot string) ([]model.StepResult, error) {
	var steps []model.StepResult
	for _, svc := range app.Services {
		if svc.Backup == nil || !svc.Backup.Enabled {
			continue
		}
		containerName := c.namer.Encode(app.ID, tenantID, svc.Name, "")
		for _, p := range svc.Backup.Paths {
			stepName := fmt.Sprintf("copy-path:%s:%s", svc.Name, p.ContainerPath)
			if err := validateContainerPath(p.ContainerPath); err != nil {
				return steps, err
			}
			dstDir := filepath.Join(tenantRoot, "paths", p.ArchiveDir)
			if err := os.MkdirAll(dstDir, 0o700); err != nil {
				return steps, fmt.Errorf("failed to create archive directory: %w", err)
			}
			if err := c.runtime.CopyFromContainer(ctx, containerName, p.ContainerPath, dstDir); err != nil {
				if isAbsenceError(err) {
					log.Debug("Skipping path copy", "container", containerName, "path", p.ContainerPath, "reason", err)
					steps = append(steps, model.Skipped(stepName, err.Error()))
					continue
				}
				steps = append(steps, model.Failed(stepName, err))
				return steps, fmt.Errorf("failed to copy %s from %s: %w", p.ContainerPath, containerName, err)
			}
			steps = append(steps, model.Done(stepName))
		}
	}
	return steps, nil
}

// RestoreBackup restores a snapshot into a live tenant: database dump into
// the target's resolved database, backed-up paths into the running
// containers. CreateNew does not provision the tenant; that is the
// caller's responsibility.
func (c *Coordinator) RestoreBackup(ctx context.Context, appID, snapshotID, targetTenantID string, opts model.RestoreOptions) ([]model.StepResult, error) {
	if opts.CreateNew && opts.NewDomain == "" {
		return nil, fmt.Errorf("%w: createNew requires newDomain", model.ErrValidation)
	}

	app, err := c.apps.Get(ctx, appID)
	if err != nil {
		return nil, err
	}
	client, err := c.clientFor(app)
	if err != nil {
		return nil, err
	}

	targetDir := c.cfg.GetTenantDir(appID, targetTenantID)
	envContent, err := os.ReadFile(filepath.Join(targetDir, config.TenantEnvFileName))
	if err != nil {
		return nil, fmt.Errorf("%w: target tenant %s/%s", model.ErrNotFound, appID, targetTenantID)
	}
	dbName := tenant.ParseEnvFile(string(envContent))["DB_NAME"]

	scratch := filepath.Join(os.TempDir(), "overwatch-restore-"+uuid.NewString())
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.Warn("Failed to remove restore scratch directory", "dir", scratch, "error", err)
		}
	}()

	if _, err := client.run(ctx, "restore", snapshotID, "--target", scratch); err != nil {
		var tErr *toolError
		if errors.As(err, &tErr) {
			if lock, ok := ParseLockInfo(tErr.stderr); ok {
				return nil, fmt.Errorf("%w: repository is locked by PID %s on %s (%s old)",
					model.ErrConflict, lock.PID, lock.Host, lock.Age)
			}
		}
		return nil, genericToolFailure("restore", err)
	}

	metadataPath, err := findMetadata(scratch)
	if err != nil {
		return nil, err
	}
	metadataBytes, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup metadata: %w", err)
	}
	var metadata model.BackupMetadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse backup metadata: %w", err)
	}

	sourceTenant, err := selectSourceTenant(metadata, targetTenantID)
	if err != nil {
		return nil, err
	}
	sourceRoot := filepath.Join(filepath.Dir(metadataPath), sourceTenant)

	var steps []model.StepResult

	dumpFile := filepath.Join(sourceRoot, "database.sql")
	if _, err := os.Stat(dumpFile); err != nil {
		steps = append(steps, model.Skipped("database-restore", "backup contains no database dump"))
	} else if dbName == "" {
		steps = append(steps, model.Skipped("database-restore", "target environment file has no DB_NAME"))
	} else {
		if err := c.db.Restore(ctx, dbName, dumpFile); err != nil {
			steps = append(steps, model.Failed("database-restore", err))
			return steps, fmt.Errorf("failed to restore database %s: %w", dbName, err)
		}
		steps = append(steps, model.Done("database-restore"))
	}

	for _, svc := range app.Services {
		if svc.Backup == nil || !svc.Backup.Enabled {
			continue
		}
		containerName := c.namer.Encode(appID, targetTenantID, svc.Name, "")
		for _, p := range svc.Backup.Paths {
			stepName := fmt.Sprintf("restore-path:%s:%s", svc.Name, p.ContainerPath)
			if err := validateContainerPath(p.ContainerPath); err != nil {
				return steps, err
			}
			srcDir := filepath.Join(sourceRoot, "paths", p.ArchiveDir)
			if _, err := os.Stat(srcDir); err != nil {
				steps = append(steps, model.Skipped(stepName, "no backed-up data for path"))
				continue
			}
			if err := c.runtime.CopyToContainer(ctx, containerName, srcDir, p.ContainerPath); err != nil {
				if isAbsenceError(err) {
					steps = append(steps, model.Skipped(stepName, err.Error()))
					continue
				}
				steps = append(steps, model.Failed(stepName, err))
				return steps, fmt.Errorf("failed to restore %s into %s: %w", p.ContainerPath, containerName, err)
			}
			steps = append(steps, model.Done(stepName))
		}
	}

	log.Info("Backup restored", "app_id", appID, "snapshot_id", snapshotID, "source_tenant", sourceTenant, "target_tenant", targetTenantID)
	return steps, nil
}

// ListSnapshots returns the snapshots tagged for an app, optionally
// narrowed to one tenant.
func (c *Coordinator) ListSnapshots(ctx context.Context, appID, tenantID string) ([]model.Snapshot, error) {
	app, err := c.apps.Get(ctx, appID)
	if err != nil {
		return nil, err
	}
	client, err := c.clientFor(app)
	if err != nil {
		return nil, err
	}

	args := []string{"snapshots", "--json", "--tag", "app:" + appID}
	if tenantID != "" {
		args = append(args, "--tag", "tenant:"+tenantID)
	}
	output, err := client.run(ctx, args...)
	if err != nil {
		var tErr *toolError
		if errors.As(err, &tErr) && repositoryAbsent(tErr.stderr) {
			return nil, nil
		}
		return nil, genericToolFailure("list", err)
	}
	return parseSnapshots(output)
}

// DeleteSnapshot removes one snapshot from the repository.
func (c *Coordinator) DeleteSnapshot(ctx context.Context, appID, snapshotID string) error {
	app, err := c.apps.Get(ctx, appID)
	if err != nil {
		return err
	}
	client, err := c.clientFor(app)
	if err != nil {
		return err
	}
	if _, err := client.run(ctx, "forget", snapshotID, "--prune"); err != nil {
		return genericToolFailure("forget", err)
	}
	log.Info("Snapshot deleted", "app_id", appID, "snapshot_id", snapshotID)
	return nil
}

// PruneBackups applies a daily/weekly/monthly retention policy to the
// app's repository.
func (c *Coordinator) PruneBackups(ctx context.Context, appID string, daily, weekly, monthly int) error {
	if daily <= 0 && weekly <= 0 && monthly <= 0 {
		return fmt.Errorf("%w: at least one retention count is required", model.ErrValidation)
	}
	app, err := c.apps.Get(ctx, appID)
	if err != nil {
		return err
	}
	client, err := c.clientFor(app)
	if err != nil {
		return err
	}

	args := []string{"forget", "--prune"}
	if daily > 0 {
		args = append(args, "--keep-daily", fmt.Sprint(daily))
	}
	if weekly > 0 {
		args = append(args, "--keep-weekly", fmt.Sprint(weekly))
	}
	if monthly > 0 {
		args = append(args, "--keep-monthly", fmt.Sprint(monthly))
	}
	if _, err := client.run(ctx, args...); err != nil {
		return genericToolFailure("prune", err)
	}
	log.Info("Backups pruned", "app_id", appID, "keep_daily", daily, "keep_weekly", weekly, "keep_monthly", monthly)
	return nil
}

// Unlock force-removes a stale repository lock. Intended for a human who
// inspected the lock metadata reported by GetBackupInfo.
func (c *Coordinator) Unlock(ctx context.Context, appID string) error {
	app, err := c.apps.Get(ctx, appID)
	if err != nil {
		return err
	}
	client, err := c.clientFor(app)
	if err != nil {
		return err
	}
	if _, err := client.run(ctx, "unlock"); err != nil {
		return genericToolFailure("unlock", err)
	}
	log.Info("Backup repository unlocked", "app_id", appID)
	return nil
}

// validateContainerPath enforces the allow-list for container-internal
// paths before they reach an external-process argument.
func validateContainerPath(p string) error {
	if p == "" || !containerPathPattern.MatchString(p) || strings.Contains(p, "..") {
		return fmt.Errorf("%w: container path %q is not allowed", model.ErrValidation, p)
	}
	return nil
}

// isAbsenceError reports whether a runtime copy failure means the
// container or the path simply is not there, which backup and restore
// tolerate.
func isAbsenceError(err error) bool {
	if errors.Is(err, model.ErrNotFound) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "No such container") ||
		strings.Contains(msg, "no such file or directory") ||
		strings.Contains(msg, "Could not find the file")
}

// findMetadata locates metadata.json inside the restored scratch tree.
// The tool restores snapshots under their original absolute paths, so the
// file's depth is not fixed.
func findMetadata(root string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == "metadata.json" {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan restored snapshot: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: restored snapshot contains no metadata.json", model.ErrNotFound)
	}
	return found, nil
}

// selectSourceTenant picks the tenant to restore from within a backup set.
// Single-tenant backups auto-select; multi-tenant sets require the target
// id to be present.
func selectSourceTenant(metadata model.BackupMetadata, targetTenantID string) (string, error) {
	if len(metadata.Tenants) == 0 {
		return "", fmt.Errorf("%w: backup metadata lists no tenants", model.ErrValidation)
	}
	if len(metadata.Tenants) == 1 {
		return metadata.Tenants[0], nil
	}
	for _, t := range metadata.Tenants {
		if t == targetTenantID {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: tenant %s is not part of this backup set", model.ErrNotFound, targetTenantID)
}
