package command

import (
	"context"

	"overwatch/internal/application/command/create_backup"
	"overwatch/internal/application/command/create_tenant"
	"overwatch/internal/application/command/delete_snapshot"
	"overwatch/internal/application/command/delete_tenant"
	"overwatch/internal/application/command/prune_backups"
	"overwatch/internal/application/command/restore_backup"
	"overwatch/internal/application/command/update_tenant"
	"overwatch/internal/backup"
	"overwatch/internal/tenant"
	"overwatch/pkg/cqrs"
	"overwatch/pkg/log"
)

// RegisterCommandHandlers wires every command handler onto the bus.
func RegisterCommandHandlers(ctx context.Context, b *cqrs.Bus, manager *tenant.Manager, coordinator *backup.Coordinator) error {
	if err := cqrs.RegisterCommand(b, create_tenant.NewCreateTenantHandler(ctx, manager)); err != nil {
		return log.Errorf("failed to register create tenant handler: %w", err)
	}

	if err := cqrs.RegisterCommand(b, update_tenant.NewUpdateTenantHandler(ctx, manager)); err != nil {
		return log.Errorf("failed to register update tenant handler: %w", err)
	}

	if err := cqrs.RegisterCommand(b, delete_tenant.NewDeleteTenantHandler(ctx, manager)); err != nil {
		return log.Errorf("failed to register delete tenant handler: %w", err)
	}

	if err := cqrs.RegisterCommand(b, create_backup.NewCreateBackupHandler(ctx, coordinator, manager)); err != nil {
		return log.Errorf("failed to register create backup handler: %w", err)
	}

	if err := cqrs.RegisterCommand(b, restore_backup.NewRestoreBackupHandler(ctx, coordinator, manager)); err != nil {
		return log.Errorf("failed to register restore backup handler: %w", err)
	}

	if err := cqrs.RegisterCommand(b, delete_snapshot.NewDeleteSnapshotHandler(ctx, coordinator)); err != nil {
		return log.Errorf("failed to register delete snapshot handler: %w", err)
	}

	if err := cqrs.RegisterCommand(b, prune_backups.NewPruneBackupsHandler(ctx, coordinator)); err != nil {
		return log.Errorf("failed to register prune backups handler: %w", err)
	}

	return nil
}
