package restore_backup

import (
	"context"

	"overwatch/internal/backup"
	"overwatch/internal/domain/model"
	"overwatch/internal/tenant"
	"overwatch/pkg/log"
)

// RestoreBackupHandler handles the RestoreBackupCommand.
type RestoreBackupHandler struct {
	ctx         context.Context
	coordinator *backup.Coordinator
	manager     *tenant.Manager
}

// Handle executes the RestoreBackupCommand. When Options.CreateNew is set
// the target tenant is provisioned first; a restore failure after that does
// not tear the new tenant down, so the operator can retry into it.
func (h *RestoreBackupHandler) Handle(cmd RestoreBackupCommand) error {
	log.Debug("Processing restore backup request",
		"app_id", cmd.AppID, "snapshot_id", cmd.SnapshotID, "tenant_id", cmd.TenantID, "create_new", cmd.Options.CreateNew)

	if cmd.SnapshotID == "" {
		return log.Errorf("snapshot id is required for restore backup command")
	}

	if cmd.Options.CreateNew {
		if cmd.Options.NewDomain == "" {
			return log.Errorf("%w: createNew requires newDomain", model.ErrValidation)
		}
		if _, err := h.manager.CreateTenant(h.ctx, cmd.AppID, cmd.TenantID, cmd.Options.NewDomain, ""); err != nil {
			return log.Errorf("failed to provision restore target %s/%s: %w", cmd.AppID, cmd.TenantID, err)
		}
	}

	steps, err := h.coordinator.RestoreBackup(h.ctx, cmd.AppID, cmd.SnapshotID, cmd.TenantID, cmd.Options)
	for _, step := range steps {
		if step.Status == model.StepSkipped {
			log.Warn("Restore step skipped", "app_id", cmd.AppID, "tenant_id", cmd.TenantID, "step", step.Name, "reason", step.Reason)
		}
	}
	if err != nil {
		return log.Errorf("failed to restore snapshot %s into %s/%s: %w", cmd.SnapshotID, cmd.AppID, cmd.TenantID, err)
	}

	log.Info("Successfully restored backup", "app_id", cmd.AppID, "snapshot_id", cmd.SnapshotID, "tenant_id", cmd.TenantID)
	return nil
}

// NewRestoreBackupHandler creates a new RestoreBackupHandler.
func NewRestoreBackupHandler(ctx context.Context, coordinator *backup.Coordinator, manager *tenant.Manager) *RestoreBackupHandler {
	return &RestoreBackupHandler{ctx: ctx, coordinator: coordinator, manager: manager}
}
