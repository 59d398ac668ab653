package create_backup

import (
	"context"
	"errors"

	"overwatch/internal/backup"
	"overwatch/internal/domain/model"
	"overwatch/internal/tenant"
	"overwatch/pkg/log"
)

// CreateBackupHandler handles the CreateBackupCommand.
type CreateBackupHandler struct {
	ctx         context.Context
	coordinator *backup.Coordinator
	manager     *tenant.Manager
}

// Handle executes the CreateBackupCommand. With an empty tenant id every
// tenant of the app is backed up in turn; the first failure aborts the run.
func (h *CreateBackupHandler) Handle(cmd CreateBackupCommand) error {
	log.Debug("Processing create backup request", "app_id", cmd.AppID, "tenant_id", cmd.TenantID)

	tenants := []string{cmd.TenantID}
	if cmd.TenantID == "" {
		all, err := h.manager.ListTenants(h.ctx, cmd.AppID)
		if err != nil {
			return log.Errorf("failed to list tenants of app %s: %w", cmd.AppID, err)
		}
		if len(all) == 0 {
			log.Info("App has no tenants, nothing to back up", "app_id", cmd.AppID)
			return nil
		}
		tenants = all
	}

	for _, tenantID := range tenants {
		snapshotID, steps, err := h.coordinator.CreateBackup(h.ctx, cmd.AppID, tenantID)
		for _, step := range steps {
			if step.Status == model.StepSkipped {
				log.Warn("Backup step skipped", "app_id", cmd.AppID, "tenant_id", tenantID, "step", step.Name, "reason", step.Reason)
			}
		}
		if err != nil {
			if errors.Is(err, model.ErrConflict) {
				return log.Errorf("backup of %s/%s refused: %w", cmd.AppID, tenantID, err)
			}
			return log.Errorf("failed to back up tenant %s/%s: %w", cmd.AppID, tenantID, err)
		}
		log.Info("Successfully created backup", "app_id", cmd.AppID, "tenant_id", tenantID, "snapshot_id", snapshotID)
	}
	return nil
}

// NewCreateBackupHandler creates a new CreateBackupHandler.
func NewCreateBackupHandler(ctx context.Context, coordinator *backup.Coordinator, manager *tenant.Manager) *CreateBackupHandler {
	return &CreateBackupHandler{ctx: ctx, coordinator: coordinator, manager: manager}
}
