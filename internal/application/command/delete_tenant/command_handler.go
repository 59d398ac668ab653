package delete_tenant

import (
	"context"

	"overwatch/internal/domain/model"
	"overwatch/internal/tenant"
	"overwatch/pkg/log"
)

// DeleteTenantHandler handles the DeleteTenantCommand.
type DeleteTenantHandler struct {
	ctx     context.Context
	manager *tenant.Manager
}

// Handle executes the DeleteTenantCommand.
func (h *DeleteTenantHandler) Handle(cmd DeleteTenantCommand) error {
	log.Debug("Processing delete tenant request", "app_id", cmd.AppID, "tenant_id", cmd.TenantID, "keep_data", cmd.KeepData)

	steps, err := h.manager.DeleteTenant(h.ctx, cmd.AppID, cmd.TenantID, cmd.KeepData)
	for _, step := range steps {
		if step.Status == model.StepSkipped {
			log.Warn("Delete step skipped", "app_id", cmd.AppID, "tenant_id", cmd.TenantID, "step", step.Name, "reason", step.Reason)
		}
	}
	if err != nil {
		return log.Errorf("failed to delete tenant %s/%s: %w", cmd.AppID, cmd.TenantID, err)
	}

	log.Info("Successfully deleted tenant", "app_id", cmd.AppID, "tenant_id", cmd.TenantID)
	return nil
}

// NewDeleteTenantHandler creates a new DeleteTenantHandler.
func NewDeleteTenantHandler(ctx context.Context, manager *tenant.Manager) *DeleteTenantHandler {
	return &DeleteTenantHandler{ctx: ctx, manager: manager}
}
