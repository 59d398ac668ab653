package update_tenant

import (
	"context"

	"overwatch/internal/tenant"
	"overwatch/pkg/log"
)

// UpdateTenantHandler handles the UpdateTenantCommand.
type UpdateTenantHandler struct {
	ctx     context.Context
	manager *tenant.Manager
}

// Handle executes the UpdateTenantCommand.
func (h *UpdateTenantHandler) Handle(cmd UpdateTenantCommand) error {
	log.Debug("Processing update tenant request", "app_id", cmd.AppID, "tenant_id", cmd.TenantID, "image_tag", cmd.ImageTag)

	if cmd.ImageTag == "" {
		return log.Errorf("image tag is required for update tenant command")
	}

	if err := h.manager.UpdateTenant(h.ctx, cmd.AppID, cmd.TenantID, cmd.ImageTag); err != nil {
		return log.Errorf("failed to update tenant %s/%s: %w", cmd.AppID, cmd.TenantID, err)
	}

	log.Info("Successfully updated tenant", "app_id", cmd.AppID, "tenant_id", cmd.TenantID, "image_tag", cmd.ImageTag)
	return nil
}

// NewUpdateTenantHandler creates a new UpdateTenantHandler.
func NewUpdateTenantHandler(ctx context.Context, manager *tenant.Manager) *UpdateTenantHandler {
	return &UpdateTenantHandler{ctx: ctx, manager: manager}
}
