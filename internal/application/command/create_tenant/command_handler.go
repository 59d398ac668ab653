package create_tenant

import (
	"context"

	"overwatch/internal/tenant"
	"overwatch/pkg/log"
)

// CreateTenantHandler handles the CreateTenantCommand.
type CreateTenantHandler struct {
	ctx     context.Context
	manager *tenant.Manager
}

// Handle executes the CreateTenantCommand.
func (h *CreateTenantHandler) Handle(cmd CreateTenantCommand) error {
	log.Debug("Processing create tenant request", "app_id", cmd.AppID, "tenant_id", cmd.TenantID)

	created, err := h.manager.CreateTenant(h.ctx, cmd.AppID, cmd.TenantID, cmd.Domain, cmd.ImageTag)
	if err != nil {
		return log.Errorf("failed to create tenant %s/%s: %w", cmd.AppID, cmd.TenantID, err)
	}

	log.Info("Successfully created tenant", "app_id", created.AppID, "tenant_id", created.TenantID, "domain", created.Domain)
	return nil
}

// NewCreateTenantHandler creates a new CreateTenantHandler.
func NewCreateTenantHandler(ctx context.Context, manager *tenant.Manager) *CreateTenantHandler {
	return &CreateTenantHandler{ctx: ctx, manager: manager}
}
