package get_tenant_status

import (
	"context"

	"overwatch/internal/fleet"
	"overwatch/pkg/log"
)

// GetTenantStatusQueryHandler handles the GetTenantStatusQuery.
type GetTenantStatusQueryHandler struct {
	ctx       context.Context
	discovery *fleet.Discovery
}

// Handle executes the GetTenantStatusQuery and returns model.TenantStatus.
func (h *GetTenantStatusQueryHandler) Handle(q GetTenantStatusQuery) (any, error) {
	status, err := h.discovery.TenantStatus(h.ctx, q.AppID, q.TenantID)
	if err != nil {
		return nil, log.Errorf("failed to get status of tenant %s/%s: %w", q.AppID, q.TenantID, err)
	}
	return status, nil
}

// NewGetTenantStatusQueryHandler creates a new GetTenantStatusQueryHandler.
func NewGetTenantStatusQueryHandler(ctx context.Context, discovery *fleet.Discovery) *GetTenantStatusQueryHandler {
	return &GetTenantStatusQueryHandler{ctx: ctx, discovery: discovery}
}
