package get_fleet_status

import (
	"context"

	"overwatch/internal/fleet"
	"overwatch/pkg/log"
)

// GetFleetStatusQueryHandler handles the GetFleetStatusQuery.
type GetFleetStatusQueryHandler struct {
	ctx       context.Context
	discovery *fleet.Discovery
}

// Handle executes the GetFleetStatusQuery and returns []model.TenantStatus.
func (h *GetFleetStatusQueryHandler) Handle(q GetFleetStatusQuery) (any, error) {
	statuses, err := h.discovery.FleetStatus(h.ctx)
	if err != nil {
		return nil, log.Errorf("failed to get fleet status: %w", err)
	}

	log.Debug("Retrieved fleet status", "tenant_count", len(statuses))
	return statuses, nil
}

// NewGetFleetStatusQueryHandler creates a new GetFleetStatusQueryHandler.
func NewGetFleetStatusQueryHandler(ctx context.Context, discovery *fleet.Discovery) *GetFleetStatusQueryHandler {
	return &GetFleetStatusQueryHandler{ctx: ctx, discovery: discovery}
}
