package query

import (
	"context"

	"overwatch/internal/application/query/get_backup_info"
	"overwatch/internal/application/query/get_fleet_status"
	"overwatch/internal/application/query/get_tenant_status"
	"overwatch/internal/application/query/list_snapshots"
	"overwatch/internal/backup"
	"overwatch/internal/fleet"
	"overwatch/pkg/cqrs"
	"overwatch/pkg/log"
)

// RegisterQueryHandlers wires every query handler onto the bus.
func RegisterQueryHandlers(ctx context.Context, b *cqrs.Bus, discovery *fleet.Discovery, coordinator *backup.Coordinator) error {
	if err := cqrs.RegisterQuery(b, get_fleet_status.NewGetFleetStatusQueryHandler(ctx, discovery)); err != nil {
		return log.Errorf("failed to register get fleet status handler: %w", err)
	}

	if err := cqrs.RegisterQuery(b, get_tenant_status.NewGetTenantStatusQueryHandler(ctx, discovery)); err != nil {
		return log.Errorf("failed to register get tenant status handler: %w", err)
	}

	if err := cqrs.RegisterQuery(b, get_backup_info.NewGetBackupInfoQueryHandler(ctx, coordinator)); err != nil {
		return log.Errorf("failed to register get backup info handler: %w", err)
	}

	if err := cqrs.RegisterQuery(b, list_snapshots.NewListSnapshotsQueryHandler(ctx, coordinator)); err != nil {
		return log.Errorf("failed to register list snapshots handler: %w", err)
	}

	return nil
}
