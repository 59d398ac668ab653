package list_snapshots

import (
	"context"

	"overwatch/internal/backup"
	"overwatch/pkg/log"
)

// ListSnapshotsQueryHandler handles the ListSnapshotsQuery.
type ListSnapshotsQueryHandler struct {
	ctx         context.Context
	coordinator *backup.Coordinator
}

// Handle executes the ListSnapshotsQuery and returns []model.Snapshot.
func (h *ListSnapshotsQueryHandler) Handle(q ListSnapshotsQuery) (any, error) {
	snapshots, err := h.coordinator.ListSnapshots(h.ctx, q.AppID, q.TenantID)
	if err != nil {
		return nil, log.Errorf("failed to list snapshots of app %s: %w", q.AppID, err)
	}

	log.Debug("Retrieved snapshots", "app_id", q.AppID, "count", len(snapshots))
	return snapshots, nil
}

// NewListSnapshotsQueryHandler creates a new ListSnapshotsQueryHandler.
func NewListSnapshotsQueryHandler(ctx context.Context, coordinator *backup.Coordinator) *ListSnapshotsQueryHandler {
	return &ListSnapshotsQueryHandler{ctx: ctx, coordinator: coordinator}
}
