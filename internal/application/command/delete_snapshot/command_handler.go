package delete_snapshot

import (
	"context"

	"overwatch/internal/backup"
	"overwatch/pkg/log"
)

// DeleteSnapshotHandler handles the DeleteSnapshotCommand.
type DeleteSnapshotHandler struct {
	ctx         context.Context
	coordinator *backup.Coordinator
}

// Handle executes the DeleteSnapshotCommand.
func (h *DeleteSnapshotHandler) Handle(cmd DeleteSnapshotCommand) error {
	log.Debug("Processing delete snapshot request", "app_id", cmd.AppID, "snapshot_id", cmd.SnapshotID)

	if cmd.SnapshotID == "" {
		return log.Errorf("snapshot id is required for delete snapshot command")
	}

	if err := h.coordinator.DeleteSnapshot(h.ctx, cmd.AppID, cmd.SnapshotID); err != nil {
		return log.Errorf("failed to delete snapshot %s of app %s: %w", cmd.SnapshotID, cmd.AppID, err)
	}

	log.Info("Successfully deleted snapshot", "app_id", cmd.AppID, "snapshot_id", cmd.SnapshotID)
	return nil
}

// NewDeleteSnapshotHandler creates a new DeleteSnapshotHandler.
func NewDeleteSnapshotHandler(ctx context.Context, coordinator *backup.Coordinator) *DeleteSnapshotHandler {
	return &DeleteSnapshotHandler{ctx: ctx, coordinator: coordinator}
}
