package prune_backups

import (
	"context"

	"overwatch/internal/backup"
	"overwatch/pkg/log"
)

// PruneBackupsHandler handles the PruneBackupsCommand.
type PruneBackupsHandler struct {
	ctx         context.Context
	coordinator *backup.Coordinator
}

// Handle executes the PruneBackupsCommand.
func (h *PruneBackupsHandler) Handle(cmd PruneBackupsCommand) error {
	log.Debug("Processing prune backups request",
		"app_id", cmd.AppID, "keep_daily", cmd.KeepDaily, "keep_weekly", cmd.KeepWeekly, "keep_monthly", cmd.KeepMonthly)

	if err := h.coordinator.PruneBackups(h.ctx, cmd.AppID, cmd.KeepDaily, cmd.KeepWeekly, cmd.KeepMonthly); err != nil {
		return log.Errorf("failed to prune backups of app %s: %w", cmd.AppID, err)
	}

	log.Info("Successfully pruned backups", "app_id", cmd.AppID)
	return nil
}

// NewPruneBackupsHandler creates a new PruneBackupsHandler.
func NewPruneBackupsHandler(ctx context.Context, coordinator *backup.Coordinator) *PruneBackupsHandler {
	return &PruneBackupsHandler{ctx: ctx, coordinator: coordinator}
}
