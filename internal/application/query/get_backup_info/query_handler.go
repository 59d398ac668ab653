package get_backup_info

import (
	"context"

	"overwatch/internal/backup"
	"overwatch/pkg/log"
)

// GetBackupInfoQueryHandler handles the GetBackupInfoQuery.
type GetBackupInfoQueryHandler struct {
	ctx         context.Context
	coordinator *backup.Coordinator
}

// Handle executes the GetBackupInfoQuery and returns model.BackupInfo.
func (h *GetBackupInfoQueryHandler) Handle(q GetBackupInfoQuery) (any, error) {
	info, err := h.coordinator.GetBackupInfo(h.ctx, q.AppID)
	if err != nil {
		return nil, log.Errorf("failed to get backup info of app %s: %w", q.AppID, err)
	}
	return info, nil
}

// NewGetBackupInfoQueryHandler creates a new GetBackupInfoQueryHandler.
func NewGetBackupInfoQueryHandler(ctx context.Context, coordinator *backup.Coordinator) *GetBackupInfoQueryHandler {
	return &GetBackupInfoQueryHandler{ctx: ctx, coordinator: coordinator}
}
