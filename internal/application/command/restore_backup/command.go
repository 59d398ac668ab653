package restore_backup

import "overwatch/internal/domain/model"

// RestoreBackupCommand represents a command to restore a snapshot into an
// existing tenant, or into a freshly provisioned one.
type RestoreBackupCommand struct {
	AppID      string
	SnapshotID string
	// TenantID is the tenant the snapshot content is restored into.
	TenantID string
	Options  model.RestoreOptions
}

// Name returns the name of the command.
func (c RestoreBackupCommand) Name() string {
	return "RestoreBackup"
}
