package create_backup

// CreateBackupCommand represents a command to take a backup of one tenant
// or of every tenant of an application.
type CreateBackupCommand struct {
	AppID string
	// TenantID limits the backup to one tenant; empty backs up all of them.
	TenantID string
}

// Name returns the name of the command.
func (c CreateBackupCommand) Name() string {
	return "CreateBackup"
}
