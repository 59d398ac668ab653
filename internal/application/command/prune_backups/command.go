package prune_backups

// PruneBackupsCommand represents a command to apply a retention policy to
// an app's backup repository. At least one keep count must be positive.
type PruneBackupsCommand struct {
	AppID       string
	KeepDaily   int
	KeepWeekly  int
	KeepMonthly int
}

// Name returns the name of the command.
func (c PruneBackupsCommand) Name() string {
	return "PruneBackups"
}
