package get_backup_info

// GetBackupInfoQuery represents a query for the state of an app's backup
// repository.
type GetBackupInfoQuery struct {
	AppID string
}

// Name returns the name of the query.
func (q GetBackupInfoQuery) Name() string {
	return "GetBackupInfo"
}
