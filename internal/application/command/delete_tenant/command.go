package delete_tenant

// DeleteTenantCommand represents a command to decommission a tenant.
type DeleteTenantCommand struct {
	AppID    string
	TenantID string
	// KeepData leaves the tenant database in place for a later restore.
	KeepData bool
}

// Name returns the name of the command.
func (c DeleteTenantCommand) Name() string {
	return "DeleteTenant"
}
