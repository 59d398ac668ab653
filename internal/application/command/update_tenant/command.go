package update_tenant

// UpdateTenantCommand represents a command to move a tenant to a new
// application image tag.
type UpdateTenantCommand struct {
	AppID    string
	TenantID string
	ImageTag string
}

// Name returns the name of the command.
func (c UpdateTenantCommand) Name() string {
	return "UpdateTenant"
}
