package create_tenant

// CreateTenantCommand represents a command to provision a new tenant of an
// application.
type CreateTenantCommand struct {
	AppID    string
	TenantID string
	// Domain overrides the app's domain template when non-empty.
	Domain string
	// ImageTag overrides the app's default image tag when non-empty.
	ImageTag string
}

// Name returns the name of the command.
func (c CreateTenantCommand) Name() string {
	return "CreateTenant"
}
