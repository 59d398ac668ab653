package get_tenant_status

// GetTenantStatusQuery represents a query for the status of one tenant.
type GetTenantStatusQuery struct {
	AppID    string
	TenantID string
}

// Name returns the name of the query.
func (q GetTenantStatusQuery) Name() string {
	return "GetTenantStatus"
}
