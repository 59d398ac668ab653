package list_snapshots

// ListSnapshotsQuery represents a query for the snapshots of an app,
// optionally narrowed to one tenant.
type ListSnapshotsQuery struct {
	AppID string
	// TenantID filters by the tenant tag when non-empty.
	TenantID string
}

// Name returns the name of the query.
func (q ListSnapshotsQuery) Name() string {
	return "ListSnapshots"
}
