package get_fleet_status

// GetFleetStatusQuery represents a query for the status of every tenant of
// every registered application.
type GetFleetStatusQuery struct{}

// Name returns the name of the query.
func (q GetFleetStatusQuery) Name() string {
	return "GetFleetStatus"
}
