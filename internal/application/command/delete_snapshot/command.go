package delete_snapshot

// DeleteSnapshotCommand represents a command to forget a snapshot and prune
// the data only it referenced.
type DeleteSnapshotCommand struct {
	AppID      string
	SnapshotID string
}

// Name returns the name of the command.
func (c DeleteSnapshotCommand) Name() string {
	return "DeleteSnapshot"
}
