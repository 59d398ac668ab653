package model

import "time"

// Snapshot is an immutable, tagged point-in-time backup produced by the
// external backup tool. Snapshots are read-only from this system's
// perspective.
type Snapshot struct {
	ID      string    `json:"id"`
	ShortID string    `json:"short_id"`
	Time    time.Time `json:"time"`
	Tags    []string  `json:"tags"`
	Paths   []string  `json:"paths"`
}

// BackupMetadata is the metadata.json record written into every backup set.
// Tenants lists every tenant contained in the set; restore uses it to pick
// the source tenant.
type BackupMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	AppID     string    `json:"appId"`
	Tenants   []string  `json:"tenants"`
	Project   string    `json:"project"`
	Version   int       `json:"version"`
}

// BackupMetadataVersion is the current metadata.json format version.
const BackupMetadataVersion = 1

// RepositoryState classifies the backup repository probe outcome.
type RepositoryState string

const (
	// RepositoryNotInitialized means backup is configured but the
	// repository has not been created yet.
	RepositoryNotInitialized RepositoryState = "not_initialized"
	// RepositoryInitialized means the repository exists and is readable.
	RepositoryInitialized RepositoryState = "initialized"
	// RepositoryLocked means another operation holds the repository lock.
	RepositoryLocked RepositoryState = "locked"
)

// LockInfo is the metadata extracted from the backup tool's free-text
// lock-contention error. It is surfaced so a human can decide whether to
// force-unlock.
type LockInfo struct {
	PID         string `json:"pid"`
	Host        string `json:"host"`
	User        string `json:"user"`
	LockedSince string `json:"locked_since"`
	Age         string `json:"age"`
}

// BackupInfo is the result of probing an app's backup repository.
type BackupInfo struct {
	AppID      string          `json:"app_id"`
	Repository string          `json:"repository"`
	State      RepositoryState `json:"state"`
	Lock       *LockInfo       `json:"lock,omitempty"`
}

// RestoreOptions modifies restoreBackup behavior. CreateNew signals that
// the caller provisioned (or will provision) a fresh tenant as the target;
// it requires NewDomain to be set.
type RestoreOptions struct {
	CreateNew bool
	NewDomain string
}
