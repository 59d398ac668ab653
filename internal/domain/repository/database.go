package repository

import "context"

// DatabaseAdapter provisions and moves per-tenant databases. Database names
// are fully resolved by the caller; adapters never derive them.
type DatabaseAdapter interface {
	// CreateDatabase creates a database owned by user with the given
	// password, creating the user if necessary.
	CreateDatabase(ctx context.Context, name, user, password string) error

	// DropDatabase removes the database and its dedicated user.
	DropDatabase(ctx context.Context, name string) error

	// Dump writes a plain-SQL dump of the database to outFile.
	Dump(ctx context.Context, name, outFile string) error

	// Restore replays the dump at dumpFile into the database, replacing
	// its current contents.
	Restore(ctx context.Context, name, dumpFile string) error
}
