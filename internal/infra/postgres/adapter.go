// Package postgres implements the database adapter port by shelling out
// to the PostgreSQL client tools (psql, pg_dump). Arguments are passed
// directly to the process, never through a shell; identifiers are
// validated before interpolation into SQL.
package postgres

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"overwatch/internal/config"
	"overwatch/internal/domain/model"
	"overwatch/pkg/log"
)

// identPattern is the allow-list for database and role names. The
// lifecycle manager only derives names from validated app/tenant ids, but
// restore reads names out of tenant environment files, so the adapter
// re-checks.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// commandTimeout bounds every client-tool invocation. Dumps of large
// tenants dominate.
const commandTimeout = 30 * time.Minute

// Adapter provisions per-tenant databases on the shared server.
type Adapter struct {
	cfg config.DatabaseConfig
}

// NewAdapter creates an Adapter for the configured database server.
func NewAdapter(cfg config.DatabaseConfig) *Adapter {
	return &Adapter{cfg: cfg}
}

// CreateDatabase creates a role with the given password and a database
// owned by it.
func (a *Adapter) CreateDatabase(ctx context.Context, name, user, password string) error {
	if err := validateIdent(name); err != nil {
		return err
	}
	if err := validateIdent(user); err != nil {
		return err
	}

	// Generated passwords are alphanumeric; escape anyway in case an
	// operator-supplied one sneaks in.
	escaped := strings.ReplaceAll(password, "'", "''")
	if err := a.psql(ctx, "postgres", fmt.Sprintf("CREATE USER %s WITH PASSWORD '%s'", user, escaped)); err != nil {
		return fmt.Errorf("failed to create role %s: %w", user, err)
	}
	if err := a.psql(ctx, "postgres", fmt.Sprintf("CREATE DATABASE %s OWNER %s", name, user)); err != nil {
		// Leave no orphaned role behind.
		if dropErr := a.psql(ctx, "postgres", "DROP USER IF EXISTS "+user); dropErr != nil {
			log.Warn("Could not drop role after failed database creation", "role", user, "error", dropErr)
		}
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return nil
}

// DropDatabase removes the database and its owning role of the same name.
func (a *Adapter) DropDatabase(ctx context.Context, name string) error {
	if err := validateIdent(name); err != nil {
		return err
	}
	if err := a.psql(ctx, "postgres", fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", name)); err != nil {
		return fmt.Errorf("failed to drop database %s: %w", name, err)
	}
	if err := a.psql(ctx, "postgres", "DROP USER IF EXISTS "+name); err != nil {
		return fmt.Errorf("failed to drop role %s: %w", name, err)
	}
	return nil
}

// Dump writes a plain-SQL dump of the database to outFile.
func (a *Adapter) Dump(ctx context.Context, name, outFile string) error {
	if err := validateIdent(name); err != nil {
		return err
	}
	args := append(a.connArgs(), "--no-owner", "--clean", "--if-exists", "-f", outFile, name)
	return a.run(ctx, "pg_dump", args...)
}

// Restore replays the dump at dumpFile into the database. The dump's
// --clean statements drop existing objects first.
func (a *Adapter) Restore(ctx context.Context, name, dumpFile string) error {
	if err := validateIdent(name); err != nil {
		return err
	}
	if _, err := os.Stat(dumpFile); err != nil {
		return fmt.Errorf("%w: dump file %s", model.ErrNotFound, dumpFile)
	}
	args := append(a.connArgs(), "-d", name, "-v", "ON_ERROR_STOP=1", "-f", dumpFile)
	return a.run(ctx, "psql", args...)
}

// psql executes a single SQL statement against the given database.
func (a *Adapter) psql(ctx context.Context, database, statement string) error {
	args := append(a.connArgs(), "-d", database, "-v", "ON_ERROR_STOP=1", "-c", statement)
	return a.run(ctx, "psql", args...)
}

func (a *Adapter) connArgs() []string {
	return []string{
		"-h", a.cfg.Host,
		"-p", strconv.Itoa(a.cfg.Port),
		"-U", a.cfg.AdminUser,
	}
}

func (a *Adapter) run(ctx context.Context, binary string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+a.cfg.AdminPassword)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Error("database command failed", "binary", binary, "error", err, "output", string(output))
		return fmt.Errorf("%s failed: %w: %s", binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func validateIdent(name string) error {
	if !identPattern.MatchString(name) || len(name) > 63 {
		return fmt.Errorf("%w: %q is not a valid database identifier", model.ErrValidation, name)
	}
	return nil
}
