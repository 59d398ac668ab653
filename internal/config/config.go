package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	// defaultBasePath is the root directory for tenant directories and
	// persisted state.
	defaultBasePath = "/opt/overwatch"
	// defaultProjectPrefix is the global container-name prefix. Every
	// managed container is named {prefix}-{appId}-{tenantId}-{service}.
	defaultProjectPrefix = "ow"
	// defaultSharedNetwork is the docker network shared by all tenants
	// and injected into every tenant environment file.
	defaultSharedNetwork = "ow-shared"

	tenantsFolder   = "tenants"
	stateFolder     = "state"
	templatesFolder = "templates"

	// Persisted store documents, each guarded by a keyed lock of the
	// same name family.
	appsStateFile      = "apps.json"
	envVarsStateFile   = "env_vars.json"
	overridesStateFile = "tenant_overrides.json"
)

const (
	// TenantEnvFileName is the generated per-tenant environment file. Its
	// presence marks a directory as a tenant record.
	TenantEnvFileName = "tenant.env"
	// SharedEnvFileName is the generated merged environment file consumed
	// by a tenant's containers at start.
	SharedEnvFileName = "shared.env"
)

// Config holds the agent configuration, loaded from a YAML file.
type Config struct {
	// BasePath is the root directory used to store tenant directories and
	// persisted state documents.
	BasePath string `yaml:"base_path"`
	// ProjectPrefix is the global container-name prefix.
	ProjectPrefix string `yaml:"project_prefix"`
	// SharedNetwork is the docker network every tenant joins.
	SharedNetwork string `yaml:"shared_network"`
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	Database    DatabaseConfig     `yaml:"database"`
	Backup      BackupToolConfig   `yaml:"backup"`
	Health      HealthConfig       `yaml:"health"`
	Credentials CredentialDefaults `yaml:"credentials"`
}

// DatabaseConfig describes the shared database server tenants get their
// dedicated databases on.
type DatabaseConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	AdminUser     string `yaml:"admin_user"`
	AdminPassword string `yaml:"admin_password"`
	// Prefix is prepended to every provisioned database name:
	// {prefix}_{appId}_{tenantId}.
	Prefix string `yaml:"prefix"`
}

// BackupToolConfig configures the external content-addressed backup tool.
// Password and the S3 credentials are required for any backup operation;
// their absence is a configuration error reported before the tool is ever
// invoked.
type BackupToolConfig struct {
	// Binary is the backup tool executable, restic by default.
	Binary string `yaml:"binary"`
	// Password unlocks the (already encrypted) repositories.
	Password string `yaml:"password"`
	// AccessKeyID / SecretAccessKey authenticate against the S3 endpoint
	// the per-app repositories live on.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	// Timeout bounds every invocation of the tool, in seconds.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// HealthConfig tunes the health monitor.
type HealthConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	TimeoutSeconds  int `yaml:"timeout_seconds"`
	// ProbeHost is the address health probes connect to; service ports
	// are published on the single managed host.
	ProbeHost string `yaml:"probe_host"`
}

// CredentialDefaults are the global fallback lengths for generated tenant
// credentials, used when an app declares no credential policy.
type CredentialDefaults struct {
	DBPasswordLength int `yaml:"db_password_length"`
	SecretLength     int `yaml:"secret_length"`
}

// prepareConfig applies defaults for unset fields.
func prepareConfig(cfg *Config) {
	if cfg.BasePath == "" {
		cfg.BasePath = defaultBasePath
	}
	if cfg.ProjectPrefix == "" {
		cfg.ProjectPrefix = defaultProjectPrefix
	}
	if cfg.SharedNetwork == "" {
		cfg.SharedNetwork = defaultSharedNetwork
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "127.0.0.1"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.AdminUser == "" {
		cfg.Database.AdminUser = "postgres"
	}
	if cfg.Database.Prefix == "" {
		cfg.Database.Prefix = "ow"
	}
	if cfg.Backup.Binary == "" {
		cfg.Backup.Binary = "restic"
	}
	if cfg.Backup.TimeoutSeconds == 0 {
		cfg.Backup.TimeoutSeconds = 3600
	}
	if cfg.Health.IntervalSeconds == 0 {
		cfg.Health.IntervalSeconds = 30
	}
	if cfg.Health.TimeoutSeconds == 0 {
		cfg.Health.TimeoutSeconds = 5
	}
	if cfg.Health.ProbeHost == "" {
		cfg.Health.ProbeHost = "127.0.0.1"
	}
	if cfg.Credentials.DBPasswordLength == 0 {
		cfg.Credentials.DBPasswordLength = 32
	}
	if cfg.Credentials.SecretLength == 0 {
		cfg.Credentials.SecretLength = 64
	}
}

// LoadConfig reads and parses the YAML configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	prepareConfig(cfg)
	return cfg, nil
}

// GetTenantsPath returns the directory holding per-app tenant directories.
func (c *Config) GetTenantsPath() string {
	return filepath.Join(c.BasePath, tenantsFolder)
}

// GetTenantDir returns the directory of one tenant. Its existence is the
// authoritative tenant record.
func (c *Config) GetTenantDir(appID, tenantID string) string {
	return filepath.Join(c.BasePath, tenantsFolder, appID, tenantID)
}

// GetAppTenantsDir returns the directory holding all tenants of one app.
func (c *Config) GetAppTenantsDir(appID string) string {
	return filepath.Join(c.BasePath, tenantsFolder, appID)
}

// GetAppTemplateDir returns the directory holding an app's pre-authored
// compose project.
func (c *Config) GetAppTemplateDir(appID string) string {
	return filepath.Join(c.BasePath, templatesFolder, appID)
}

// GetStatePath returns the directory holding the persisted JSON stores.
func (c *Config) GetStatePath() string {
	return filepath.Join(c.BasePath, stateFolder)
}

// GetAppsStateFile returns the path of the app registry document.
func (c *Config) GetAppsStateFile() string {
	return filepath.Join(c.GetStatePath(), appsStateFile)
}

// GetEnvVarsStateFile returns the path of the global env-var document.
func (c *Config) GetEnvVarsStateFile() string {
	return filepath.Join(c.GetStatePath(), envVarsStateFile)
}

// GetOverridesStateFile returns the path of the tenant-override document.
func (c *Config) GetOverridesStateFile() string {
	return filepath.Join(c.GetStatePath(), overridesStateFile)
}

// HealthInterval returns the polling interval as a duration.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.Health.IntervalSeconds) * time.Second
}

// HealthTimeout returns the per-probe timeout as a duration.
func (c *Config) HealthTimeout() time.Duration {
	return time.Duration(c.Health.TimeoutSeconds) * time.Second
}

// BackupTimeout returns the backup tool invocation timeout as a duration.
func (c *Config) BackupTimeout() time.Duration {
	return time.Duration(c.Backup.TimeoutSeconds) * time.Second
}
