package model

import (
	"fmt"
	"regexp"
	"time"
)

// appIDPattern restricts app identifiers to lowercase-hyphenated slugs.
var appIDPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// App is a declared application definition that tenants instantiate.
type App struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	DomainTemplate  string            `json:"domain_template,omitempty"`
	Registry        RegistryConfig    `json:"registry"`
	Services        []Service         `json:"services"`
	Backup          *BackupConfig     `json:"backup,omitempty"`
	AdminAccess     *AdminAccess      `json:"admin_access,omitempty"`
	Credentials     *CredentialPolicy `json:"credentials,omitempty"`
	DefaultImageTag string            `json:"default_image_tag"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// RegistryConfig identifies where a tenant's images are pulled from.
// Credential exchange against the registry is handled outside this module.
type RegistryConfig struct {
	URL         string `json:"url"`
	ImagePrefix string `json:"image_prefix,omitempty"`
}

// Service is one declared container role within an App.
type Service struct {
	Name          string            `json:"name"`
	Required      bool              `json:"required"`
	InitContainer bool              `json:"is_init_container,omitempty"`
	ImageSuffix   string            `json:"image_suffix,omitempty"`
	Ports         []int             `json:"ports,omitempty"`
	HealthCheck   *HealthCheck      `json:"health_check,omitempty"`
	Backup        *ServiceBackup    `json:"backup,omitempty"`
	EnvMapping    map[string]string `json:"env_mapping,omitempty"`
	DependsOn     []string          `json:"depends_on,omitempty"`
}

// HealthCheckType selects the probe performed by the health monitor.
type HealthCheckType string

const (
	HealthCheckHTTP HealthCheckType = "http"
	HealthCheckTCP  HealthCheckType = "tcp"
)

// HealthCheck declares how a service's liveness is probed.
type HealthCheck struct {
	Type HealthCheckType `json:"type"`
	Port int             `json:"port"`
	Path string          `json:"path,omitempty"`
}

// ServiceBackup declares which container paths are captured in a backup.
// Each path maps a container-internal directory to a subdirectory of the
// backup archive.
type ServiceBackup struct {
	Enabled bool         `json:"enabled"`
	Paths   []BackupPath `json:"paths,omitempty"`
}

// BackupPath maps a container-internal path to an archive subdirectory.
type BackupPath struct {
	ContainerPath string `json:"container_path"`
	ArchiveDir    string `json:"archive_dir"`
}

// BackupConfig holds the per-app backup repository target. The repository
// string handed to the backup tool is derived as s3:{endpoint}/{bucket}.
type BackupConfig struct {
	Endpoint string `json:"endpoint"`
	Bucket   string `json:"bucket"`
}

// AdminAccess declares how operators reach a tenant's admin surface.
// Consumed by the API layer; carried here because it is part of the app
// definition document.
type AdminAccess struct {
	Service string `json:"service"`
	Path    string `json:"path,omitempty"`
}

// CredentialPolicy overrides the generated credential lengths for tenants
// of an app. Zero values fall back to the global defaults.
type CredentialPolicy struct {
	DBPasswordLength int `json:"db_password_length,omitempty"`
	SecretLength     int `json:"secret_length,omitempty"`
}

// ValidateAppID reports whether id is a valid lowercase-hyphenated slug.
func ValidateAppID(id string) error {
	if !appIDPattern.MatchString(id) {
		return fmt.Errorf("%w: app id %q must be a lowercase-hyphenated slug", ErrValidation, id)
	}
	return nil
}

// ServiceByName returns the declared service with the given name.
func (a *App) ServiceByName(name string) (*Service, bool) {
	for i := range a.Services {
		if a.Services[i].Name == name {
			return &a.Services[i], true
		}
	}
	return nil, false
}

// RequiredServices returns the required services excluding init containers.
// These are the services that must have a running container for a tenant to
// be reported healthy.
func (a *App) RequiredServices() []Service {
	var out []Service
	for _, s := range a.Services {
		if s.Required && !s.InitContainer {
			out = append(out, s)
		}
	}
	return out
}

// InitServiceNames returns the names of init-container services. Init
// containers are excluded from running/total counts and from health.
func (a *App) InitServiceNames() map[string]bool {
	names := make(map[string]bool)
	for _, s := range a.Services {
		if s.InitContainer {
			names[s.Name] = true
		}
	}
	return names
}
