package model

import (
	"fmt"
	"regexp"
	"time"
)

// tenantIDPattern matches DNS-label style tenant identifiers: lowercase
// alphanumerics with inner hyphens, no leading or trailing hyphen.
var tenantIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$|^[a-z0-9]$`)

// MaxTenantIDLength bounds tenant identifiers to DNS label length.
const MaxTenantIDLength = 63

// Tenant is one running instance of an App. Identity is the pair
// (AppID, TenantID). A tenant is persisted purely as a directory holding
// its environment file and compose descriptor; the directory's existence
// is the authoritative tenant record.
type Tenant struct {
	AppID     string    `json:"app_id"`
	TenantID  string    `json:"tenant_id"`
	Domain    string    `json:"domain"`
	ImageTag  string    `json:"image_tag"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateTenantID checks the tenant id against the naming rules.
func ValidateTenantID(id string) error {
	if len(id) > MaxTenantIDLength {
		return fmt.Errorf("%w: tenant id %q exceeds %d characters", ErrValidation, id, MaxTenantIDLength)
	}
	if !tenantIDPattern.MatchString(id) {
		return fmt.Errorf("%w: tenant id %q must be lowercase alphanumeric with inner hyphens", ErrValidation, id)
	}
	return nil
}
