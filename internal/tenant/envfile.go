package tenant

import (
	"fmt"
	"regexp"
	"strings"
)

// EnvFile is the generated per-tenant environment file: line-oriented
// KEY=VALUE pairs, #-prefixed comments, no quoting. It embeds every
// resolved identifier a tenant's compose project needs, including the real
// database name, which deletion later reads back instead of reconstructing.
type EnvFile struct {
	AppID         string
	TenantID      string
	TenantDomain  string
	ImageRegistry string
	ImageTag      string
	ProjectPrefix string
	DBHost        string
	DBPort        int
	DBName        string
	DBUser        string
	DBPassword    string
	JWTSecret     string
	SharedNetwork string
}

// Render produces the file content. Key order is fixed so rendering is
// deterministic.
func (e EnvFile) Render() string {
	var b strings.Builder
	b.WriteString("# Tenant environment generated by overwatch.\n")
	fmt.Fprintf(&b, "APP_ID=%s\n", e.AppID)
	fmt.Fprintf(&b, "TENANT_ID=%s\n", e.TenantID)
	fmt.Fprintf(&b, "TENANT_DOMAIN=%s\n", e.TenantDomain)
	fmt.Fprintf(&b, "IMAGE_REGISTRY=%s\n", e.ImageRegistry)
	fmt.Fprintf(&b, "IMAGE_TAG=%s\n", e.ImageTag)
	fmt.Fprintf(&b, "PROJECT_PREFIX=%s\n", e.ProjectPrefix)
	fmt.Fprintf(&b, "DB_HOST=%s\n", e.DBHost)
	fmt.Fprintf(&b, "DB_PORT=%d\n", e.DBPort)
	fmt.Fprintf(&b, "DB_NAME=%s\n", e.DBName)
	fmt.Fprintf(&b, "DB_USER=%s\n", e.DBUser)
	fmt.Fprintf(&b, "DB_PASSWORD=%s\n", e.DBPassword)
	fmt.Fprintf(&b, "JWT_SECRET=%s\n", e.JWTSecret)
	fmt.Fprintf(&b, "SHARED_NETWORK=%s\n", e.SharedNetwork)
	return b.String()
}

// ParseEnvFile decodes line-oriented KEY=VALUE content. Comment and blank
// lines are skipped; values are taken verbatim after the first '='.
func ParseEnvFile(content string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[key] = value
	}
	return out
}

// ReplaceEnvValue substitutes the value of one key in place, preserving
// every other line byte for byte. The key must already be present.
func ReplaceEnvValue(content, key, newValue string) (string, error) {
	re, err := regexp.Compile(`(?m)^` + regexp.QuoteMeta(key) + `=.*$`)
	if err != nil {
		return "", err
	}
	if !re.MatchString(content) {
		return "", fmt.Errorf("key %s not present in environment file", key)
	}
	return re.ReplaceAllLiteralString(content, key+"="+newValue), nil
}
