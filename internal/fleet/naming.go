// Package fleet reconstructs structured tenant identity from container
// names and aggregates per-tenant status from the container runtime.
package fleet

import (
	"fmt"
	"sort"
	"strings"

	"overwatch/internal/domain/model"
)

// Namer encodes and decodes the container naming grammar
// {prefix}-{appId}-{tenantId}-{service}(-{replica})?. Container names are
// the only source of truth for which containers belong to which tenant.
type Namer struct {
	Prefix string
}

// NewNamer creates a Namer for the global container-name prefix.
func NewNamer(prefix string) Namer {
	return Namer{Prefix: prefix}
}

// Encode builds the container name for the given identity tuple. replica
// is appended only when non-empty and must be purely numeric.
func (n Namer) Encode(appID, tenantID, service, replica string) string {
	name := fmt.Sprintf("%s-%s-%s-%s", n.Prefix, appID, tenantID, service)
	if replica != "" {
		name += "-" + replica
	}
	return name
}

// Parse recovers the identity tuple from a container name, resolving the
// app id against knownAppIDs. Tenant ids may contain hyphens, so a naive
// split is ambiguous; the app id is matched longest-first, and everything
// between the app id and the final service segment is the tenant id.
//
// A trailing numeric segment is treated as a replica index only if
// stripping it still leaves room for both a tenant id and a service after
// the app id, which lets single-segment tenant ids survive.
//
// Names that do not carry the prefix or do not match any known app id are
// reported as unmatched, never as an error: apps not yet loaded are the
// common cause and must not surface as orphans.
func (n Namer) Parse(name string, knownAppIDs []string) (model.ParsedName, bool) {
	rest, ok := strings.CutPrefix(name, n.Prefix+"-")
	if !ok {
		return model.ParsedName{}, false
	}

	// Longest id first, so an app id that is a prefix of another cannot
	// shadow the longer match.
	ids := make([]string, len(knownAppIDs))
	copy(ids, knownAppIDs)
	sort.Slice(ids, func(i, j int) bool { return len(ids[i]) > len(ids[j]) })

	for _, appID := range ids {
		tail, ok := strings.CutPrefix(rest, appID+"-")
		if !ok {
			continue
		}

		segments := strings.Split(tail, "-")
		// tail must hold at least tenant id and service.
		if len(segments) < 2 {
			continue
		}

		replica := ""
		if len(segments) >= 3 && isDigits(segments[len(segments)-1]) {
			replica = segments[len(segments)-1]
			segments = segments[:len(segments)-1]
		}

		service := segments[len(segments)-1]
		tenantID := strings.Join(segments[:len(segments)-1], "-")
		if tenantID == "" || service == "" {
			continue
		}

		return model.ParsedName{
			AppID:    appID,
			TenantID: tenantID,
			Service:  service,
			Replica:  replica,
		}, true
	}

	return model.ParsedName{}, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
