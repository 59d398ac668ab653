package fleet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"overwatch/internal/domain/model"
)

func TestNamerEncode(t *testing.T) {
	n := NewNamer("ow")

	assert.Equal(t, "ow-blog-acme-web", n.Encode("blog", "acme", "web", ""))
	assert.Equal(t, "ow-blog-acme-web-2", n.Encode("blog", "acme", "web", "2"))
	assert.Equal(t, "ow-blog-acme-corp-db", n.Encode("blog", "acme-corp", "db", ""))
}

func TestNamerParse(t *testing.T) {
	n := NewNamer("ow")
	knownApps := []string{"blog", "shop", "shop-pro"}

	tests := []struct {
		name      string
		container string
		want      model.ParsedName
		ok        bool
	}{
		{
			name:      "simple name",
			container: "ow-blog-acme-web",
			want:      model.ParsedName{AppID: "blog", TenantID: "acme", Service: "web"},
			ok:        true,
		},
		{
			name:      "hyphenated tenant id",
			container: "ow-blog-acme-corp-web",
			want:      model.ParsedName{AppID: "blog", TenantID: "acme-corp", Service: "web"},
			ok:        true,
		},
		{
			name:      "replica suffix stripped",
			container: "ow-blog-acme-web-2",
			want:      model.ParsedName{AppID: "blog", TenantID: "acme", Service: "web", Replica: "2"},
			ok:        true,
		},
		{
			name:      "numeric service survives when stripping would leave too little",
			container: "ow-blog-acme-42",
			want:      model.ParsedName{AppID: "blog", TenantID: "acme", Service: "42"},
			ok:        true,
		},
		{
			name:      "longest app id wins",
			container: "ow-shop-pro-acme-web",
			want:      model.ParsedName{AppID: "shop-pro", TenantID: "acme", Service: "web"},
			ok:        true,
		},
		{
			name:      "shorter app id still matches its own names",
			container: "ow-shop-acme-web",
			want:      model.ParsedName{AppID: "shop", TenantID: "acme", Service: "web"},
			ok:        true,
		},
		{
			name:      "wrong prefix excluded",
			container: "other-blog-acme-web",
			ok:        false,
		},
		{
			name:      "unknown app excluded",
			container: "ow-wiki-acme-web",
			ok:        false,
		},
		{
			name:      "app id only, no tenant or service",
			container: "ow-blog",
			ok:        false,
		},
		{
			name:      "missing service segment",
			container: "ow-blog-acme",
			ok:        false,
		},
		{
			name:      "bare prefix",
			container: "ow-",
			ok:        false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := n.Parse(tc.container, knownApps)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestNamerParseRoundTrip(t *testing.T) {
	n := NewNamer("ow")
	knownApps := []string{"blog"}

	for _, tc := range []struct {
		appID, tenantID, service, replica string
	}{
		{"blog", "acme", "web", ""},
		{"blog", "acme", "web", "3"},
		{"blog", "acme-corp-eu", "db", ""},
		{"blog", "a", "b", "10"},
	} {
		name := n.Encode(tc.appID, tc.tenantID, tc.service, tc.replica)
		got, ok := n.Parse(name, knownApps)
		assert.True(t, ok, name)
		assert.Equal(t, tc.appID, got.AppID, name)
		assert.Equal(t, tc.tenantID, got.TenantID, name)
		assert.Equal(t, tc.service, got.Service, name)
		assert.Equal(t, tc.replica, got.Replica, name)
	}
}
