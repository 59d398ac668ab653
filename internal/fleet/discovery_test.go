package fleet

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overwatch/internal/domain/model"
	"overwatch/internal/infra/store"
	"overwatch/pkg/keyedlock"
)

type fakeRuntime struct {
	containers []model.Container
}

func (f *fakeRuntime) ListContainers(ctx context.Context, namePrefix string) ([]model.Container, error) {
	var out []model.Container
	for _, c := range f.containers {
		if strings.HasPrefix(c.Name, namePrefix) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRuntime) ComposeUp(ctx context.Context, dir string) error         { return nil }
func (f *fakeRuntime) ComposeDown(ctx context.Context, dir string) error       { return nil }
func (f *fakeRuntime) ComposePull(ctx context.Context, dir string) error       { return nil }
func (f *fakeRuntime) ComposeUpRecreate(ctx context.Context, dir string) error { return nil }
func (f *fakeRuntime) CopyFromContainer(ctx context.Context, containerName, srcPath, dstDir string) error {
	return nil
}
func (f *fakeRuntime) CopyToContainer(ctx context.Context, containerName, srcPath, dstPath string) error {
	return nil
}

func newTestAppStore(t *testing.T) *store.AppStore {
	t.Helper()
	return store.NewAppStore(filepath.Join(t.TempDir(), "apps.json"), keyedlock.New())
}

func blogApp() model.App {
	return model.App{
		ID:   "blog",
		Name: "Blog",
		Services: []model.Service{
			{Name: "web", Required: true},
			{Name: "db", Required: true},
			{Name: "worker"},
			{Name: "migrate", Required: true, InitContainer: true},
		},
	}
}

func TestFleetStatusAggregation(t *testing.T) {
	ctx := context.Background()
	apps := newTestAppStore(t)
	require.NoError(t, apps.Create(ctx, blogApp()))

	runtime := &fakeRuntime{containers: []model.Container{
		{Name: "ow-blog-acme-web", State: "running"},
		{Name: "ow-blog-acme-db", State: "running"},
		{Name: "ow-blog-acme-worker", State: "exited"},
		{Name: "ow-blog-acme-migrate", State: "exited"},
		{Name: "ow-blog-globex-web", State: "running"},
		{Name: "ow-blog-globex-db", State: "exited"},
		{Name: "ow-unrelated-thing", State: "running"},
	}}

	d := NewDiscovery(runtime, apps, NewNamer("ow"))
	statuses, err := d.FleetStatus(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	acme := statuses[0]
	assert.Equal(t, "blog", acme.AppID)
	assert.Equal(t, "acme", acme.TenantID)
	assert.True(t, acme.Healthy, "all required services running")
	// Init containers are excluded from the counts.
	assert.Equal(t, 3, acme.TotalContainers)
	assert.Equal(t, 2, acme.RunningContainers)

	globex := statuses[1]
	assert.Equal(t, "globex", globex.TenantID)
	assert.False(t, globex.Healthy, "required db service is not running")
	assert.Equal(t, 2, globex.TotalContainers)
	assert.Equal(t, 1, globex.RunningContainers)
}

func TestFleetStatusHyphenatedTenant(t *testing.T) {
	ctx := context.Background()
	apps := newTestAppStore(t)
	require.NoError(t, apps.Create(ctx, blogApp()))

	runtime := &fakeRuntime{containers: []model.Container{
		{Name: "ow-blog-acme-corp-eu-web", State: "running"},
		{Name: "ow-blog-acme-corp-eu-db", State: "running"},
		{Name: "ow-blog-acme-corp-eu-web-2", State: "running"},
	}}

	d := NewDiscovery(runtime, apps, NewNamer("ow"))
	statuses, err := d.FleetStatus(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)

	st := statuses[0]
	assert.Equal(t, "acme-corp-eu", st.TenantID)
	assert.True(t, st.Healthy)
	assert.Equal(t, 3, st.TotalContainers)
}

func TestTenantStatusNoContainers(t *testing.T) {
	ctx := context.Background()
	apps := newTestAppStore(t)
	require.NoError(t, apps.Create(ctx, blogApp()))

	d := NewDiscovery(&fakeRuntime{}, apps, NewNamer("ow"))
	st, err := d.TenantStatus(ctx, "blog", "ghost")
	require.NoError(t, err)

	assert.Equal(t, "ghost", st.TenantID)
	assert.False(t, st.Healthy)
	assert.Zero(t, st.TotalContainers)
}

func TestTenantStatusUnknownApp(t *testing.T) {
	ctx := context.Background()
	apps := newTestAppStore(t)

	d := NewDiscovery(&fakeRuntime{}, apps, NewNamer("ow"))
	_, err := d.TenantStatus(ctx, "missing", "acme")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
