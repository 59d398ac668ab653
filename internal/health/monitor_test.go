package health

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overwatch/internal/config"
	"overwatch/internal/domain/model"
	"overwatch/internal/fleet"
	"overwatch/internal/infra/store"
	"overwatch/pkg/keyedlock"
)

type fakeRuntime struct {
	containers []model.Container
	listCalls  atomic.Int32
	// gate, when non-nil, blocks ListContainers until closed.
	gate chan struct{}
}

func (f *fakeRuntime) ListContainers(ctx context.Context, namePrefix string) ([]model.Container, error) {
	f.listCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.containers, nil
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

func newMonitorFixture(t *testing.T, check *model.HealthCheck, runtime *fakeRuntime) *Monitor {
	t.Helper()
	cfg := &config.Config{
		BasePath:      t.TempDir(),
		ProjectPrefix: "ow",
		Health:        config.HealthConfig{IntervalSeconds: 30, TimeoutSeconds: 2, ProbeHost: "127.0.0.1"},
	}

	apps := store.NewAppStore(cfg.GetAppsStateFile(), keyedlock.New())
	require.NoError(t, apps.Create(context.Background(), model.App{
		ID:   "blog",
		Name: "Blog",
		Services: []model.Service{
			{Name: "web", Required: true, HealthCheck: check},
			{Name: "worker"},
		},
	}))

	return NewMonitor(cfg, apps, runtime, fleet.NewNamer("ow"))
}

// serverPort extracts the port an httptest server listens on.
func serverPort(t *testing.T, ts *httptest.Server) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(ts.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

func TestRunPassHTTPHealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	runtime := &fakeRuntime{containers: []model.Container{
		{Name: "ow-blog-acme-web", State: "running"},
	}}
	m := newMonitorFixture(t, &model.HealthCheck{Type: model.HealthCheckHTTP, Port: serverPort(t, ts), Path: "/healthz"}, runtime)

	m.RunPass(context.Background())

	states := m.States()
	require.Len(t, states, 1)
	assert.Equal(t, model.HealthStateHealthy, states[0].State)
	assert.Zero(t, states[0].ConsecutiveFailures)

	select {
	case event := <-m.Events():
		assert.Equal(t, model.HealthStateUnknown, event.From)
		assert.Equal(t, model.HealthStateHealthy, event.To)
		assert.Equal(t, "acme", event.TenantID)
		assert.NotEmpty(t, event.ID)
	default:
		t.Fatal("expected a transition event")
	}
}

func TestRunPassHTTPRedirectCountsHealthy(t *testing.T) {
	// The redirect target is unreachable on purpose: the probe must judge
	// the 302 itself, not chase it.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "http://127.0.0.1:1/unreachable")
		w.WriteHeader(http.StatusFound)
	}))
	defer ts.Close()

	runtime := &fakeRuntime{containers: []model.Container{{Name: "ow-blog-acme-web", State: "running"}}}
	m := newMonitorFixture(t, &model.HealthCheck{Type: model.HealthCheckHTTP, Port: serverPort(t, ts)}, runtime)

	m.RunPass(context.Background())

	states := m.States()
	require.Len(t, states, 1)
	assert.Equal(t, model.HealthStateHealthy, states[0].State)
}

func TestRunPassConsecutiveFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	runtime := &fakeRuntime{containers: []model.Container{{Name: "ow-blog-acme-web", State: "running"}}}
	m := newMonitorFixture(t, &model.HealthCheck{Type: model.HealthCheckHTTP, Port: serverPort(t, ts)}, runtime)

	m.RunPass(context.Background())
	m.RunPass(context.Background())
	m.RunPass(context.Background())

	states := m.States()
	require.Len(t, states, 1)
	assert.Equal(t, model.HealthStateUnhealthy, states[0].State)
	assert.Equal(t, 3, states[0].ConsecutiveFailures)

	// Three failing passes, one transition: steady state is silent.
	var events int
	for {
		select {
		case <-m.Events():
			events++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 1, events)
}

func TestRunPassRecoveryEmitsTransition(t *testing.T) {
	healthy := atomic.Bool{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer ts.Close()

	runtime := &fakeRuntime{containers: []model.Container{{Name: "ow-blog-acme-web", State: "running"}}}
	m := newMonitorFixture(t, &model.HealthCheck{Type: model.HealthCheckHTTP, Port: serverPort(t, ts)}, runtime)

	m.RunPass(context.Background())
	healthy.Store(true)
	m.RunPass(context.Background())

	<-m.Events() // unknown -> unhealthy
	event := <-m.Events()
	assert.Equal(t, model.HealthStateUnhealthy, event.From)
	assert.Equal(t, model.HealthStateHealthy, event.To)

	states := m.States()
	require.Len(t, states, 1)
	assert.Zero(t, states[0].ConsecutiveFailures, "recovery resets the failure count")
}

func TestRunPassTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	runtime := &fakeRuntime{containers: []model.Container{{Name: "ow-blog-acme-web", State: "running"}}}
	m := newMonitorFixture(t, &model.HealthCheck{Type: model.HealthCheckTCP, Port: port}, runtime)

	m.RunPass(context.Background())

	states := m.States()
	require.Len(t, states, 1)
	assert.Equal(t, model.HealthStateHealthy, states[0].State)
}

func TestRunPassSkipsNonRunningAndUncheckedContainers(t *testing.T) {
	runtime := &fakeRuntime{containers: []model.Container{
		{Name: "ow-blog-acme-web", State: "exited"},
		{Name: "ow-blog-acme-worker", State: "running"}, // no health check declared
		{Name: "ow-wiki-acme-web", State: "running"},    // unknown app
	}}
	m := newMonitorFixture(t, &model.HealthCheck{Type: model.HealthCheckTCP, Port: 1}, runtime)

	m.RunPass(context.Background())

	assert.Empty(t, m.States())
}

func TestRunPassOverlapIsSkipped(t *testing.T) {
	gate := make(chan struct{})
	runtime := &fakeRuntime{gate: gate}
	m := newMonitorFixture(t, &model.HealthCheck{Type: model.HealthCheckTCP, Port: 1}, runtime)

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.RunPass(context.Background())
	}()

	// Wait until the first pass is inside ListContainers, then fire a
	// second pass. It must bail out without touching the runtime.
	require.Eventually(t, func() bool { return runtime.listCalls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	m.RunPass(context.Background())
	assert.Equal(t, int32(1), runtime.listCalls.Load(), "overlapping pass must be skipped, not queued")

	close(gate)
	<-done
}
