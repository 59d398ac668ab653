// Package health polls managed containers and classifies their liveness.
// It only observes and republishes transitions; thresholds and alerting
// belong to consumers.
package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"overwatch/internal/config"
	"overwatch/internal/domain/model"
	"overwatch/internal/domain/repository"
	"overwatch/internal/fleet"
	"overwatch/internal/infra/store"
	"overwatch/pkg/log"
)

// Monitor probes every managed, health-checked service on a timer. Probe
// state is owned by the instance, so independent monitors (e.g. in tests)
// never interfere.
type Monitor struct {
	cfg     *config.Config
	apps    *store.AppStore
	runtime repository.ContainerRuntime
	namer   fleet.Namer

	mu     sync.Mutex
	states map[string]*model.HealthState

	events chan model.HealthTransition

	// inFlight is the re-entrancy guard: a pass still running when the
	// next tick fires causes that tick to be skipped entirely, not
	// queued. A boolean is sufficient because probing is read-only and
	// idempotent.
	inFlight atomic.Bool

	httpClient *http.Client
}

// NewMonitor creates a Monitor over the given runtime and app registry.
func NewMonitor(cfg *config.Config, apps *store.AppStore, runtime repository.ContainerRuntime, namer fleet.Namer) *Monitor {
	return &Monitor{
		cfg:     cfg,
		apps:    apps,
		runtime: runtime,
		namer:   namer,
		states:  make(map[string]*model.HealthState),
		events:  make(chan model.HealthTransition, 128),
		httpClient: &http.Client{
			Timeout: cfg.HealthTimeout(),
			// A redirect response is a verdict in itself; following it
			// would report the target's health instead of the probed
			// container's.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Events returns the channel transition events are published on. Events
// are dropped, with a warning, if the consumer falls behind.
func (m *Monitor) Events() <-chan model.HealthTransition {
	return m.events
}

// Start runs the polling loop until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.HealthInterval())
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.RunPass(ctx)
			}
		}
	}()
	log.Info("Health monitor started", "interval", m.cfg.HealthInterval().String())
}

// RunPass executes one polling pass. Overlapping invocations are skipped.
// The set of managed apps and services is re-derived on every pass, so
// newly added apps are picked up without a restart.
func (m *Monitor) RunPass(ctx context.Context) {
	if !m.inFlight.CompareAndSwap(false, true) {
		log.Debug("Skipping health pass, previous pass still running")
		return
	}
	defer m.inFlight.Store(false)

	apps, err := m.apps.List(ctx)
	if err != nil {
		log.Warn("Health pass could not load app registry", "error", err)
		return
	}
	appsByID := make(map[string]*model.App, len(apps))
	ids := make([]string, 0, len(apps))
	for i := range apps {
		appsByID[apps[i].ID] = &apps[i]
		ids = append(ids, apps[i].ID)
	}

	containers, err := m.runtime.ListContainers(ctx, m.namer.Prefix+"-")
	if err != nil {
		log.Warn("Health pass could not list containers", "error", err)
		return
	}

	for _, c := range containers {
		if !c.Running() {
			continue
		}
		parsed, ok := m.namer.Parse(c.Name, ids)
		if !ok {
			continue
		}
		app := appsByID[parsed.AppID]
		svc, ok := app.ServiceByName(parsed.Service)
		if !ok || svc.HealthCheck == nil {
			continue
		}

		healthy := m.probe(ctx, svc.HealthCheck)
		m.record(c.Name, parsed, healthy)
	}
}

// probe performs one HTTP or TCP liveness check under the configured
// timeout. Any error or timeout is a failure.
func (m *Monitor) probe(ctx context.Context, check *model.HealthCheck) bool {
	switch check.Type {
	case model.HealthCheckHTTP:
		url := fmt.Sprintf("http://%s:%d%s", m.cfg.Health.ProbeHost, check.Port, check.Path)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false
		}
		resp, err := m.httpClient.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode >= 200 && resp.StatusCode < 400
	case model.HealthCheckTCP:
		addr := fmt.Sprintf("%s:%d", m.cfg.Health.ProbeHost, check.Port)
		conn, err := net.DialTimeout("tcp", addr, m.cfg.HealthTimeout())
		if err != nil {
			return false
		}
		conn.Close()
		return true
	default:
		return false
	}
}

// record updates the per-container state and emits an event if and only
// if the classification changed.
func (m *Monitor) record(containerName string, parsed model.ParsedName, healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[containerName]
	if !ok {
		st = &model.HealthState{
			AppID:    parsed.AppID,
			TenantID: parsed.TenantID,
			Service:  parsed.Service,
			State:    model.HealthStateUnknown,
		}
		m.states[containerName] = st
	}

	previous := st.State
	st.LastCheck = time.Now().UTC()
	if healthy {
		st.State = model.HealthStateHealthy
		st.ConsecutiveFailures = 0
	} else {
		st.State = model.HealthStateUnhealthy
		st.ConsecutiveFailures++
	}

	if st.State == previous {
		return
	}

	event := model.HealthTransition{
		ID:            uuid.NewString(),
		ContainerName: containerName,
		AppID:         parsed.AppID,
		TenantID:      parsed.TenantID,
		Service:       parsed.Service,
		From:          previous,
		To:            st.State,
		At:            st.LastCheck,
	}
	select {
	case m.events <- event:
	default:
		log.Warn("Dropping health transition event, consumer too slow", "container", containerName)
	}
	log.Info("Container health changed", "container", containerName, "from", previous, "to", st.State)
}

// States returns a snapshot of the current probe states, sorted by
// container name. ConsecutiveFailures is exposed for callers implementing
// their own alerting thresholds.
func (m *Monitor) States() []model.HealthState {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.states))
	for name := range m.states {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]model.HealthState, 0, len(names))
	for _, name := range names {
		out = append(out, *m.states[name])
	}
	return out
}
