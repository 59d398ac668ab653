package fleet

import (
	"context"
	"fmt"
	"sort"

	"overwatch/internal/domain/model"
	"overwatch/internal/domain/repository"
	"overwatch/internal/infra/store"
	"overwatch/pkg/log"
)

// Discovery queries the container runtime, filters to managed containers
// via the naming pattern and reconciles them against the declared service
// topology of each app.
type Discovery struct {
	runtime repository.ContainerRuntime
	apps    *store.AppStore
	namer   Namer
}

// NewDiscovery creates a Discovery over the given runtime and app registry.
func NewDiscovery(runtime repository.ContainerRuntime, apps *store.AppStore, namer Namer) *Discovery {
	return &Discovery{runtime: runtime, apps: apps, namer: namer}
}

// FleetStatus aggregates status for every tenant observable on the
// runtime, across all apps.
func (d *Discovery) FleetStatus(ctx context.Context) ([]model.TenantStatus, error) {
	apps, err := d.apps.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load app registry: %w", err)
	}

	containers, err := d.runtime.ListContainers(ctx, d.namer.Prefix+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	return d.aggregate(apps, containers), nil
}

// TenantStatus returns the aggregated status of one tenant. A tenant with
// no containers at all is still reported, with zero counts and healthy
// false, as long as the app exists.
func (d *Discovery) TenantStatus(ctx context.Context, appID, tenantID string) (model.TenantStatus, error) {
	app, err := d.apps.Get(ctx, appID)
	if err != nil {
		return model.TenantStatus{}, err
	}

	prefix := fmt.Sprintf("%s-%s-%s-", d.namer.Prefix, appID, tenantID)
	containers, err := d.runtime.ListContainers(ctx, prefix)
	if err != nil {
		return model.TenantStatus{}, fmt.Errorf("failed to list containers: %w", err)
	}

	statuses := d.aggregate([]model.App{*app}, containers)
	for _, st := range statuses {
		if st.AppID == appID && st.TenantID == tenantID {
			return st, nil
		}
	}
	return model.TenantStatus{
		AppID:    appID,
		TenantID: tenantID,
		Healthy:  len(app.RequiredServices()) == 0,
	}, nil
}

type tenantKey struct {
	appID    string
	tenantID string
}

// aggregate groups managed containers by tenant and computes the counts
// and health verdicts. Containers whose name does not match any known app
// are excluded from the managed set entirely.
func (d *Discovery) aggregate(apps []model.App, containers []model.Container) []model.TenantStatus {
	appsByID := make(map[string]*model.App, len(apps))
	ids := make([]string, 0, len(apps))
	for i := range apps {
		appsByID[apps[i].ID] = &apps[i]
		ids = append(ids, apps[i].ID)
	}

	grouped := make(map[tenantKey][]model.Container)
	parsed := make(map[string]model.ParsedName)
	for _, c := range containers {
		p, ok := d.namer.Parse(c.Name, ids)
		if !ok {
			log.Debug("Skipping unmanaged container", "name", c.Name)
			continue
		}
		key := tenantKey{appID: p.AppID, tenantID: p.TenantID}
		grouped[key] = append(grouped[key], c)
		parsed[c.Name] = p
	}

	statuses := make([]model.TenantStatus, 0, len(grouped))
	for key, tenantContainers := range grouped {
		app := appsByID[key.appID]
		initServices := app.InitServiceNames()

		st := model.TenantStatus{
			AppID:      key.appID,
			TenantID:   key.tenantID,
			Containers: tenantContainers,
		}

		runningServices := make(map[string]bool)
		for _, c := range tenantContainers {
			p := parsed[c.Name]
			if initServices[p.Service] {
				continue
			}
			st.TotalContainers++
			if c.Running() {
				st.RunningContainers++
				runningServices[p.Service] = true
			}
		}

		st.Healthy = true
		for _, svc := range app.RequiredServices() {
			if !runningServices[svc.Name] {
				st.Healthy = false
				break
			}
		}

		statuses = append(statuses, st)
	}

	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].AppID != statuses[j].AppID {
			return statuses[i].AppID < statuses[j].AppID
		}
		return statuses[i].TenantID < statuses[j].TenantID
	})
	return statuses
}
