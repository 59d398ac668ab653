// Package application wires the orchestration core together: stores,
// container runtime, database adapter, the backup coordinator and health
// monitor, and the command/query bus the (external) API layer talks to.
package application

import (
	"context"

	"overwatch/internal/application/command"
	"overwatch/internal/application/query"
	"overwatch/internal/backup"
	"overwatch/internal/config"
	"overwatch/internal/envvar"
	"overwatch/internal/fleet"
	"overwatch/internal/health"
	"overwatch/internal/infra/compose"
	"overwatch/internal/infra/docker"
	"overwatch/internal/infra/postgres"
	"overwatch/internal/infra/store"
	"overwatch/internal/tenant"
	"overwatch/pkg/cqrs"
	"overwatch/pkg/keyedlock"
	"overwatch/pkg/log"
)

// Runner owns the wired subsystem graph for one agent process.
type Runner struct {
	cfg     *config.Config
	bus     *cqrs.Bus
	monitor *health.Monitor
	watcher *config.Watcher

	Manager     *tenant.Manager
	Coordinator *backup.Coordinator
	Discovery   *fleet.Discovery
	Resolver    *envvar.Resolver
	Apps        *store.AppStore
}

// NewRunner builds every subsystem and registers the bus handlers. The
// context bounds the lifetime of all handler work.
func NewRunner(ctx context.Context, cfg *config.Config, configPath string) (*Runner, error) {
	locks := keyedlock.New()
	apps := store.NewAppStore(cfg.GetAppsStateFile(), locks)
	vars := store.NewEnvVarStore(cfg.GetEnvVarsStateFile(), locks)
	overrides := store.NewOverrideStore(cfg.GetOverridesStateFile(), locks)

	runtime, err := docker.NewRuntime()
	if err != nil {
		return nil, log.Errorf("failed to connect to container runtime: %w", err)
	}

	db := postgres.NewAdapter(cfg.Database)
	namer := fleet.NewNamer(cfg.ProjectPrefix)
	resolver := envvar.NewResolver(cfg, apps, vars, overrides)
	generator := compose.NewStaticGenerator(cfg)
	manager := tenant.NewManager(cfg, apps, resolver, db, runtime, generator)
	discovery := fleet.NewDiscovery(runtime, apps, namer)
	coordinator := backup.NewCoordinator(cfg, apps, db, runtime, backup.ExecRunner{}, namer)
	monitor := health.NewMonitor(cfg, apps, runtime, namer)

	bus := cqrs.NewBus(ctx)
	if err := command.RegisterCommandHandlers(ctx, bus, manager, coordinator); err != nil {
		return nil, err
	}
	if err := query.RegisterQueryHandlers(ctx, bus, discovery, coordinator); err != nil {
		return nil, err
	}

	watcher, err := config.NewWatcher(configPath, func(updated *config.Config) {
		log.InitLog(updated.LogLevel)
	})
	if err != nil {
		return nil, log.Errorf("failed to create config watcher: %w", err)
	}

	return &Runner{
		cfg:         cfg,
		bus:         bus,
		monitor:     monitor,
		watcher:     watcher,
		Manager:     manager,
		Coordinator: coordinator,
		Discovery:   discovery,
		Resolver:    resolver,
		Apps:        apps,
	}, nil
}

// Bus returns the command/query bus.
func (r *Runner) Bus() *cqrs.Bus {
	return r.bus
}

// Monitor returns the health monitor, for consumers of transition events.
func (r *Runner) Monitor() *health.Monitor {
	return r.monitor
}

// Run starts the background subsystems. It returns immediately; the
// subsystems stop when ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.watcher.Start(ctx)
	r.monitor.Start(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case transition := <-r.monitor.Events():
				log.Info("Health transition",
					"container", transition.ContainerName,
					"app_id", transition.AppID,
					"tenant_id", transition.TenantID,
					"service", transition.Service,
					"from", transition.From,
					"to", transition.To)
			}
		}
	}()

	log.Info("Orchestration core started",
		"base_path", r.cfg.BasePath,
		"project_prefix", r.cfg.ProjectPrefix,
		"health_interval", r.cfg.HealthInterval().String())
	return nil
}

// Close drains the bus: new messages are rejected and in-flight handlers
// run to completion.
func (r *Runner) Close() {
	r.bus.Shutdown()
	r.bus.WaitForCompletion()
	log.Info("Orchestration core stopped")
}
