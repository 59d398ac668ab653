package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"overwatch/internal/domain/model"
	"overwatch/pkg/keyedlock"
)

// AppStore owns the app registry document: a JSON array of App records.
type AppStore struct {
	path  string
	locks *keyedlock.KeyedLock
}

// NewAppStore creates a store over the registry document at path.
func NewAppStore(path string, locks *keyedlock.KeyedLock) *AppStore {
	return &AppStore{path: path, locks: locks}
}

// List returns every registered app, sorted by id.
func (s *AppStore) List(ctx context.Context) ([]model.App, error) {
	var apps []model.App
	err := s.locks.WithLock(ctx, LockApps, func() error {
		return loadDocument(s.path, &apps)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
	return apps, nil
}

// Get returns the app with the given id.
func (s *AppStore) Get(ctx context.Context, id string) (*model.App, error) {
	apps, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if apps[i].ID == id {
			return &apps[i], nil
		}
	}
	return nil, fmt.Errorf("%w: app %s", model.ErrNotFound, id)
}

// IDs returns the set of registered app ids.
func (s *AppStore) IDs(ctx context.Context) ([]string, error) {
	apps, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(apps))
	for _, a := range apps {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// Create registers a new app. The id must be a valid slug, unique, and not
// form a hyphen-prefix relationship with any registered id; allowing such
// pairs would make container names ambiguous even under longest-match
// parsing.
func (s *AppStore) Create(ctx context.Context, app model.App) error {
	if err := model.ValidateAppID(app.ID); err != nil {
		return err
	}
	if app.Name == "" {
		return fmt.Errorf("%w: app name is required", model.ErrValidation)
	}
	if len(app.Services) == 0 {
		return fmt.Errorf("%w: app must declare at least one service", model.ErrValidation)
	}

	return s.locks.WithLock(ctx, LockApps, func() error {
		var apps []model.App
		if err := loadDocument(s.path, &apps); err != nil {
			return err
		}
		for _, existing := range apps {
			if existing.ID == app.ID {
				return fmt.Errorf("%w: app %s already exists", model.ErrConflict, app.ID)
			}
			if strings.HasPrefix(existing.ID, app.ID+"-") || strings.HasPrefix(app.ID, existing.ID+"-") {
				return fmt.Errorf("%w: app id %s is a prefix of registered app %s; container names would be ambiguous",
					model.ErrValidation, shorterOf(app.ID, existing.ID), longerOf(app.ID, existing.ID))
			}
		}

		now := time.Now().UTC()
		app.CreatedAt = now
		app.UpdatedAt = now
		apps = append(apps, app)
		return saveDocument(s.path, apps)
	})
}

// Update replaces the stored record of an app, refreshing UpdatedAt.
func (s *AppStore) Update(ctx context.Context, app model.App) error {
	return s.locks.WithLock(ctx, LockApps, func() error {
		var apps []model.App
		if err := loadDocument(s.path, &apps); err != nil {
			return err
		}
		for i := range apps {
			if apps[i].ID == app.ID {
				app.CreatedAt = apps[i].CreatedAt
				app.UpdatedAt = time.Now().UTC()
				apps[i] = app
				return saveDocument(s.path, apps)
			}
		}
		return fmt.Errorf("%w: app %s", model.ErrNotFound, app.ID)
	})
}

// Delete removes an app from the registry. Whether the app may be removed
// (no tenants, or force) is the caller's check; the store only mutates the
// document.
func (s *AppStore) Delete(ctx context.Context, id string) error {
	return s.locks.WithLock(ctx, LockApps, func() error {
		var apps []model.App
		if err := loadDocument(s.path, &apps); err != nil {
			return err
		}
		for i := range apps {
			if apps[i].ID == id {
				apps = append(apps[:i], apps[i+1:]...)
				return saveDocument(s.path, apps)
			}
		}
		return fmt.Errorf("%w: app %s", model.ErrNotFound, id)
	})
}

func shorterOf(a, b string) string {
	if len(a) < len(b) {
		return a
	}
	return b
}

func longerOf(a, b string) string {
	if len(a) < len(b) {
		return b
	}
	return a
}
