package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"overwatch/internal/domain/model"
	"overwatch/pkg/keyedlock"
)

// EnvVarStore owns the global env-var document: a JSON object keyed by app
// id, each value an array of EnvVar records.
type EnvVarStore struct {
	path  string
	locks *keyedlock.KeyedLock
}

// NewEnvVarStore creates a store over the env-var document at path.
func NewEnvVarStore(path string, locks *keyedlock.KeyedLock) *EnvVarStore {
	return &EnvVarStore{path: path, locks: locks}
}

// List returns an app's global variables sorted by key.
func (s *EnvVarStore) List(ctx context.Context, appID string) ([]model.EnvVar, error) {
	var vars []model.EnvVar
	err := s.locks.WithLock(ctx, LockEnvVars, func() error {
		doc, err := loadKeyedDocument[model.EnvVar](s.path)
		if err != nil {
			return err
		}
		vars = doc[appID]
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Key < vars[j].Key })
	return vars, nil
}

// Set upserts a variable by key. An existing entry keeps its CreatedAt and
// gets a fresh UpdatedAt; no duplicate entry is ever created.
func (s *EnvVarStore) Set(ctx context.Context, appID string, v model.EnvVar) (model.EnvVar, error) {
	var saved model.EnvVar
	err := s.locks.WithLock(ctx, LockEnvVars, func() error {
		doc, err := loadKeyedDocument[model.EnvVar](s.path)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		vars := doc[appID]
		for i := range vars {
			if vars[i].Key == v.Key {
				vars[i].Value = v.Value
				vars[i].Sensitive = v.Sensitive
				vars[i].Description = v.Description
				vars[i].UpdatedAt = now
				saved = vars[i]
				doc[appID] = vars
				return saveDocument(s.path, doc)
			}
		}

		v.CreatedAt = now
		v.UpdatedAt = now
		doc[appID] = append(vars, v)
		saved = v
		return saveDocument(s.path, doc)
	})
	return saved, err
}

// Delete removes a variable by key. Deleting a key that does not exist is
// a NotFound error.
func (s *EnvVarStore) Delete(ctx context.Context, appID, key string) error {
	return s.locks.WithLock(ctx, LockEnvVars, func() error {
		doc, err := loadKeyedDocument[model.EnvVar](s.path)
		if err != nil {
			return err
		}
		vars := doc[appID]
		for i := range vars {
			if vars[i].Key == key {
				doc[appID] = append(vars[:i], vars[i+1:]...)
				return saveDocument(s.path, doc)
			}
		}
		return fmt.Errorf("%w: env var %s for app %s", model.ErrNotFound, key, appID)
	})
}
