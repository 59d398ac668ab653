package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"overwatch/internal/domain/model"
	"overwatch/pkg/keyedlock"
)

// OverrideStore owns the tenant-override document: a JSON object keyed by
// app id, each value an array of TenantEnvOverride records.
type OverrideStore struct {
	path  string
	locks *keyedlock.KeyedLock
}

// NewOverrideStore creates a store over the override document at path.
func NewOverrideStore(path string, locks *keyedlock.KeyedLock) *OverrideStore {
	return &OverrideStore{path: path, locks: locks}
}

// Get returns a tenant's overrides sorted by key. A tenant with no
// overrides yields an empty record, not an error.
func (s *OverrideStore) Get(ctx context.Context, appID, tenantID string) (model.TenantEnvOverride, error) {
	out := model.TenantEnvOverride{AppID: appID, TenantID: tenantID}
	err := s.locks.WithLock(ctx, LockOverrides, func() error {
		doc, err := loadKeyedDocument[model.TenantEnvOverride](s.path)
		if err != nil {
			return err
		}
		for _, rec := range doc[appID] {
			if rec.TenantID == tenantID {
				out = rec
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return model.TenantEnvOverride{}, err
	}
	sort.Slice(out.Overrides, func(i, j int) bool { return out.Overrides[i].Key < out.Overrides[j].Key })
	return out, nil
}

// Set upserts one override key for a tenant.
func (s *OverrideStore) Set(ctx context.Context, appID, tenantID string, v model.OverrideVar) (model.OverrideVar, error) {
	var saved model.OverrideVar
	err := s.locks.WithLock(ctx, LockOverrides, func() error {
		doc, err := loadKeyedDocument[model.TenantEnvOverride](s.path)
		if err != nil {
			return err
		}

		v.UpdatedAt = time.Now().UTC()
		records := doc[appID]
		for i := range records {
			if records[i].TenantID != tenantID {
				continue
			}
			for j := range records[i].Overrides {
				if records[i].Overrides[j].Key == v.Key {
					records[i].Overrides[j] = v
					saved = v
					doc[appID] = records
					return saveDocument(s.path, doc)
				}
			}
			records[i].Overrides = append(records[i].Overrides, v)
			saved = v
			doc[appID] = records
			return saveDocument(s.path, doc)
		}

		doc[appID] = append(records, model.TenantEnvOverride{
			AppID:     appID,
			TenantID:  tenantID,
			Overrides: []model.OverrideVar{v},
		})
		saved = v
		return saveDocument(s.path, doc)
	})
	return saved, err
}

// Delete removes one override key. A missing key is a NotFound error.
func (s *OverrideStore) Delete(ctx context.Context, appID, tenantID, key string) error {
	return s.locks.WithLock(ctx, LockOverrides, func() error {
		doc, err := loadKeyedDocument[model.TenantEnvOverride](s.path)
		if err != nil {
			return err
		}
		records := doc[appID]
		for i := range records {
			if records[i].TenantID != tenantID {
				continue
			}
			for j := range records[i].Overrides {
				if records[i].Overrides[j].Key == key {
					records[i].Overrides = append(records[i].Overrides[:j], records[i].Overrides[j+1:]...)
					doc[appID] = records
					return saveDocument(s.path, doc)
				}
			}
		}
		return fmt.Errorf("%w: override %s for tenant %s/%s", model.ErrNotFound, key, appID, tenantID)
	})
}

// ClearTenant drops every override of a tenant. Clearing a tenant with no
// overrides is a no-op.
func (s *OverrideStore) ClearTenant(ctx context.Context, appID, tenantID string) error {
	return s.locks.WithLock(ctx, LockOverrides, func() error {
		doc, err := loadKeyedDocument[model.TenantEnvOverride](s.path)
		if err != nil {
			return err
		}
		records := doc[appID]
		for i := range records {
			if records[i].TenantID == tenantID {
				doc[appID] = append(records[:i], records[i+1:]...)
				return saveDocument(s.path, doc)
			}
		}
		return nil
	})
}
