package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overwatch/internal/domain/model"
	"overwatch/pkg/keyedlock"
)

func testApp(id string) model.App {
	return model.App{
		ID:       id,
		Name:     "App " + id,
		Services: []model.Service{{Name: "web", Required: true}},
	}
}

func newAppStore(t *testing.T) *AppStore {
	t.Helper()
	return NewAppStore(filepath.Join(t.TempDir(), "apps.json"), keyedlock.New())
}

func TestAppStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newAppStore(t)

	require.NoError(t, s.Create(ctx, testApp("blog")))

	got, err := s.Get(ctx, "blog")
	require.NoError(t, err)
	assert.Equal(t, "blog", got.ID)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.Get(ctx, "wiki")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAppStoreCreateValidation(t *testing.T) {
	ctx := context.Background()
	s := newAppStore(t)

	err := s.Create(ctx, testApp("Not A Slug"))
	assert.ErrorIs(t, err, model.ErrValidation)

	noServices := testApp("blog")
	noServices.Services = nil
	err = s.Create(ctx, noServices)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestAppStoreCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newAppStore(t)

	require.NoError(t, s.Create(ctx, testApp("blog")))
	err := s.Create(ctx, testApp("blog"))
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestAppStoreCreatePrefixCollision(t *testing.T) {
	ctx := context.Background()
	s := newAppStore(t)

	require.NoError(t, s.Create(ctx, testApp("shop")))

	// Registering an extension of an existing id is rejected, and so is the
	// reverse order.
	err := s.Create(ctx, testApp("shop-pro"))
	assert.ErrorIs(t, err, model.ErrValidation)

	require.NoError(t, s.Create(ctx, testApp("shoppro")))
}

func TestAppStoreListSorted(t *testing.T) {
	ctx := context.Background()
	s := newAppStore(t)

	require.NoError(t, s.Create(ctx, testApp("wiki")))
	require.NoError(t, s.Create(ctx, testApp("blog")))

	apps, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "blog", apps[0].ID)
	assert.Equal(t, "wiki", apps[1].ID)
}

func TestAppStoreUpdate(t *testing.T) {
	ctx := context.Background()
	s := newAppStore(t)

	require.NoError(t, s.Create(ctx, testApp("blog")))
	created, err := s.Get(ctx, "blog")
	require.NoError(t, err)

	updated := testApp("blog")
	updated.Name = "Renamed"
	require.NoError(t, s.Update(ctx, updated))

	got, err := s.Get(ctx, "blog")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, created.CreatedAt, got.CreatedAt, "CreatedAt survives updates")

	err = s.Update(ctx, testApp("wiki"))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAppStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := newAppStore(t)

	require.NoError(t, s.Create(ctx, testApp("blog")))
	require.NoError(t, s.Delete(ctx, "blog"))

	_, err := s.Get(ctx, "blog")
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "blog"), model.ErrNotFound)
}

func TestAppStoreMissingFileIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := newAppStore(t)

	apps, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestEnvVarStoreLegacyFlatArray(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "env_vars.json")
	// Pre-keying layout: a bare array of records. It carries no app scoping
	// we can trust, so it reads as empty.
	require.NoError(t, os.WriteFile(path, []byte(`[{"key":"SMTP_HOST","value":"mail"}]`), 0o600))

	s := NewEnvVarStore(path, keyedlock.New())
	vars, err := s.List(ctx, "blog")
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestEnvVarStoreGarbageDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "env_vars.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))

	s := NewEnvVarStore(path, keyedlock.New())
	_, err := s.List(ctx, "blog")
	assert.Error(t, err)
}
