package project

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	projects map[int64]Project
	hits     int
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (Project, error) {
	f.hits++
	p, ok := f.projects[id]
	if !ok {
		return Project{}, errors.New("project not found")
	}
	return p, nil
}

type fakeCache struct {
	entries map[int64]Project
}

func (f *fakeCache) GetProject(ctx context.Context, id int64) (Project, bool) {
	p, ok := f.entries[id]
	return p, ok
}

func (f *fakeCache) SetProject(ctx context.Context, p Project) error {
	f.entries[p.ID] = p
	return nil
}

func TestGetByID_FillsCacheOnMiss(t *testing.T) {
	logger := zerolog.Nop()
	store := &fakeStore{projects: map[int64]Project{1: {ID: 1, OrganizationID: 10, Slug: "backend"}}}
	cache := &fakeCache{entries: map[int64]Project{}}
	svc := NewService(store, cache, &logger)
	ctx := context.Background()

	p, err := svc.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.OrganizationID)
	assert.Equal(t, 1, store.hits)

	// second read is served from the cache
	_, err = svc.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, store.hits)
}

func TestGetByID_UnknownProject(t *testing.T) {
	logger := zerolog.Nop()
	svc := NewService(&fakeStore{projects: map[int64]Project{}}, &fakeCache{entries: map[int64]Project{}}, &logger)

	_, err := svc.GetByID(context.Background(), 99)
	assert.Error(t, err)
}
