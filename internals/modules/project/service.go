package project

import (
	"context"

	"github.com/rs/zerolog"
)

type Store interface {
	GetByID(ctx context.Context, id int64) (Project, error)
}

type Cache interface {
	GetProject(ctx context.Context, id int64) (Project, bool)
	SetProject(ctx context.Context, p Project) error
}

// Service resolves projects cache-first; every check-in carries a
// project id, so the hot path should almost never touch the database.
type Service struct {
	repo   Store
	cache  Cache
	logger *zerolog.Logger
}

func NewService(repo Store, cache Cache, logger *zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

func (s *Service) GetByID(ctx context.Context, id int64) (Project, error) {
	if p, ok := s.cache.GetProject(ctx, id); ok {
		return p, nil
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Project{}, err
	}

	if err := s.cache.SetProject(ctx, p); err != nil {
		s.logger.Warn().Err(err).Int64("project_id", id).Msg("failed to cache project")
	}

	return p, nil
}
