package project

import (
	"context"
	"errors"

	"cronguard/pkg/apperror"
	"cronguard/pkg/db"

	"github.com/jackc/pgx/v5"
)

type Repository struct {
	q db.DBTX
}

func NewRepository(dbExecutor db.DBTX) *Repository {
	return &Repository{q: dbExecutor}
}

func (r *Repository) GetByID(ctx context.Context, id int64) (Project, error) {
	const query = `
		SELECT id, organization_id, slug
		FROM projects
		WHERE id = $1`

	var p Project
	err := r.q.QueryRow(ctx, query, id).Scan(&p.ID, &p.OrganizationID, &p.Slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, apperror.New(apperror.NotFound, "repo.project.get_by_id", err)
	}
	if err != nil {
		return Project{}, apperror.New(apperror.DatabaseErr, "repo.project.get_by_id", err)
	}

	return p, nil
}
