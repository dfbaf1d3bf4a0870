package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

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

func (r *Repository) MonitorBySlug(ctx context.Context, orgID, projectID int64, slug string) (*Monitor, error) {
	const query = `
		SELECT id, organization_id, project_id, slug, name, status, type, config, created_at
		FROM monitors
		WHERE organization_id = $1 AND project_id = $2 AND slug = $3`

	var m Monitor
	var rawConfig []byte

	err := r.q.QueryRow(ctx, query, orgID, projectID, slug).Scan(
		&m.ID, &m.OrganizationID, &m.ProjectID, &m.Slug, &m.Name,
		&m.Status, &m.Type, &rawConfig, &m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.New(apperror.NotFound, "repo.monitor.by_slug", err)
	}
	if err != nil {
		return nil, apperror.New(apperror.DatabaseErr, "repo.monitor.by_slug", err)
	}

	if err := json.Unmarshal(rawConfig, &m.Config); err != nil {
		return nil, apperror.New(apperror.Internal, "repo.monitor.by_slug", err)
	}

	return &m, nil
}

func (r *Repository) CountMonitors(ctx context.Context, orgID int64) (int64, error) {
	const query = `SELECT COUNT(*) FROM monitors WHERE organization_id = $1`

	var count int64
	if err := r.q.QueryRow(ctx, query, orgID).Scan(&count); err != nil {
		return 0, apperror.New(apperror.DatabaseErr, "repo.monitor.count", err)
	}
	return count, nil
}

func (r *Repository) CreateMonitor(ctx context.Context, m *Monitor) error {
	const query = `
		INSERT INTO monitors (organization_id, project_id, slug, name, status, type, config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	rawConfig, err := json.Marshal(m.Config)
	if err != nil {
		return apperror.New(apperror.Internal, "repo.monitor.create", err)
	}

	m.CreatedAt = time.Now().UTC()

	err = r.q.QueryRow(ctx, query,
		m.OrganizationID, m.ProjectID, m.Slug, m.Name, m.Status, m.Type, rawConfig, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return apperror.New(apperror.Conflict, "repo.monitor.create", err)
		}
		return apperror.New(apperror.DatabaseErr, "repo.monitor.create", err)
	}

	return nil
}

func (r *Repository) UpdateMonitorConfig(ctx context.Context, id int64, cfg Config) error {
	const query = `UPDATE monitors SET config = $2 WHERE id = $1`

	rawConfig, err := json.Marshal(cfg)
	if err != nil {
		return apperror.New(apperror.Internal, "repo.monitor.update_config", err)
	}

	if _, err := r.q.Exec(ctx, query, id, rawConfig); err != nil {
		return apperror.New(apperror.DatabaseErr, "repo.monitor.update_config", err)
	}
	return nil
}

func (r *Repository) EnvironmentByName(ctx context.Context, monitorID int64, name string) (*Environment, error) {
	const query = `
		SELECT id, monitor_id, name, last_checkin, last_state, next_checkin, created_at
		FROM monitor_environments
		WHERE monitor_id = $1 AND name = $2`

	var e Environment
	var lastState *string

	err := r.q.QueryRow(ctx, query, monitorID, name).Scan(
		&e.ID, &e.MonitorID, &e.Name, &e.LastCheckIn, &lastState, &e.NextCheckIn, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.New(apperror.NotFound, "repo.environment.by_name", err)
	}
	if err != nil {
		return nil, apperror.New(apperror.DatabaseErr, "repo.environment.by_name", err)
	}

	if lastState != nil {
		e.LastState = EnvState(*lastState)
	}

	return &e, nil
}

func (r *Repository) CountEnvironments(ctx context.Context, monitorID int64) (int64, error) {
	const query = `SELECT COUNT(*) FROM monitor_environments WHERE monitor_id = $1`

	var count int64
	if err := r.q.QueryRow(ctx, query, monitorID).Scan(&count); err != nil {
		return 0, apperror.New(apperror.DatabaseErr, "repo.environment.count", err)
	}
	return count, nil
}

func (r *Repository) CreateEnvironment(ctx context.Context, e *Environment) error {
	const query = `
		INSERT INTO monitor_environments (monitor_id, name, created_at)
		VALUES ($1, $2, $3)
		RETURNING id`

	e.CreatedAt = time.Now().UTC()

	err := r.q.QueryRow(ctx, query, e.MonitorID, e.Name, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return apperror.New(apperror.Conflict, "repo.environment.create", err)
		}
		return apperror.New(apperror.DatabaseErr, "repo.environment.create", err)
	}
	return nil
}

func (r *Repository) UpdateEnvironmentOK(ctx context.Context, id int64, lastCheckIn time.Time, next *time.Time) error {
	const query = `
		UPDATE monitor_environments
		SET last_checkin = $2, last_state = $3, next_checkin = $4
		WHERE id = $1`

	if _, err := r.q.Exec(ctx, query, id, lastCheckIn, EnvStateOK, next); err != nil {
		return apperror.New(apperror.DatabaseErr, "repo.environment.mark_ok", err)
	}
	return nil
}

func (r *Repository) MarkEnvironmentFailed(ctx context.Context, id int64, failedAt time.Time) error {
	const query = `
		UPDATE monitor_environments
		SET last_checkin = $2, last_state = $3
		WHERE id = $1`

	if _, err := r.q.Exec(ctx, query, id, failedAt, EnvStateFailed); err != nil {
		return apperror.New(apperror.DatabaseErr, "repo.environment.mark_failed", err)
	}
	return nil
}
