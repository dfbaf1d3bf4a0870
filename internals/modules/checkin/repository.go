package checkin

import (
	"context"
	"errors"

	"cronguard/pkg/apperror"
	"cronguard/pkg/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repository struct {
	q db.DBTX
}

func NewRepository(dbExecutor db.DBTX) *Repository {
	return &Repository{q: dbExecutor}
}

const checkInColumns = `
	id, guid, project_id, monitor_id, monitor_environment_id,
	status, duration, date_added, date_updated, expected_time, timeout_at, trace_id`

func (r *Repository) CheckInByGUID(ctx context.Context, guid uuid.UUID) (*CheckIn, error) {
	query := `
		SELECT ` + checkInColumns + `
		FROM checkins
		WHERE guid = $1
		FOR UPDATE`

	c, err := r.scanOne(r.q.QueryRow(ctx, query, guid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.New(apperror.NotFound, "repo.checkin.by_guid", err)
	}
	if err != nil {
		return nil, apperror.New(apperror.DatabaseErr, "repo.checkin.by_guid", err)
	}
	return c, nil
}

func (r *Repository) LatestUnfinished(ctx context.Context, environmentID int64) (*CheckIn, error) {
	query := `
		SELECT ` + checkInColumns + `
		FROM checkins
		WHERE monitor_environment_id = $1
		  AND status NOT IN ($2, $3, $4, $5)
		ORDER BY date_added DESC
		LIMIT 1
		FOR UPDATE`

	c, err := r.scanOne(r.q.QueryRow(ctx, query,
		environmentID, StatusOK, StatusError, StatusTimeout, StatusMissed))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.New(apperror.NotFound, "repo.checkin.latest_unfinished", err)
	}
	if err != nil {
		return nil, apperror.New(apperror.DatabaseErr, "repo.checkin.latest_unfinished", err)
	}
	return c, nil
}

func (r *Repository) HasCheckIns(ctx context.Context, monitorID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM checkins WHERE monitor_id = $1)`

	var exists bool
	if err := r.q.QueryRow(ctx, query, monitorID).Scan(&exists); err != nil {
		return false, apperror.New(apperror.DatabaseErr, "repo.checkin.has_checkins", err)
	}
	return exists, nil
}

func (r *Repository) CreateCheckIn(ctx context.Context, c *CheckIn) (bool, *CheckIn, error) {
	const query = `
		INSERT INTO checkins (
			guid, project_id, monitor_id, monitor_environment_id,
			status, duration, date_added, date_updated, expected_time, timeout_at, trace_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (guid) DO NOTHING
		RETURNING id`

	err := r.q.QueryRow(ctx, query,
		c.GUID, c.ProjectID, c.MonitorID, c.EnvironmentID,
		c.Status, c.Duration, c.DateAdded, c.DateUpdated, c.ExpectedTime, c.TimeoutAt, c.TraceID,
	).Scan(&c.ID)

	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race between our not-found read and this insert;
		// hand back the row the winner created.
		existing, lookupErr := r.CheckInByGUID(ctx, c.GUID)
		if lookupErr != nil {
			return false, nil, lookupErr
		}
		return false, existing, nil
	}
	if err != nil {
		return false, nil, apperror.New(apperror.DatabaseErr, "repo.checkin.create", err)
	}

	return true, nil, nil
}

func (r *Repository) UpdateCheckIn(ctx context.Context, id int64, upd Update) error {
	const query = `
		UPDATE checkins
		SET status = $2, duration = $3, date_updated = $4, timeout_at = $5
		WHERE id = $1`

	if _, err := r.q.Exec(ctx, query, id, upd.Status, upd.Duration, upd.DateUpdated, upd.TimeoutAt); err != nil {
		return apperror.New(apperror.DatabaseErr, "repo.checkin.update", err)
	}
	return nil
}

func (r *Repository) scanOne(row pgx.Row) (*CheckIn, error) {
	var c CheckIn
	err := row.Scan(
		&c.ID, &c.GUID, &c.ProjectID, &c.MonitorID, &c.EnvironmentID,
		&c.Status, &c.Duration, &c.DateAdded, &c.DateUpdated, &c.ExpectedTime, &c.TimeoutAt, &c.TraceID,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
