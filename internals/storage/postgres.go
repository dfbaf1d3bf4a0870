package storage

import (
	"context"

	"cronguard/internals/modules/checkin"
	"cronguard/internals/modules/monitor"
	"cronguard/pkg/apperror"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres runs reconciliation units of work on a pgx pool, one
// transaction per unit.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// txStores binds both repositories to one open transaction. The two
// wrappers keep the embedded field names from colliding.
type monitorStore struct{ *monitor.Repository }

type checkinStore struct{ *checkin.Repository }

type txStores struct {
	monitorStore
	checkinStore
}

func (p *Postgres) InTx(ctx context.Context, fn func(ctx context.Context, s checkin.Stores) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return apperror.New(apperror.DatabaseErr, "storage.postgres.begin", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	s := txStores{
		monitorStore{monitor.NewRepository(tx)},
		checkinStore{checkin.NewRepository(tx)},
	}

	if err := fn(ctx, s); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperror.New(apperror.DatabaseErr, "storage.postgres.commit", err)
	}
	return nil
}
