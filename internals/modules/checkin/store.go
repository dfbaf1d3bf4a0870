package checkin

import (
	"context"
	"errors"
	"time"

	"cronguard/internals/modules/monitor"

	"github.com/google/uuid"
)

// Update is the only mutation allowed on an existing check-in row.
type Update struct {
	Status      Status
	Duration    *int64
	DateUpdated time.Time
	TimeoutAt   *time.Time
}

type Store interface {
	CheckInByGUID(ctx context.Context, guid uuid.UUID) (*CheckIn, error)
	LatestUnfinished(ctx context.Context, environmentID int64) (*CheckIn, error)
	HasCheckIns(ctx context.Context, monitorID int64) (bool, error)

	// CreateCheckIn is get-or-create keyed by GUID. When a concurrent
	// writer created the row first, it returns created=false and the
	// existing row so the caller can fall back to the update path.
	CreateCheckIn(ctx context.Context, c *CheckIn) (created bool, existing *CheckIn, err error)

	UpdateCheckIn(ctx context.Context, id int64, upd Update) error
}

// Stores is everything the reconciler touches inside one transaction.
type Stores interface {
	monitor.Store
	Store
}

// TxRunner scopes fn to a single atomic transaction: either every write
// fn performed becomes visible, or none do.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// ErrLockTaken is what a Locker reports when the named lease is held.
var ErrLockTaken = errors.New("checkin lock already held")

type Lease interface {
	Release(ctx context.Context) error
}

type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}
