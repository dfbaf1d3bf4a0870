package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrLockTaken is returned when the named lease is currently held by
// someone else. Callers are expected to drop the work, not queue.
var ErrLockTaken = errors.New("lock already held")

// releaseScript deletes the lock key only when it still carries our
// holder token, so an expired lease never releases a successor's lock.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type Lease struct {
	client *Client
	key    string
	token  string
}

// AcquireLock takes a named, time-bounded lease. Non-blocking: a held
// lease fails fast with ErrLockTaken. The store force-expires the lease
// after ttl, which bounds the damage of a crashed holder.
func (c *Client) AcquireLock(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	key := fmt.Sprintf("lock:%s", name)
	token := uuid.NewString()

	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockTaken
	}

	return &Lease{client: c, key: key, token: token}, nil
}

// Release drops the lease. Safe to call after expiry; releasing a lease
// that has already rolled over to another holder is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	return retry(ctx, 2, func() error {
		return l.client.rdb.Eval(ctx, releaseScript, []string{l.key}, l.token).Err()
	})
}
