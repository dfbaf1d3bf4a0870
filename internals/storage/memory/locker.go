package memory

import (
	"context"
	"sync"
	"time"

	"cronguard/internals/modules/checkin"
)

// Locker hands out in-process leases. TTL expiry is not simulated; a
// lease is held until released.
type Locker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]struct{})}
}

func (l *Locker) AcquireLock(ctx context.Context, name string, ttl time.Duration) (checkin.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.held[name]; taken {
		return nil, checkin.ErrLockTaken
	}
	l.held[name] = struct{}{}
	return &lease{locker: l, name: name}, nil
}

type lease struct {
	locker *Locker
	name   string
}

func (l *lease) Release(ctx context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	delete(l.locker.held, l.name)
	return nil
}
