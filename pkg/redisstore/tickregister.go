package redisstore

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// The tick register holds the last minute boundary (unix seconds) that
// triggered the periodic monitor sweep. It is shared by every consumer
// instance and mutated only through the atomic get-and-set below.

func (c *Client) GetRegister(ctx context.Context, key string) (int64, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	ts, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return ts, true, nil
}

// GetSetRegister atomically swaps the register value and returns the
// previous one. The captured previous value is what lets racing callers
// decide a single winner.
func (c *Client) GetSetRegister(ctx context.Context, key string, value int64) (int64, bool, error) {
	val, err := c.rdb.GetSet(ctx, key, value).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	prev, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return prev, true, nil
}
