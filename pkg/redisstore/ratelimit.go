package redisstore

import (
	"context"
	"fmt"
	"time"
)

// IsLimited counts one hit against a fixed window bucket and reports
// whether the key is over its quota. Window counting is eventually
// consistent; slight over-admission under concurrent hits is acceptable
// for a protective limiter.
func (c *Client) IsLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	bucket := time.Now().Unix() / int64(window.Seconds())
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, bucket)

	var count int64

	err := retry(ctx, 2, func() error {
		var err error
		count, err = c.rdb.Incr(ctx, redisKey).Result()
		if err != nil {
			return err
		}

		if count == 1 {
			// TTL slightly past the window so a bucket never lingers
			c.rdb.Expire(ctx, redisKey, window+time.Second)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return count > int64(limit), nil
}
