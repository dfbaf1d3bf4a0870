package app

import (
	"context"
)

// StartConsumer begins draining the check-in queue through the
// ingestion driver. Runs until ctx is cancelled.
func StartConsumer(ctx context.Context, c *Container) {
	go func() {
		if err := c.Consumer.Consume(ctx, c.Driver); err != nil {
			c.Logger.Error().
				Err(err).
				Msg("rabbitmq consumer stopped")
		}
	}()
}
