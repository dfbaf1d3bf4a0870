package clock

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// SweepTask is the fan-out message for one claimed minute. The sweep
// workers consuming it check for missed and timed-out check-ins.
type SweepTask struct {
	Kind string `json:"kind"`
	Tick int64  `json:"tick"` // minute boundary, unix seconds
}

const (
	SweepCheckMissed  = "check_missed"
	SweepCheckTimeout = "check_timeout"
)

// Dispatcher publishes the per-minute sweep tasks after a won claim.
type Dispatcher struct {
	publisher  Publisher
	routingKey string
	logger     *zerolog.Logger
}

func NewDispatcher(publisher Publisher, routingKey string, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{publisher: publisher, routingKey: routingKey, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, tick time.Time) error {
	for _, kind := range []string{SweepCheckMissed, SweepCheckTimeout} {
		body, err := json.Marshal(SweepTask{Kind: kind, Tick: tick.Unix()})
		if err != nil {
			return err
		}
		if err := d.publisher.Publish(ctx, d.routingKey, body); err != nil {
			return err
		}
		d.logger.Debug().Str("kind", kind).Int64("tick", tick.Unix()).Msg("dispatched sweep task")
	}
	return nil
}
