package clock

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// registerKey is shared by every consumer instance; whoever wins the
// get-and-set race for a new minute owns that minute's sweep.
const registerKey = "monitors.last_tasks_ts"

type Register interface {
	GetRegister(ctx context.Context, key string) (int64, bool, error)
	GetSetRegister(ctx context.Context, key string, value int64) (int64, bool, error)
}

// Ticker is the leaderless once-per-minute gate. Every message on every
// consumer drives it; at most one caller per minute boundary wins.
type Ticker struct {
	register Register
	logger   *zerolog.Logger
}

func NewTicker(register Register, logger *zerolog.Logger) *Ticker {
	return &Ticker{register: register, logger: logger}
}

// TryClaim claims the minute boundary of ts. It returns true for
// exactly one caller per new minute across all racing instances.
//
// The precheck read keeps the common already-claimed case to a single
// round trip; the atomic get-and-set decides the winner among callers
// that raced past the precheck. A caller whose captured previous value
// differs from its precheck lost to a concurrent winner.
func (t *Ticker) TryClaim(ctx context.Context, ts time.Time) (bool, error) {
	ref := ts.Truncate(time.Minute).Unix()

	last, lastSet, err := t.register.GetRegister(ctx, registerKey)
	if err != nil {
		return false, err
	}
	if lastSet && last >= ref {
		return false, nil
	}

	prev, prevSet, err := t.register.GetSetRegister(ctx, registerKey, ref)
	if err != nil {
		return false, err
	}
	if prevSet != lastSet || prev != last {
		return false, nil
	}

	if prevSet && ref > prev+60 {
		t.logger.Warn().
			Int64("previous_tick", prev).
			Int64("current_tick", ref).
			Msg("monitor clock skipped at least one minute")
	}

	return true, nil
}
