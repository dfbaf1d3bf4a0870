package clock

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cronguard/internals/storage/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTicker() *Ticker {
	logger := zerolog.Nop()
	return NewTicker(memory.NewRegister(), &logger)
}

func TestTryClaim_FirstClaimWins(t *testing.T) {
	ticker := newTicker()

	won, err := ticker.TryClaim(context.Background(), time.Date(2026, 3, 1, 10, 30, 12, 0, time.UTC))

	require.NoError(t, err)
	assert.True(t, won)
}

func TestTryClaim_SingleWinnerUnderContention(t *testing.T) {
	ticker := newTicker()
	ref := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for n := 0; n < 16; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := ticker.TryClaim(context.Background(), ref)
			assert.NoError(t, err)
			if won {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestTryClaim_Monotonic(t *testing.T) {
	ticker := newTicker()
	ctx := context.Background()
	minute := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	won, err := ticker.TryClaim(ctx, minute)
	require.NoError(t, err)
	require.True(t, won)

	// same minute again, and seconds within it
	for _, ts := range []time.Time{minute, minute.Add(30 * time.Second), minute.Add(-time.Minute)} {
		won, err := ticker.TryClaim(ctx, ts)
		require.NoError(t, err)
		assert.False(t, won, "claim for %v must lose", ts)
	}

	// next minute is a fresh claim
	won, err = ticker.TryClaim(ctx, minute.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, won)
}

func TestTryClaim_SkippedMinuteStillWins(t *testing.T) {
	ticker := newTicker()
	ctx := context.Background()
	minute := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	won, err := ticker.TryClaim(ctx, minute)
	require.NoError(t, err)
	require.True(t, won)

	// a gap in the stream: the skip is telemetry, not an error
	won, err = ticker.TryClaim(ctx, minute.Add(5*time.Minute))
	require.NoError(t, err)
	assert.True(t, won)
}

type publishRecorder struct {
	keys   []string
	bodies [][]byte
}

func (p *publishRecorder) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.keys = append(p.keys, routingKey)
	p.bodies = append(p.bodies, body)
	return nil
}

func TestDispatch_PublishesBothSweepKinds(t *testing.T) {
	logger := zerolog.Nop()
	pub := &publishRecorder{}
	d := NewDispatcher(pub, "monitors.sweep", &logger)

	tick := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	require.NoError(t, d.Dispatch(context.Background(), tick))

	require.Len(t, pub.bodies, 2)
	assert.Equal(t, []string{"monitors.sweep", "monitors.sweep"}, pub.keys)

	kinds := make([]string, 0, 2)
	for _, body := range pub.bodies {
		var task SweepTask
		require.NoError(t, json.Unmarshal(body, &task))
		assert.Equal(t, tick.Unix(), task.Tick)
		kinds = append(kinds, task.Kind)
	}
	assert.Equal(t, []string{SweepCheckMissed, SweepCheckTimeout}, kinds)
}
