package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cronguard/internals/modules/checkin"
	"cronguard/internals/modules/clock"
	"cronguard/internals/modules/monitor"
	"cronguard/internals/modules/project"
	"cronguard/internals/storage/memory"
	"cronguard/pkg/killswitch"
	"cronguard/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProject = project.Project{ID: 1, OrganizationID: 10, Slug: "backend"}

type fakeProjects struct{}

func (fakeProjects) GetByID(ctx context.Context, id int64) (project.Project, error) {
	return testProject, nil
}

type sweepRecorder struct {
	ticks []time.Time
}

func (s *sweepRecorder) Dispatch(ctx context.Context, tick time.Time) error {
	s.ticks = append(s.ticks, tick)
	return nil
}

type signalRecorder struct {
	firstMonitor int
	firstCheckIn int
	failures     []monitor.Occurrence
}

func (r *signalRecorder) FirstMonitorCreated(ctx context.Context, p project.Project, m *monitor.Monitor) {
	r.firstMonitor++
}

func (r *signalRecorder) FirstCheckIn(ctx context.Context, p project.Project, m *monitor.Monitor) {
	r.firstCheckIn++
}

func (r *signalRecorder) MonitorFailed(ctx context.Context, env *monitor.Environment, occ monitor.Occurrence) {
	r.failures = append(r.failures, occ)
}

type driverHarness struct {
	driver   *Driver
	store    *memory.Store
	counters *metrics.Registry
	sweeps   *sweepRecorder
	signals  *signalRecorder
}

func newDriverHarness(entries []killswitch.Entry) *driverHarness {
	logger := zerolog.Nop()
	store := memory.NewStore()
	rec := &signalRecorder{}
	registry := monitor.NewService(1500, 1000, rec, rec, &logger)
	reconciler := checkin.NewReconciler(store, memory.NewLocker(), registry, rec, 2*time.Second, &logger)
	ticker := clock.NewTicker(memory.NewRegister(), &logger)
	sweeps := &sweepRecorder{}
	counters := metrics.NewRegistry()

	// pin the limiter's window so a test never straddles two buckets
	limiter := memory.NewRateLimiter()
	limiter.Now = func() time.Time { return startTime }

	driver := NewDriver(
		ticker,
		sweeps,
		fakeProjects{},
		killswitch.NewEvaluator(entries),
		limiter,
		reconciler,
		counters,
		5,
		time.Minute,
		&logger,
	)

	return &driverHarness{
		driver:   driver,
		store:    store,
		counters: counters,
		sweeps:   sweeps,
		signals:  rec,
	}
}

var startTime = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

func checkInMessage(t *testing.T, p Payload, start time.Time) []byte {
	t.Helper()

	payload, err := json.Marshal(p)
	require.NoError(t, err)

	raw, err := json.Marshal(Envelope{
		MessageType: MessageTypeCheckIn,
		Payload:     string(payload),
		StartTime:   float64(start.Unix()),
		ProjectID:   testProject.ID,
		SDK:         "sentry.python",
	})
	require.NoError(t, err)
	return raw
}

func validPayload(guid string) Payload {
	return Payload{
		CheckInID:   guid,
		MonitorSlug: "Nightly Backup!",
		Status:      "ok",
		Environment: "production",
		MonitorConfig: map[string]any{
			"schedule_type": "crontab",
			"schedule":      "0 * * * *",
		},
	}
}

func resultKey(status string) string {
	return "monitors.checkin.result{sdk_platform=sentry.python,source=consumer,status=" + status + "}"
}

func TestProcessMessage_EndToEnd(t *testing.T) {
	h := newDriverHarness(nil)
	ctx := context.Background()
	guid := uuid.NewString()

	h.driver.ProcessMessage(ctx, checkInMessage(t, validPayload(guid), startTime), startTime)

	assert.Equal(t, int64(1), h.counters.Snapshot()[resultKey("complete")])

	// slug was normalized before resolution
	m, err := h.store.MonitorBySlug(ctx, testProject.OrganizationID, testProject.ID, "nightly-backup")
	require.NoError(t, err)
	assert.Equal(t, monitor.StatusActive, m.Status)

	row, err := h.store.CheckInByGUID(ctx, uuid.MustParse(guid))
	require.NoError(t, err)
	assert.Equal(t, checkin.StatusOK, row.Status)

	assert.Equal(t, 1, h.signals.firstMonitor)
	assert.Equal(t, 1, h.signals.firstCheckIn)

	// the first message of the minute also won the tick
	require.Len(t, h.sweeps.ticks, 1)
	assert.Equal(t, startTime.Truncate(time.Minute), h.sweeps.ticks[0])
}

func TestProcessMessage_ClockPulseShortCircuits(t *testing.T) {
	h := newDriverHarness(nil)

	h.driver.ProcessMessage(context.Background(), []byte(`{"message_type":"clock_pulse"}`), startTime)

	assert.Empty(t, h.counters.Snapshot(), "clock pulses produce no check-in outcome")
	assert.Len(t, h.sweeps.ticks, 1, "but they still drive the shared clock")
}

func TestProcessMessage_TickFiresOncePerMinute(t *testing.T) {
	h := newDriverHarness(nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p := validPayload(uuid.NewString())
		ts := startTime.Add(time.Duration(i) * time.Second)
		h.driver.ProcessMessage(ctx, checkInMessage(t, p, ts), ts)
	}

	assert.Len(t, h.sweeps.ticks, 1)
}

func TestProcessMessage_RateLimited(t *testing.T) {
	h := newDriverHarness(nil)
	ctx := context.Background()

	for n := 0; n < 6; n++ {
		p := validPayload(uuid.NewString())
		h.driver.ProcessMessage(ctx, checkInMessage(t, p, startTime), startTime)
	}

	snap := h.counters.Snapshot()
	assert.Equal(t, int64(5), snap[resultKey("complete")])
	assert.Equal(t, int64(1), snap["monitors.checkin.dropped.ratelimited{source=consumer}"])
}

func TestProcessMessage_Killswitch(t *testing.T) {
	h := newDriverHarness([]killswitch.Entry{{
		Name:    killswitchDisableCheckIn,
		Context: map[string]string{"organization_id": "10"},
	}})
	ctx := context.Background()

	h.driver.ProcessMessage(ctx, checkInMessage(t, validPayload(uuid.NewString()), startTime), startTime)

	snap := h.counters.Snapshot()
	assert.Equal(t, int64(1), snap["monitors.checkin.dropped.blocked{source=consumer}"])
	assert.Zero(t, h.counters.Count("monitors.checkin.result"))

	_, err := h.store.MonitorBySlug(ctx, testProject.OrganizationID, testProject.ID, "nightly-backup")
	assert.Error(t, err, "blocked check-in must not create anything")
}

func TestProcessMessage_ValidationFailures(t *testing.T) {
	badDuration := -5.0

	cases := []struct {
		name string
		mut  func(p *Payload)
	}{
		{"unknown status", func(p *Payload) { p.Status = "exploded" }},
		{"sweep-only status", func(p *Payload) { p.Status = "timeout" }},
		{"negative duration", func(p *Payload) { p.Duration = &badDuration }},
		{"empty slug", func(p *Payload) { p.MonitorSlug = "!!!" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newDriverHarness(nil)
			p := validPayload(uuid.NewString())
			tc.mut(&p)

			h.driver.ProcessMessage(context.Background(), checkInMessage(t, p, startTime), startTime)

			assert.Equal(t, int64(1), h.counters.Snapshot()[resultKey("failed_checkin_validation")])
		})
	}
}

func TestProcessMessage_UndecodableEnvelope(t *testing.T) {
	h := newDriverHarness(nil)

	h.driver.ProcessMessage(context.Background(), []byte("not json"), startTime)

	snap := h.counters.Snapshot()
	assert.Equal(t, int64(1), snap["monitors.checkin.result{source=consumer,status=error}"])
}

func TestProcessMessage_ErrorStatusForwardsTrace(t *testing.T) {
	h := newDriverHarness(nil)

	p := validPayload(uuid.NewString())
	p.Status = "error"
	p.Contexts.Trace.TraceID = "trace-xyz"

	h.driver.ProcessMessage(context.Background(), checkInMessage(t, p, startTime), startTime)

	assert.Equal(t, int64(1), h.counters.Snapshot()[resultKey("complete")])
	require.Len(t, h.signals.failures, 1)
	assert.Equal(t, "trace-xyz", h.signals.failures[0].TraceID)
}

func TestProcessMessage_WireDurationConversion(t *testing.T) {
	h := newDriverHarness(nil)
	ctx := context.Background()
	guid := uuid.NewString()

	seconds := 1.5
	p := validPayload(guid)
	p.Duration = &seconds

	h.driver.ProcessMessage(ctx, checkInMessage(t, p, startTime), startTime)

	row, err := h.store.CheckInByGUID(ctx, uuid.MustParse(guid))
	require.NoError(t, err)
	require.NotNil(t, row.Duration)
	assert.Equal(t, int64(1500), *row.Duration)
}
