package checkin_test

import (
	"context"
	"testing"
	"time"

	"cronguard/internals/modules/checkin"
	"cronguard/internals/modules/monitor"
	"cronguard/internals/modules/project"
	"cronguard/internals/storage/memory"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

type harness struct {
	reconciler *checkin.Reconciler
	store      *memory.Store
	locker     *memory.Locker
	signals    *signalRecorder
}

func newHarness() *harness {
	logger := zerolog.Nop()
	store := memory.NewStore()
	locker := memory.NewLocker()
	rec := &signalRecorder{}
	registry := monitor.NewService(1500, 1000, rec, rec, &logger)

	return &harness{
		reconciler: checkin.NewReconciler(store, locker, registry, rec, 2*time.Second, &logger),
		store:      store,
		locker:     locker,
		signals:    rec,
	}
}

var testProject = project.Project{ID: 1, OrganizationID: 10, Slug: "backend"}

var startTime = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

func makeEvent(guid string, status checkin.Status) checkin.Event {
	return checkin.Event{
		Project:     testProject,
		MonitorSlug: "nightly-backup",
		RawSlug:     "nightly-backup",
		Environment: "production",
		CheckInID:   guid,
		Status:      status,
		MonitorConfig: map[string]any{
			"schedule_type": "crontab",
			"schedule":      "0 * * * *",
		},
		TraceID:   "trace-abc",
		StartTime: startTime,
	}
}

func TestProcess_FirstCheckInCreatesEverything(t *testing.T) {
	h := newHarness()
	guid := uuid.NewString()

	outcome := h.reconciler.Process(context.Background(), makeEvent(guid, checkin.StatusInProgress))

	require.Equal(t, checkin.OutcomeComplete, outcome)
	assert.Equal(t, 1, h.signals.firstMonitor)
	assert.Equal(t, 1, h.signals.firstCheckIn)

	row, err := h.store.CheckInByGUID(context.Background(), uuid.MustParse(guid))
	require.NoError(t, err)
	assert.Equal(t, checkin.StatusInProgress, row.Status)
	assert.Equal(t, testProject.ID, row.ProjectID)
	assert.Equal(t, startTime, row.DateAdded)
	require.NotNil(t, row.TimeoutAt, "in-progress check-in carries a sweep deadline")
	assert.Equal(t, startTime.Add(30*time.Minute), *row.TimeoutAt)
}

func TestProcess_MalformedGUID(t *testing.T) {
	h := newHarness()

	outcome := h.reconciler.Process(context.Background(), makeEvent("not-a-guid", checkin.StatusOK))

	assert.Equal(t, checkin.OutcomeFailedGUIDValidation, outcome)
}

func TestProcess_TerminalStateIsSticky(t *testing.T) {
	h := newHarness()
	guid := uuid.NewString()
	ctx := context.Background()

	require.Equal(t, checkin.OutcomeComplete, h.reconciler.Process(ctx, makeEvent(guid, checkin.StatusOK)))

	// replaying after the terminal transition changes nothing
	for n := 0; n < 2; n++ {
		outcome := h.reconciler.Process(ctx, makeEvent(guid, checkin.StatusInProgress))
		assert.Equal(t, checkin.OutcomeCheckInFinished, outcome)
	}

	row, err := h.store.CheckInByGUID(ctx, uuid.MustParse(guid))
	require.NoError(t, err)
	assert.Equal(t, checkin.StatusOK, row.Status)
}

func TestProcess_ZeroGUIDUpdatesLatestUnfinished(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	guid := uuid.NewString()

	opened := makeEvent(guid, checkin.StatusInProgress)
	require.Equal(t, checkin.OutcomeComplete, h.reconciler.Process(ctx, opened))

	closing := makeEvent(uuid.Nil.String(), checkin.StatusOK)
	closing.StartTime = startTime.Add(90 * time.Second)
	require.Equal(t, checkin.OutcomeComplete, h.reconciler.Process(ctx, closing))

	row, err := h.store.CheckInByGUID(ctx, uuid.MustParse(guid))
	require.NoError(t, err)
	assert.Equal(t, checkin.StatusOK, row.Status)

	// duration inferred from the original creation time
	require.NotNil(t, row.Duration)
	assert.Equal(t, int64(90_000), *row.Duration)

	// the terminal transition did not advance the heartbeat timestamp
	assert.Equal(t, startTime, row.DateUpdated)
	assert.Nil(t, row.TimeoutAt)
}

func TestProcess_ZeroGUIDCreatesWhenNothingOpen(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	outcome := h.reconciler.Process(ctx, makeEvent(uuid.Nil.String(), checkin.StatusInProgress))
	require.Equal(t, checkin.OutcomeComplete, outcome)

	row, err := h.store.LatestUnfinished(ctx, 2) // first env id allocated after the monitor
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, row.GUID, "sentinel creates under a freshly minted guid")
}

func TestProcess_EnvironmentMismatchOnExistingGUID(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	guid := uuid.NewString()

	require.Equal(t, checkin.OutcomeComplete, h.reconciler.Process(ctx, makeEvent(guid, checkin.StatusInProgress)))

	moved := makeEvent(guid, checkin.StatusOK)
	moved.Environment = "staging"
	outcome := h.reconciler.Process(ctx, moved)

	assert.Equal(t, checkin.OutcomeFailedEnvGUIDMatch, outcome)

	row, err := h.store.CheckInByGUID(ctx, uuid.MustParse(guid))
	require.NoError(t, err)
	assert.Equal(t, checkin.StatusInProgress, row.Status, "rejected update must not mutate")
}

func TestProcess_NegativeInferredDuration(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	guid := uuid.NewString()

	require.Equal(t, checkin.OutcomeComplete, h.reconciler.Process(ctx, makeEvent(guid, checkin.StatusInProgress)))

	// event timestamped before the check-in was opened
	early := makeEvent(guid, checkin.StatusOK)
	early.StartTime = startTime.Add(-time.Minute)

	assert.Equal(t, checkin.OutcomeFailedDurationCheck, h.reconciler.Process(ctx, early))
}

func TestProcess_ExplicitDurationBackdatesCreation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	guid := uuid.NewString()

	dur := int64(120_000) // 2 minutes in ms
	ev := makeEvent(guid, checkin.StatusOK)
	ev.Duration = &dur

	require.Equal(t, checkin.OutcomeComplete, h.reconciler.Process(ctx, ev))

	row, err := h.store.CheckInByGUID(ctx, uuid.MustParse(guid))
	require.NoError(t, err)
	assert.Equal(t, startTime.Add(-2*time.Minute), row.DateAdded,
		"late terminal event anchors to when the job began")
}

func TestProcess_HeartbeatAdvancesDateUpdated(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	guid := uuid.NewString()

	require.Equal(t, checkin.OutcomeComplete, h.reconciler.Process(ctx, makeEvent(guid, checkin.StatusInProgress)))

	beat := makeEvent(guid, checkin.StatusInProgress)
	beat.StartTime = startTime.Add(time.Minute)
	require.Equal(t, checkin.OutcomeComplete, h.reconciler.Process(ctx, beat))

	row, err := h.store.CheckInByGUID(ctx, uuid.MustParse(guid))
	require.NoError(t, err)
	assert.Equal(t, beat.StartTime, row.DateUpdated)
	require.NotNil(t, row.TimeoutAt)
	assert.Equal(t, beat.StartTime.Add(30*time.Minute), *row.TimeoutAt, "heartbeat pushes the deadline out")
}

func TestProcess_LockHeldFailsFast(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	guid := uuid.NewString()

	_, err := h.locker.AcquireLock(ctx, "checkin-creation:"+guid, time.Minute)
	require.NoError(t, err)

	outcome := h.reconciler.Process(ctx, makeEvent(guid, checkin.StatusInProgress))
	assert.Equal(t, checkin.OutcomeFailedLock, outcome)
}

func TestProcess_LockReleasedAfterProcessing(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	guid := uuid.NewString()

	require.Equal(t, checkin.OutcomeComplete, h.reconciler.Process(ctx, makeEvent(guid, checkin.StatusInProgress)))

	lease, err := h.locker.AcquireLock(ctx, "checkin-creation:"+guid, time.Minute)
	require.NoError(t, err, "lock must be free again after processing")
	_ = lease.Release(ctx)
}

func TestProcess_ErrorStatusMarksEnvironmentFailed(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	outcome := h.reconciler.Process(ctx, makeEvent(uuid.NewString(), checkin.StatusError))
	require.Equal(t, checkin.OutcomeComplete, outcome)

	require.Len(t, h.signals.failures, 1)
	occ := h.signals.failures[0]
	assert.Equal(t, "trace-abc", occ.TraceID)
	assert.Equal(t, "nightly-backup", occ.MonitorSlug)
	assert.Equal(t, "production", occ.Environment)
}

func TestProcess_UnknownSlugWithoutConfig(t *testing.T) {
	h := newHarness()

	ev := makeEvent(uuid.NewString(), checkin.StatusOK)
	ev.MonitorConfig = nil

	assert.Equal(t, checkin.OutcomeFailedValidation, h.reconciler.Process(context.Background(), ev))
}

func TestProcess_SignalsFireOnlyOnce(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	for n := 0; n < 3; n++ {
		require.Equal(t, checkin.OutcomeComplete,
			h.reconciler.Process(ctx, makeEvent(uuid.NewString(), checkin.StatusOK)))
	}

	assert.Equal(t, 1, h.signals.firstMonitor)
	assert.Equal(t, 1, h.signals.firstCheckIn)
}
