package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cronguard/internals/modules/monitor"
	"cronguard/internals/modules/project"
	"cronguard/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Outcome is the single, individually distinguishable result of
// processing one check-in event. Every branch of the reconciler ends in
// exactly one of these; the driver turns them into tagged counters.
type Outcome string

const (
	OutcomeComplete             Outcome = "complete"
	OutcomeFailedGUIDValidation Outcome = "failed_guid_validation"
	OutcomeGUIDMismatch         Outcome = "guid_mismatch"
	OutcomeCheckInFinished      Outcome = "checkin_finished"
	OutcomeFailedDurationCheck  Outcome = "failed_duration_check"
	OutcomeFailedEnvGUIDMatch   Outcome = "failed_monitor_environment_guid_match"
	OutcomeFailedMonitorLimits  Outcome = "failed_monitor_limits"
	OutcomeFailedEnvLimits      Outcome = "failed_monitor_environment_limits"
	OutcomeFailedEnvName        Outcome = "failed_monitor_environment_name"
	OutcomeFailedValidation     Outcome = "failed_validation"
	OutcomeFailedLock           Outcome = "failed_checkin_creation_lock"
	OutcomeError                Outcome = "error"
)

// Registry is the monitor-registry surface the reconciler drives inside
// its transaction.
type Registry interface {
	EnsureMonitor(ctx context.Context, st monitor.Store, p project.Project, slug, rawSlug string, rawConfig map[string]any) (*monitor.Monitor, error)
	EnsureEnvironment(ctx context.Context, st monitor.Store, p project.Project, m *monitor.Monitor, name string) (*monitor.Environment, error)
	MarkOK(ctx context.Context, st monitor.Store, m *monitor.Monitor, env *monitor.Environment, ts time.Time) error
	MarkFailed(ctx context.Context, st monitor.Store, m *monitor.Monitor, env *monitor.Environment, ts time.Time, traceID string) error
}

// Event is one decoded, pre-validated check-in. Duration is already in
// milliseconds; nil means "infer it".
type Event struct {
	Project       project.Project
	MonitorSlug   string // slugified
	RawSlug       string // as sent, for the legacy dual-read
	Environment   string
	CheckInID     string
	Status        Status
	Duration      *int64
	MonitorConfig map[string]any
	TraceID       string
	StartTime     time.Time
}

type Reconciler struct {
	tx       TxRunner
	locker   Locker
	registry Registry
	signals  monitor.Signals
	lockTTL  time.Duration
	logger   *zerolog.Logger
}

func NewReconciler(
	tx TxRunner,
	locker Locker,
	registry Registry,
	signals monitor.Signals,
	lockTTL time.Duration,
	logger *zerolog.Logger,
) *Reconciler {
	return &Reconciler{
		tx:       tx,
		locker:   locker,
		registry: registry,
		signals:  signals,
		lockTTL:  lockTTL,
		logger:   logger,
	}
}

// Process runs the full reconciliation for one event: resolve monitor
// and environment, find or create the check-in row, apply the status
// transition, and propagate the result onto the environment. The whole
// read-decide-write sequence holds the per-GUID lock and runs in one
// transaction, so partial writes never become visible.
func (r *Reconciler) Process(ctx context.Context, ev Event) Outcome {
	checkInID, err := uuid.Parse(ev.CheckInID)
	if err != nil {
		r.logger.Info().Str("check_in_id", ev.CheckInID).Msg("check-in guid validation failed")
		return OutcomeFailedGUIDValidation
	}

	// The zero GUID is a sentinel: update the most recent unfinished
	// check-in instead of looking up by GUID, and mint a fresh GUID in
	// case a new row has to be created.
	useLatest := checkInID == uuid.Nil
	guid := checkInID
	if useLatest {
		guid = uuid.New()
	}

	lease, err := r.locker.AcquireLock(ctx, fmt.Sprintf("checkin-creation:%s", guid), r.lockTTL)
	if errors.Is(err, ErrLockTaken) {
		r.logger.Info().Str("guid", guid.String()).Msg("failed to acquire lock to create check-in")
		return OutcomeFailedLock
	}
	if err != nil {
		r.logger.Error().Err(err).Str("guid", guid.String()).Msg("lock service unavailable")
		return OutcomeError
	}
	defer func() {
		if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil {
			r.logger.Warn().Err(relErr).Str("guid", guid.String()).Msg("failed to release check-in lock")
		}
	}()

	outcome := OutcomeError
	err = r.tx.InTx(ctx, func(ctx context.Context, st Stores) error {
		var ierr error
		outcome, ierr = r.reconcile(ctx, st, ev, guid, useLatest)
		return ierr
	})
	if err != nil {
		r.logger.Error().Err(err).
			Str("guid", guid.String()).
			Str("monitor_slug", ev.MonitorSlug).
			Msg("failed to process check-in")
		return OutcomeError
	}

	return outcome
}

// reconcile runs inside the transaction. A returned error aborts the
// transaction so no partial writes survive; a rejection outcome with a
// nil error commits whatever monitor or environment rows were created
// along the way.
func (r *Reconciler) reconcile(ctx context.Context, st Stores, ev Event, guid uuid.UUID, useLatest bool) (Outcome, error) {
	m, err := r.registry.EnsureMonitor(ctx, st, ev.Project, ev.MonitorSlug, ev.RawSlug, ev.MonitorConfig)
	switch {
	case errors.Is(err, monitor.ErrMonitorLimits):
		r.logger.Info().Int64("organization_id", ev.Project.OrganizationID).Msg("monitor exceeds limits for organization")
		return OutcomeFailedMonitorLimits, nil
	case err != nil:
		return OutcomeError, err
	case m == nil:
		r.logger.Info().Str("monitor_slug", ev.MonitorSlug).Msg("monitor validation failed")
		return OutcomeFailedValidation, nil
	}

	env, err := r.registry.EnsureEnvironment(ctx, st, ev.Project, m, ev.Environment)
	switch {
	case errors.Is(err, monitor.ErrEnvironmentLimits):
		r.logger.Info().Str("monitor_slug", ev.MonitorSlug).Msg("monitor environment exceeds limits for monitor")
		return OutcomeFailedEnvLimits, nil
	case errors.Is(err, monitor.ErrEnvironmentValidation):
		r.logger.Info().Str("monitor_slug", ev.MonitorSlug).Str("environment", ev.Environment).Msg("invalid monitor environment name")
		return OutcomeFailedEnvName, nil
	case err != nil:
		return OutcomeError, err
	}

	var existing *CheckIn
	if useLatest {
		existing, err = st.LatestUnfinished(ctx, env.ID)
		if err != nil && !apperror.IsKind(err, apperror.NotFound) {
			return OutcomeError, err
		}
	} else {
		existing, err = st.CheckInByGUID(ctx, guid)
		if err != nil && !apperror.IsKind(err, apperror.NotFound) {
			return OutcomeError, err
		}
		if existing != nil && existing.EnvironmentID != env.ID {
			r.logger.Info().
				Str("guid", guid.String()).
				Str("environment", ev.Environment).
				Msg("monitor environment does not match on existing guid")
			return OutcomeFailedEnvGUIDMatch, nil
		}
	}

	var final *CheckIn
	if existing != nil {
		outcome, err := r.updateExisting(ctx, st, existing, m, ev)
		if err != nil || outcome != OutcomeComplete {
			return outcome, err
		}
		final = existing
	} else {
		row, outcome, err := r.createNew(ctx, st, ev, guid, m, env)
		if err != nil || outcome != OutcomeComplete {
			return outcome, err
		}
		final = row
	}

	// Propagate the persisted status onto the environment projection,
	// inside the same critical section.
	if final.Status == StatusError {
		err = r.registry.MarkFailed(ctx, st, m, env, ev.StartTime, ev.TraceID)
	} else {
		err = r.registry.MarkOK(ctx, st, m, env, ev.StartTime)
	}
	if err != nil {
		return OutcomeError, err
	}

	return OutcomeComplete, nil
}

// updateExisting applies a status transition to a found row. Rejections
// leave the row untouched.
func (r *Reconciler) updateExisting(ctx context.Context, st Stores, existing *CheckIn, m *monitor.Monitor, ev Event) (Outcome, error) {
	if existing.ProjectID != ev.Project.ID || existing.MonitorID != m.ID {
		r.logger.Info().
			Str("guid", existing.GUID.String()).
			Int64("existing_monitor_id", existing.MonitorID).
			Int64("payload_monitor_id", m.ID).
			Msg("check-in guid already associated with another monitor")
		return OutcomeGUIDMismatch, nil
	}

	if existing.Status.Finished() {
		r.logger.Info().
			Str("from", string(existing.Status)).
			Str("to", string(ev.Status)).
			Msg("check-in was finished, update dropped")
		return OutcomeCheckInFinished, nil
	}

	duration := ev.Duration
	if duration == nil {
		// Infer elapsed time from the event's start against when the
		// check-in was originally opened.
		inferred := ev.StartTime.Sub(existing.DateAdded).Milliseconds()
		duration = &inferred
	}
	if !ValidDuration(duration) {
		r.logger.Info().Int64("duration_ms", *duration).Msg("check-in implicit duration is invalid")
		return OutcomeFailedDurationCheck, nil
	}

	// date_updated advances on a heartbeat only; terminal transitions
	// keep the last in-progress timestamp.
	dateUpdated := existing.DateUpdated
	if ev.Status == StatusInProgress {
		dateUpdated = ev.StartTime
	}

	timeoutAt := NewTimeoutAt(m.Config, ev.Status, ev.StartTime)

	upd := Update{
		Status:      ev.Status,
		Duration:    duration,
		DateUpdated: dateUpdated,
		TimeoutAt:   timeoutAt,
	}
	if err := st.UpdateCheckIn(ctx, existing.ID, upd); err != nil {
		return OutcomeError, err
	}

	existing.Status = ev.Status
	existing.Duration = duration
	existing.DateUpdated = dateUpdated
	existing.TimeoutAt = timeoutAt
	return OutcomeComplete, nil
}

func (r *Reconciler) createNew(ctx context.Context, st Stores, ev Event, guid uuid.UUID, m *monitor.Monitor, env *monitor.Environment) (*CheckIn, Outcome, error) {
	// A single late-arriving finished event should still anchor to when
	// the job actually began, so back-compute the start from the
	// duration. The worker's clock may be off from the producer's;
	// accepted as-is.
	dateAdded := ev.StartTime
	if ev.Duration != nil {
		dateAdded = dateAdded.Add(-time.Duration(*ev.Duration) * time.Millisecond)
	}

	if !ValidDuration(ev.Duration) {
		r.logger.Info().Int64("duration_ms", *ev.Duration).Msg("check-in duration is invalid")
		return nil, OutcomeFailedDurationCheck, nil
	}

	var expected *time.Time
	if env.LastCheckIn != nil {
		if at, err := m.Config.NextExpected(*env.LastCheckIn); err == nil {
			expected = &at
		} else {
			r.logger.Warn().Err(err).Str("monitor_slug", m.Slug).Msg("failed to compute expected check-in time")
		}
	}

	hadCheckIns, err := st.HasCheckIns(ctx, m.ID)
	if err != nil {
		return nil, OutcomeError, err
	}

	c := &CheckIn{
		GUID:          guid,
		ProjectID:     ev.Project.ID,
		MonitorID:     m.ID,
		EnvironmentID: env.ID,
		Status:        ev.Status,
		Duration:      ev.Duration,
		DateAdded:     dateAdded,
		DateUpdated:   ev.StartTime,
		ExpectedTime:  expected,
		TimeoutAt:     TimeoutAt(m.Config, ev.Status, dateAdded),
		TraceID:       ev.TraceID,
	}

	created, existing, err := st.CreateCheckIn(ctx, c)
	if err != nil {
		return nil, OutcomeError, err
	}

	if !created {
		// Concurrent writer created the row between our read and this
		// write; fall back to the update path against their row.
		if existing.EnvironmentID != env.ID {
			return nil, OutcomeFailedEnvGUIDMatch, nil
		}
		outcome, err := r.updateExisting(ctx, st, existing, m, ev)
		return existing, outcome, err
	}

	if !hadCheckIns {
		r.signals.FirstCheckIn(ctx, ev.Project, m)
	}

	return c, OutcomeComplete, nil
}
