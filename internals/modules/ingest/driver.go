package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"cronguard/internals/modules/checkin"
	"cronguard/internals/modules/monitor"
	"cronguard/internals/modules/project"
	"cronguard/pkg/metrics"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Organization-scoped kill switch; when tripped, every check-in for
// that organization is dropped before touching the database.
const killswitchDisableCheckIn = "crons.organization.disable-check-in"

const (
	metricResult             = "monitors.checkin.result"
	metricDroppedBlocked     = "monitors.checkin.dropped.blocked"
	metricDroppedRatelimited = "monitors.checkin.dropped.ratelimited"
)

type Projects interface {
	GetByID(ctx context.Context, id int64) (project.Project, error)
}

type Killswitch interface {
	Matches(name string, ctx map[string]string) bool
}

type RateLimiter interface {
	IsLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Ticker interface {
	TryClaim(ctx context.Context, ts time.Time) (bool, error)
}

type SweepDispatcher interface {
	Dispatch(ctx context.Context, tick time.Time) error
}

type Reconciler interface {
	Process(ctx context.Context, ev checkin.Event) checkin.Outcome
}

// Driver decodes transport messages and runs one check-in at a time
// through the gates and the reconciler. It never fails a message back
// to the broker: a message is processed once or dropped with a counted
// outcome, and the stream always advances.
type Driver struct {
	ticker      Ticker
	dispatcher  SweepDispatcher
	projects    Projects
	killswitch  Killswitch
	limiter     RateLimiter
	reconciler  Reconciler
	counter     metrics.Counter
	quotaLimit  int
	quotaWindow time.Duration
	logger      *zerolog.Logger
}

func NewDriver(
	ticker Ticker,
	dispatcher SweepDispatcher,
	projects Projects,
	killswitch Killswitch,
	limiter RateLimiter,
	reconciler Reconciler,
	counter metrics.Counter,
	quotaLimit int,
	quotaWindow time.Duration,
	logger *zerolog.Logger,
) *Driver {
	return &Driver{
		ticker:      ticker,
		dispatcher:  dispatcher,
		projects:    projects,
		killswitch:  killswitch,
		limiter:     limiter,
		reconciler:  reconciler,
		counter:     counter,
		quotaLimit:  quotaLimit,
		quotaWindow: quotaWindow,
		logger:      logger,
	}
}

// Handle implements the broker consumer's handler. It always returns
// nil so the delivery is acked regardless of outcome.
func (d *Driver) Handle(ctx context.Context, msg amqp091.Delivery) error {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	d.ProcessMessage(ctx, msg.Body, ts)
	return nil
}

// ProcessMessage runs one raw transport message to completion. ts is
// the transport's delivery timestamp and paces the shared clock.
func (d *Driver) ProcessMessage(ctx context.Context, raw []byte, ts time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error().Interface("panic", rec).Msg("panic while processing check-in message")
			d.counter.Incr(metricResult, metrics.Tags{"source": "consumer", "status": string(checkin.OutcomeError)})
		}
	}()

	// Every message, of any type, drives the shared minute clock. A
	// broken register must never take ingestion down with it.
	d.tryTick(ctx, ts)

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.logger.Error().Err(err).Msg("failed to decode message envelope")
		d.counter.Incr(metricResult, metrics.Tags{"source": "consumer", "status": string(checkin.OutcomeError)})
		return
	}

	if env.MessageType == MessageTypeClockPulse {
		return
	}

	d.processCheckIn(ctx, env)
}

func (d *Driver) tryTick(ctx context.Context, ts time.Time) {
	won, err := d.ticker.TryClaim(ctx, ts)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to trigger monitor tick")
		return
	}
	if !won {
		return
	}
	if err := d.dispatcher.Dispatch(ctx, ts.Truncate(time.Minute)); err != nil {
		d.logger.Error().Err(err).Msg("failed to dispatch monitor sweep tasks")
	}
}

func (d *Driver) processCheckIn(ctx context.Context, env Envelope) {
	platform := env.SDKPlatform()

	var p Payload
	if err := json.Unmarshal([]byte(env.Payload), &p); err != nil {
		d.logger.Info().Err(err).Int64("project_id", env.ProjectID).Msg("failed to decode check-in payload")
		d.result("failed_checkin_validation", platform)
		return
	}

	status, ok := checkin.ParseStatus(p.Status)
	if !ok {
		d.logger.Info().Str("status", p.Status).Msg("unknown check-in status")
		d.result("failed_checkin_validation", platform)
		return
	}

	duration := checkin.DurationFromSeconds(p.Duration)
	if !checkin.ValidDuration(duration) {
		d.logger.Info().Int64("duration_ms", *duration).Msg("check-in duration out of bounds")
		d.result("failed_checkin_validation", platform)
		return
	}

	slug := monitor.Slugify(p.MonitorSlug)
	if slug == "" {
		d.logger.Info().Str("monitor_slug", p.MonitorSlug).Msg("empty monitor slug after normalization")
		d.result("failed_checkin_validation", platform)
		return
	}

	proj, err := d.projects.GetByID(ctx, env.ProjectID)
	if err != nil {
		d.logger.Error().Err(err).Int64("project_id", env.ProjectID).Msg("failed to resolve project")
		d.result(string(checkin.OutcomeError), platform)
		return
	}

	if d.killswitch.Matches(killswitchDisableCheckIn, map[string]string{
		"organization_id": strconv.FormatInt(proj.OrganizationID, 10),
	}) {
		d.logger.Info().Int64("organization_id", proj.OrganizationID).Msg("check-in dropped by kill switch")
		d.counter.Incr(metricDroppedBlocked, metrics.Tags{"source": "consumer"})
		return
	}

	limitKey := fmt.Sprintf("monitor-checkins:%d:%s:%s", proj.OrganizationID, slug, p.Environment)
	limited, err := d.limiter.IsLimited(ctx, limitKey, d.quotaLimit, d.quotaWindow)
	if err != nil {
		// Fail open: the limiter protects throughput, it is not a ledger.
		d.logger.Warn().Err(err).Str("key", limitKey).Msg("rate limiter unavailable")
	}
	if limited {
		d.logger.Info().Str("key", limitKey).Msg("check-in dropped by rate limit")
		d.counter.Incr(metricDroppedRatelimited, metrics.Tags{"source": "consumer"})
		return
	}

	outcome := d.reconciler.Process(ctx, checkin.Event{
		Project:       proj,
		MonitorSlug:   slug,
		RawSlug:       p.MonitorSlug,
		Environment:   p.Environment,
		CheckInID:     p.CheckInID,
		Status:        status,
		Duration:      duration,
		MonitorConfig: p.MonitorConfig,
		TraceID:       p.Contexts.Trace.TraceID,
		StartTime:     env.Start(),
	})
	d.result(string(outcome), platform)
}

func (d *Driver) result(status, platform string) {
	d.counter.Incr(metricResult, metrics.Tags{
		"source":       "consumer",
		"status":       status,
		"sdk_platform": platform,
	})
}
