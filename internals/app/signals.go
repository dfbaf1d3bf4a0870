package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cronguard/internals/modules/checkin"
	"cronguard/internals/modules/monitor"
	"cronguard/internals/modules/project"
	"cronguard/pkg/redisstore"

	"github.com/rs/zerolog"
)

type signalPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// SignalEmitter turns monitor lifecycle signals and failure occurrences
// into broker messages for the downstream collaborators (onboarding,
// alerting). Fire-and-forget: a publish failure is logged, never
// surfaced to the reconciliation path.
type SignalEmitter struct {
	publisher  signalPublisher
	routingKey string
	logger     *zerolog.Logger
}

func NewSignalEmitter(publisher signalPublisher, routingKey string, logger *zerolog.Logger) *SignalEmitter {
	return &SignalEmitter{
		publisher:  publisher,
		routingKey: routingKey,
		logger:     logger,
	}
}

type signalEvent struct {
	Kind           string `json:"kind"`
	OrganizationID int64  `json:"organization_id"`
	ProjectID      int64  `json:"project_id"`
	MonitorID      int64  `json:"monitor_id"`
	MonitorSlug    string `json:"monitor_slug"`
}

func (s *SignalEmitter) FirstMonitorCreated(ctx context.Context, p project.Project, m *monitor.Monitor) {
	s.emit(ctx, signalEvent{
		Kind:           "first_monitor_created",
		OrganizationID: p.OrganizationID,
		ProjectID:      p.ID,
		MonitorID:      m.ID,
		MonitorSlug:    m.Slug,
	})
}

func (s *SignalEmitter) FirstCheckIn(ctx context.Context, p project.Project, m *monitor.Monitor) {
	s.emit(ctx, signalEvent{
		Kind:           "first_checkin",
		OrganizationID: p.OrganizationID,
		ProjectID:      p.ID,
		MonitorID:      m.ID,
		MonitorSlug:    m.Slug,
	})
}

func (s *SignalEmitter) emit(ctx context.Context, ev signalEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", ev.Kind).Msg("failed to encode signal")
		return
	}
	if err := s.publisher.Publish(ctx, s.routingKey, body); err != nil {
		s.logger.Error().Err(err).Str("kind", ev.Kind).Msg("failed to publish signal")
	}
}

type failureEvent struct {
	Kind       string             `json:"kind"`
	MonitorEnv int64              `json:"monitor_environment_id"`
	Occurrence monitor.Occurrence `json:"occurrence"`
}

// MonitorFailed hands a failed environment to alerting.
func (s *SignalEmitter) MonitorFailed(ctx context.Context, env *monitor.Environment, occ monitor.Occurrence) {
	body, err := json.Marshal(failureEvent{
		Kind:       "monitor_failed",
		MonitorEnv: env.ID,
		Occurrence: occ,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("monitor_slug", occ.MonitorSlug).Msg("failed to encode failure occurrence")
		return
	}
	if err := s.publisher.Publish(ctx, s.routingKey, body); err != nil {
		s.logger.Error().Err(err).Str("monitor_slug", occ.MonitorSlug).Msg("failed to publish failure occurrence")
	}
}

// redisLocker adapts the redis lease store to the reconciler's locker
// contract.
type redisLocker struct {
	client *redisstore.Client
}

func (l *redisLocker) AcquireLock(ctx context.Context, name string, ttl time.Duration) (checkin.Lease, error) {
	lease, err := l.client.AcquireLock(ctx, name, ttl)
	if errors.Is(err, redisstore.ErrLockTaken) {
		return nil, checkin.ErrLockTaken
	}
	if err != nil {
		return nil, err
	}
	return lease, nil
}
