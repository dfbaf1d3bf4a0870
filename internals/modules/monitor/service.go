package monitor

import (
	"context"
	"strings"
	"time"

	"cronguard/internals/modules/project"
	"cronguard/pkg/apperror"

	"github.com/rs/zerolog"
)

// Service is the monitor registry: it resolves check-ins to monitors
// and environments, creating them on first contact and keeping stored
// schedule configs in sync with what producers send.
type Service struct {
	maxMonitorsPerOrg int64
	maxEnvsPerMonitor int64
	signals           Signals
	notifier          Notifier
	logger            *zerolog.Logger
}

func NewService(maxMonitorsPerOrg, maxEnvsPerMonitor int64, signals Signals, notifier Notifier, logger *zerolog.Logger) *Service {
	return &Service{
		maxMonitorsPerOrg: maxMonitorsPerOrg,
		maxEnvsPerMonitor: maxEnvsPerMonitor,
		signals:           signals,
		notifier:          notifier,
		logger:            logger,
	}
}

// EnsureMonitor resolves a monitor by slug, creating or updating it
// from the message's config payload when one is present.
//
// A nil monitor with a nil error means the slug is unknown and the
// message carried no usable config to create it from; the caller
// rejects the check-in, it is not an infrastructure failure.
func (s *Service) EnsureMonitor(ctx context.Context, st Store, p project.Project, slug, rawSlug string, rawConfig map[string]any) (*Monitor, error) {
	m, err := st.MonitorBySlug(ctx, p.OrganizationID, p.ID, slug)
	if err != nil && !apperror.IsKind(err, apperror.NotFound) {
		return nil, err
	}

	// Dual-read for monitors registered before slugs were normalized
	// on this path. Remove once no raw-slug monitors remain.
	if m == nil && rawSlug != slug {
		m, err = st.MonitorBySlug(ctx, p.OrganizationID, p.ID, rawSlug)
		if err != nil && !apperror.IsKind(err, apperror.NotFound) {
			return nil, err
		}
	}

	// Config is optional per message; without one we return whatever
	// the lookup produced, found or not.
	if rawConfig == nil {
		return m, nil
	}

	cfg, ferrs := ValidateConfig(rawConfig)
	if len(ferrs) > 0 {
		// An invalid config never blocks the check-in itself.
		s.logger.Info().
			Str("monitor_slug", slug).
			Str("field_errors", joinFieldErrors(ferrs)).
			Msg("invalid monitor_config")
		return m, nil
	}

	if m == nil {
		count, err := st.CountMonitors(ctx, p.OrganizationID)
		if err != nil {
			return nil, err
		}
		if count >= s.maxMonitorsPerOrg {
			return nil, ErrMonitorLimits
		}

		m = &Monitor{
			OrganizationID: p.OrganizationID,
			ProjectID:      p.ID,
			Slug:           slug,
			Name:           slug,
			Status:         StatusActive,
			Type:           TypeCronJob,
			Config:         cfg,
		}

		if err := st.CreateMonitor(ctx, m); err != nil {
			if apperror.IsKind(err, apperror.Conflict) {
				// Concurrent upsert won; read what it wrote.
				return st.MonitorBySlug(ctx, p.OrganizationID, p.ID, slug)
			}
			return nil, err
		}

		s.signals.FirstMonitorCreated(ctx, p, m)
		return m, nil
	}

	// Re-applying an identical config is a no-op; a changed config goes
	// through the explicit mutation path so cache/version bookkeeping
	// downstream stays honest.
	if m.Config != cfg {
		if err := st.UpdateMonitorConfig(ctx, m.ID, cfg); err != nil {
			return nil, err
		}
		m.Config = cfg
	}

	return m, nil
}

// EnsureEnvironment finds or creates the monitor's projection for one
// deployment environment, bounded by the per-monitor environment limit.
func (s *Service) EnsureEnvironment(ctx context.Context, st Store, p project.Project, m *Monitor, name string) (*Environment, error) {
	if name == "" {
		name = DefaultEnvironment
	}
	if !validEnvironmentName(name) {
		return nil, ErrEnvironmentValidation
	}

	env, err := st.EnvironmentByName(ctx, m.ID, name)
	if err == nil {
		return env, nil
	}
	if !apperror.IsKind(err, apperror.NotFound) {
		return nil, err
	}

	count, err := st.CountEnvironments(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if count >= s.maxEnvsPerMonitor {
		return nil, ErrEnvironmentLimits
	}

	env = &Environment{
		MonitorID: m.ID,
		Name:      name,
	}
	if err := st.CreateEnvironment(ctx, env); err != nil {
		if apperror.IsKind(err, apperror.Conflict) {
			return st.EnvironmentByName(ctx, m.ID, name)
		}
		return nil, err
	}

	return env, nil
}

// MarkOK records a successful (or at least non-failed) terminal
// check-in on the environment and recomputes when the next one is due.
func (s *Service) MarkOK(ctx context.Context, st Store, m *Monitor, env *Environment, ts time.Time) error {
	var next *time.Time
	if nextAt, err := m.Config.NextExpected(ts); err == nil {
		next = &nextAt
	} else {
		s.logger.Warn().Err(err).Str("monitor_slug", m.Slug).Msg("failed to compute next expected check-in")
	}

	if err := st.UpdateEnvironmentOK(ctx, env.ID, ts, next); err != nil {
		return err
	}

	env.LastCheckIn = &ts
	env.LastState = EnvStateOK
	env.NextCheckIn = next
	return nil
}

// MarkFailed records a failed check-in and hands the occurrence context
// to the alerting collaborator.
func (s *Service) MarkFailed(ctx context.Context, st Store, m *Monitor, env *Environment, ts time.Time, traceID string) error {
	if err := st.MarkEnvironmentFailed(ctx, env.ID, ts); err != nil {
		return err
	}

	env.LastCheckIn = &ts
	env.LastState = EnvStateFailed

	s.notifier.MonitorFailed(ctx, env, Occurrence{
		TraceID:     traceID,
		MonitorSlug: m.Slug,
		Environment: env.Name,
		FailedAt:    ts,
	})
	return nil
}

func validEnvironmentName(name string) bool {
	if len(name) > MaxEnvironmentNameLength {
		return false
	}
	if strings.TrimSpace(name) != name {
		return false
	}
	return !strings.ContainsAny(name, "\n\r\f/\\")
}

func joinFieldErrors(ferrs []FieldError) string {
	parts := make([]string, 0, len(ferrs))
	for _, fe := range ferrs {
		parts = append(parts, fe.String())
	}
	return strings.Join(parts, "; ")
}
