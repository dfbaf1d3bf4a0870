package monitor

import (
	"context"
	"errors"
	"time"

	"cronguard/internals/modules/project"
)

const (
	MaxSlugLength            = 50
	MaxEnvironmentNameLength = 64
	DefaultEnvironment       = "production"
)

type Status string

const (
	StatusActive          Status = "active"
	StatusDisabled        Status = "disabled"
	StatusPendingDeletion Status = "pending_deletion"
)

type Type string

const (
	TypeCronJob Type = "cron_job"
)

// EnvState is the run-state projection alerting reads: did the last
// terminal check-in succeed or fail.
type EnvState string

const (
	EnvStateOK     EnvState = "ok"
	EnvStateFailed EnvState = "failed"
)

var (
	ErrMonitorLimits         = errors.New("monitor limit exceeded for organization")
	ErrEnvironmentLimits     = errors.New("environment limit exceeded for monitor")
	ErrEnvironmentValidation = errors.New("invalid monitor environment name")
)

type Monitor struct {
	ID             int64
	OrganizationID int64
	ProjectID      int64
	Slug           string
	Name           string
	Status         Status
	Type           Type
	Config         Config
	CreatedAt      time.Time
}

// Environment is a monitor's per-deployment-environment projection.
// Created lazily on the first check-in seen for a new environment name.
type Environment struct {
	ID          int64
	MonitorID   int64
	Name        string
	LastCheckIn *time.Time
	LastState   EnvState
	NextCheckIn *time.Time
	CreatedAt   time.Time
}

type Store interface {
	MonitorBySlug(ctx context.Context, orgID, projectID int64, slug string) (*Monitor, error)
	CountMonitors(ctx context.Context, orgID int64) (int64, error)
	CreateMonitor(ctx context.Context, m *Monitor) error
	UpdateMonitorConfig(ctx context.Context, id int64, cfg Config) error

	EnvironmentByName(ctx context.Context, monitorID int64, name string) (*Environment, error)
	CountEnvironments(ctx context.Context, monitorID int64) (int64, error)
	CreateEnvironment(ctx context.Context, e *Environment) error
	UpdateEnvironmentOK(ctx context.Context, id int64, lastCheckIn time.Time, next *time.Time) error
	MarkEnvironmentFailed(ctx context.Context, id int64, failedAt time.Time) error
}

// Signals are one-time lifecycle notifications consumed by external
// collaborators (onboarding, analytics). Fire-and-forget.
type Signals interface {
	FirstMonitorCreated(ctx context.Context, p project.Project, m *Monitor)
	FirstCheckIn(ctx context.Context, p project.Project, m *Monitor)
}

// Occurrence is the context handed to alerting when an environment is
// marked failed.
type Occurrence struct {
	TraceID     string    `json:"trace_id,omitempty"`
	MonitorSlug string    `json:"monitor_slug"`
	Environment string    `json:"environment"`
	FailedAt    time.Time `json:"failed_at"`
}

type Notifier interface {
	MonitorFailed(ctx context.Context, env *Environment, occ Occurrence)
}
