package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"cronguard/internals/modules/checkin"
	"cronguard/internals/modules/monitor"
	"cronguard/pkg/apperror"

	"github.com/google/uuid"
)

// Store is an in-memory stand-in for the Postgres-backed stores. One
// mutex plays the role of the transaction: a unit of work holds it for
// its whole read-decide-write sequence, and a failed unit restores the
// pre-transaction snapshot.
type Store struct {
	mu       sync.Mutex
	monitors map[int64]*monitor.Monitor
	envs     map[int64]*monitor.Environment
	checkins map[int64]*checkin.CheckIn
	nextID   int64
}

func NewStore() *Store {
	return &Store{
		monitors: make(map[int64]*monitor.Monitor),
		envs:     make(map[int64]*monitor.Environment),
		checkins: make(map[int64]*checkin.CheckIn),
	}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, st checkin.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	monitors, envs, checkins, nextID := s.snapshot()
	if err := fn(ctx, s); err != nil {
		s.monitors, s.envs, s.checkins, s.nextID = monitors, envs, checkins, nextID
		return err
	}
	return nil
}

func (s *Store) snapshot() (map[int64]*monitor.Monitor, map[int64]*monitor.Environment, map[int64]*checkin.CheckIn, int64) {
	monitors := make(map[int64]*monitor.Monitor, len(s.monitors))
	for id, m := range s.monitors {
		cp := *m
		monitors[id] = &cp
	}
	envs := make(map[int64]*monitor.Environment, len(s.envs))
	for id, e := range s.envs {
		cp := *e
		envs[id] = &cp
	}
	checkins := make(map[int64]*checkin.CheckIn, len(s.checkins))
	for id, c := range s.checkins {
		cp := *c
		checkins[id] = &cp
	}
	return monitors, envs, checkins, s.nextID
}

func (s *Store) allocID() int64 {
	s.nextID++
	return s.nextID
}

// --- monitor.Store ---

func (s *Store) MonitorBySlug(ctx context.Context, orgID, projectID int64, slug string) (*monitor.Monitor, error) {
	for _, m := range s.monitors {
		if m.OrganizationID == orgID && m.ProjectID == projectID && m.Slug == slug {
			cp := *m
			return &cp, nil
		}
	}
	return nil, apperror.New(apperror.NotFound, "memory.monitor.by_slug", errors.New("monitor not found"))
}

func (s *Store) CountMonitors(ctx context.Context, orgID int64) (int64, error) {
	var n int64
	for _, m := range s.monitors {
		if m.OrganizationID == orgID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateMonitor(ctx context.Context, m *monitor.Monitor) error {
	for _, ex := range s.monitors {
		if ex.OrganizationID == m.OrganizationID && ex.ProjectID == m.ProjectID && ex.Slug == m.Slug {
			return apperror.New(apperror.Conflict, "memory.monitor.create", errors.New("slug taken"))
		}
	}
	m.ID = s.allocID()
	m.CreatedAt = time.Now()
	cp := *m
	s.monitors[m.ID] = &cp
	return nil
}

func (s *Store) UpdateMonitorConfig(ctx context.Context, id int64, cfg monitor.Config) error {
	m, ok := s.monitors[id]
	if !ok {
		return apperror.New(apperror.NotFound, "memory.monitor.update_config", errors.New("monitor not found"))
	}
	m.Config = cfg
	return nil
}

func (s *Store) EnvironmentByName(ctx context.Context, monitorID int64, name string) (*monitor.Environment, error) {
	for _, e := range s.envs {
		if e.MonitorID == monitorID && e.Name == name {
			cp := *e
			return &cp, nil
		}
	}
	return nil, apperror.New(apperror.NotFound, "memory.environment.by_name", errors.New("environment not found"))
}

func (s *Store) CountEnvironments(ctx context.Context, monitorID int64) (int64, error) {
	var n int64
	for _, e := range s.envs {
		if e.MonitorID == monitorID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateEnvironment(ctx context.Context, e *monitor.Environment) error {
	for _, ex := range s.envs {
		if ex.MonitorID == e.MonitorID && ex.Name == e.Name {
			return apperror.New(apperror.Conflict, "memory.environment.create", errors.New("name taken"))
		}
	}
	e.ID = s.allocID()
	e.CreatedAt = time.Now()
	cp := *e
	s.envs[e.ID] = &cp
	return nil
}

func (s *Store) UpdateEnvironmentOK(ctx context.Context, id int64, lastCheckIn time.Time, next *time.Time) error {
	e, ok := s.envs[id]
	if !ok {
		return apperror.New(apperror.NotFound, "memory.environment.update_ok", errors.New("environment not found"))
	}
	e.LastCheckIn = &lastCheckIn
	e.LastState = monitor.EnvStateOK
	e.NextCheckIn = next
	return nil
}

func (s *Store) MarkEnvironmentFailed(ctx context.Context, id int64, failedAt time.Time) error {
	e, ok := s.envs[id]
	if !ok {
		return apperror.New(apperror.NotFound, "memory.environment.mark_failed", errors.New("environment not found"))
	}
	e.LastCheckIn = &failedAt
	e.LastState = monitor.EnvStateFailed
	return nil
}

// --- checkin.Store ---

func (s *Store) CheckInByGUID(ctx context.Context, guid uuid.UUID) (*checkin.CheckIn, error) {
	for _, c := range s.checkins {
		if c.GUID == guid {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperror.New(apperror.NotFound, "memory.checkin.by_guid", errors.New("check-in not found"))
}

func (s *Store) LatestUnfinished(ctx context.Context, environmentID int64) (*checkin.CheckIn, error) {
	var latest *checkin.CheckIn
	for _, c := range s.checkins {
		if c.EnvironmentID != environmentID || c.Status.Finished() {
			continue
		}
		if latest == nil || c.DateAdded.After(latest.DateAdded) {
			latest = c
		}
	}
	if latest == nil {
		return nil, apperror.New(apperror.NotFound, "memory.checkin.latest_unfinished", errors.New("no unfinished check-in"))
	}
	cp := *latest
	return &cp, nil
}

func (s *Store) HasCheckIns(ctx context.Context, monitorID int64) (bool, error) {
	for _, c := range s.checkins {
		if c.MonitorID == monitorID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateCheckIn(ctx context.Context, c *checkin.CheckIn) (bool, *checkin.CheckIn, error) {
	for _, ex := range s.checkins {
		if ex.GUID == c.GUID {
			cp := *ex
			return false, &cp, nil
		}
	}
	c.ID = s.allocID()
	cp := *c
	s.checkins[c.ID] = &cp
	return true, nil, nil
}

func (s *Store) UpdateCheckIn(ctx context.Context, id int64, upd checkin.Update) error {
	c, ok := s.checkins[id]
	if !ok {
		return apperror.New(apperror.NotFound, "memory.checkin.update", errors.New("check-in not found"))
	}
	c.Status = upd.Status
	c.Duration = upd.Duration
	c.DateUpdated = upd.DateUpdated
	c.TimeoutAt = upd.TimeoutAt
	return nil
}
