package checkin

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusOK         Status = "ok"
	StatusError      Status = "error"

	// Reachable only through the periodic sweep, never through the
	// ingestion path.
	StatusTimeout Status = "timeout"
	StatusMissed  Status = "missed"
)

// ParseStatus accepts the statuses a client may report. Sweep-only
// statuses are not valid wire input.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusInProgress, StatusOK, StatusError:
		return Status(s), true
	}
	return "", false
}

// Finished reports whether the status is terminal: no further
// transitions are accepted from the ingestion path.
func (s Status) Finished() bool {
	switch s {
	case StatusOK, StatusError, StatusTimeout, StatusMissed:
		return true
	}
	return false
}

// Durations are stored in whole milliseconds, bounded by a sanity
// ceiling of one day. Anything past that is clock skew or garbage, not
// a job run.
const maxDurationMs = int64(24 * time.Hour / time.Millisecond)

func ValidDuration(d *int64) bool {
	return d == nil || (*d >= 0 && *d <= maxDurationMs)
}

// DurationFromSeconds converts a wire duration (fractional seconds) to
// stored milliseconds. Nil stays nil: "unknown, to be inferred".
func DurationFromSeconds(sec *float64) *int64 {
	if sec == nil {
		return nil
	}
	ms := int64(math.Round(*sec * 1000))
	return &ms
}

type CheckIn struct {
	ID            int64
	GUID          uuid.UUID
	ProjectID     int64
	MonitorID     int64
	EnvironmentID int64
	Status        Status
	Duration      *int64 // milliseconds
	DateAdded     time.Time
	DateUpdated   time.Time
	ExpectedTime  *time.Time
	TimeoutAt     *time.Time
	TraceID       string
}
