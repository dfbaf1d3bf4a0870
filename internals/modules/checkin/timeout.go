package checkin

import (
	"time"

	"cronguard/internals/modules/monitor"
)

// TimeoutAt computes the sweep deadline for a freshly created check-in.
// Only an in-progress check-in can time out; terminal statuses carry no
// deadline.
func TimeoutAt(cfg monitor.Config, status Status, start time.Time) *time.Time {
	if status != StatusInProgress {
		return nil
	}
	at := start.Add(cfg.MaxRuntimeDuration())
	return &at
}

// NewTimeoutAt recomputes the deadline when an existing check-in
// transitions. A heartbeat (another in_progress) pushes the deadline
// out from the new timestamp; a terminal transition clears it.
func NewTimeoutAt(cfg monitor.Config, newStatus Status, ts time.Time) *time.Time {
	return TimeoutAt(cfg, newStatus, ts)
}
