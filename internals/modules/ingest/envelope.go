package ingest

import (
	"math"
	"time"
)

const (
	MessageTypeCheckIn    = "check_in"
	MessageTypeClockPulse = "clock_pulse"
)

// Envelope is the outer transport message. Producers that predate the
// type tag send no message_type; those are check-ins.
type Envelope struct {
	MessageType string  `json:"message_type"`
	Payload     string  `json:"payload"`
	StartTime   float64 `json:"start_time"` // unix seconds, fractional
	ProjectID   int64   `json:"project_id,string"`
	SDK         string  `json:"sdk"`
}

func (e Envelope) Start() time.Time {
	sec, frac := math.Modf(e.StartTime)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}

// SDKPlatform is the sdk identifier used as a metric tag; "none" when
// the producer sent nothing.
func (e Envelope) SDKPlatform() string {
	if e.SDK == "" {
		return "none"
	}
	return e.SDK
}

// Payload is the inner check-in JSON carried as a string in Envelope.
type Payload struct {
	CheckInID     string         `json:"check_in_id"`
	MonitorSlug   string         `json:"monitor_slug"`
	Status        string         `json:"status"`
	Environment   string         `json:"environment"`
	Duration      *float64       `json:"duration"` // seconds
	MonitorConfig map[string]any `json:"monitor_config"`
	Contexts      Contexts       `json:"contexts"`
}

type Contexts struct {
	Trace TraceContext `json:"trace"`
}

type TraceContext struct {
	TraceID string `json:"trace_id"`
}
