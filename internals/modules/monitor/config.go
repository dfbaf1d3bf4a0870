package monitor

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

type ScheduleType string

const (
	ScheduleCrontab  ScheduleType = "crontab"
	ScheduleInterval ScheduleType = "interval"
)

const (
	DefaultCheckInMargin = 1  // minutes
	DefaultMaxRuntime    = 30 // minutes
)

// Config is the validated schedule configuration of a monitor. Raw
// payloads never cross this boundary untyped: ValidateConfig is the
// only way to produce one from wire input.
type Config struct {
	ScheduleType          ScheduleType `json:"schedule_type" validate:"required,oneof=crontab interval"`
	Schedule              string       `json:"schedule,omitempty"`
	IntervalValue         int          `json:"interval_value,omitempty" validate:"gte=0"`
	IntervalUnit          string       `json:"interval_unit,omitempty"`
	Timezone              string       `json:"timezone"`
	CheckInMargin         int          `json:"checkin_margin" validate:"gte=1"`
	MaxRuntime            int          `json:"max_runtime" validate:"gte=1"`
	FailureIssueThreshold int          `json:"failure_issue_threshold" validate:"gte=1"`
	RecoveryThreshold     int          `json:"recovery_threshold" validate:"gte=1"`
}

// FieldError is one structured validation failure; a rejected config is
// reported as a list of these, never as a concatenated string.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

var intervalUnits = map[string]struct{}{
	"year":   {},
	"month":  {},
	"week":   {},
	"day":    {},
	"hour":   {},
	"minute": {},
}

var validate = validator.New()

// ValidateConfig checks a raw config payload against the schema and
// returns either a typed Config or the list of field errors. The raw
// "schedule" field is polymorphic: a crontab expression string, or a
// [value, unit] pair for interval schedules.
func ValidateConfig(raw map[string]any) (Config, []FieldError) {
	var ferrs []FieldError

	cfg := Config{
		Timezone:              "UTC",
		CheckInMargin:         DefaultCheckInMargin,
		MaxRuntime:            DefaultMaxRuntime,
		FailureIssueThreshold: 1,
		RecoveryThreshold:     1,
	}

	if st, ok := rawString(raw, "schedule_type"); ok {
		cfg.ScheduleType = ScheduleType(st)
	}
	if tz, ok := rawString(raw, "timezone"); ok {
		cfg.Timezone = tz
	}
	if v, ok := rawInt(raw, "checkin_margin"); ok {
		cfg.CheckInMargin = v
	}
	if v, ok := rawInt(raw, "max_runtime"); ok {
		cfg.MaxRuntime = v
	}
	if v, ok := rawInt(raw, "failure_issue_threshold"); ok {
		cfg.FailureIssueThreshold = v
	}
	if v, ok := rawInt(raw, "recovery_threshold"); ok {
		cfg.RecoveryThreshold = v
	}

	switch sched := raw["schedule"].(type) {
	case string:
		cfg.Schedule = sched
	case []any:
		if len(sched) == 2 {
			if v, ok := toInt(sched[0]); ok {
				cfg.IntervalValue = v
			}
			if unit, ok := sched[1].(string); ok {
				cfg.IntervalUnit = unit
			}
		} else {
			ferrs = append(ferrs, FieldError{Field: "schedule", Reason: "interval schedule must be a [value, unit] pair"})
		}
	case nil:
		ferrs = append(ferrs, FieldError{Field: "schedule", Reason: "required"})
	default:
		ferrs = append(ferrs, FieldError{Field: "schedule", Reason: "unsupported schedule value"})
	}

	if err := validate.Struct(cfg); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range ve {
				ferrs = append(ferrs, FieldError{Field: fe.Field(), Reason: fe.Tag()})
			}
		} else {
			ferrs = append(ferrs, FieldError{Field: "config", Reason: err.Error()})
		}
	}

	switch cfg.ScheduleType {
	case ScheduleCrontab:
		if cfg.Schedule == "" {
			ferrs = append(ferrs, FieldError{Field: "schedule", Reason: "crontab expression required"})
		} else if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			ferrs = append(ferrs, FieldError{Field: "schedule", Reason: "invalid crontab expression"})
		}
	case ScheduleInterval:
		if cfg.IntervalValue < 1 {
			ferrs = append(ferrs, FieldError{Field: "schedule", Reason: "interval value must be positive"})
		}
		if _, ok := intervalUnits[cfg.IntervalUnit]; !ok {
			ferrs = append(ferrs, FieldError{Field: "schedule", Reason: "unknown interval unit"})
		}
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		ferrs = append(ferrs, FieldError{Field: "timezone", Reason: "unknown timezone"})
	}

	if len(ferrs) > 0 {
		return Config{}, ferrs
	}
	return cfg, nil
}

// NextExpected computes when the next check-in should arrive after a
// check-in at last, in the monitor's configured timezone.
func (c Config) NextExpected(last time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		loc = time.UTC
	}
	last = last.In(loc)

	switch c.ScheduleType {
	case ScheduleCrontab:
		sched, err := cron.ParseStandard(c.Schedule)
		if err != nil {
			return time.Time{}, err
		}
		return sched.Next(last), nil

	case ScheduleInterval:
		switch c.IntervalUnit {
		case "year":
			return last.AddDate(c.IntervalValue, 0, 0), nil
		case "month":
			return last.AddDate(0, c.IntervalValue, 0), nil
		case "week":
			return last.AddDate(0, 0, 7*c.IntervalValue), nil
		case "day":
			return last.AddDate(0, 0, c.IntervalValue), nil
		case "hour":
			return last.Add(time.Duration(c.IntervalValue) * time.Hour), nil
		case "minute":
			return last.Add(time.Duration(c.IntervalValue) * time.Minute), nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot compute next check-in for schedule type %q", c.ScheduleType)
}

// MaxRuntimeDuration is how long a started check-in may stay in
// progress before the sweep times it out.
func (c Config) MaxRuntimeDuration() time.Duration {
	rt := c.MaxRuntime
	if rt < 1 {
		rt = DefaultMaxRuntime
	}
	return time.Duration(rt) * time.Minute
}

func rawString(raw map[string]any, key string) (string, bool) {
	v, ok := raw[key].(string)
	return v, ok
}

func rawInt(raw map[string]any, key string) (int, bool) {
	v, ok := raw[key]
	if !ok {
		return 0, false
	}
	return toInt(v)
}

// JSON numbers decode as float64; config producers may also hand us
// native ints.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
