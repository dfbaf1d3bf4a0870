package config

import "time"

type DBConfig struct {
	URL             string        `mapstructure:"url" validate:"required"`
	MaxOpenConns    int32         `mapstructure:"max_open_conns"`
	MinIdleConns    int32         `mapstructure:"min_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	HealthTimeout   time.Duration `mapstructure:"health_timeout"`
}

type RedisConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

type RabbitMQConfig struct {
	BrokerLink       string `mapstructure:"broker_link" validate:"required"`
	ExchangeName     string `mapstructure:"exchange_name" validate:"required"`
	ExchangeType     string `mapstructure:"exchange_type"`
	QueueName        string `mapstructure:"queue_name" validate:"required"`
	RoutingKey       string `mapstructure:"routing_key" validate:"required"`
	SweepRoutingKey  string `mapstructure:"sweep_routing_key"`
	SignalRoutingKey string `mapstructure:"signal_routing_key"`
	WorkerCount      int    `mapstructure:"worker_count" validate:"gte=1"`
}

// CheckInConfig carries the ingestion guard rails: the per-key check-in
// quota, the creation lock lease, and the cardinality ceilings enforced
// by the monitor registry.
type CheckInConfig struct {
	QuotaLimit        int           `mapstructure:"quota_limit" validate:"gte=1"`
	QuotaWindow       time.Duration `mapstructure:"quota_window"`
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	MaxMonitorsPerOrg int64         `mapstructure:"max_monitors_per_org" validate:"gte=1"`
	MaxEnvsPerMonitor int64         `mapstructure:"max_envs_per_monitor" validate:"gte=1"`
}

// KillswitchEntry disables processing for messages whose context matches
// every key/value pair. An empty context matches everything for the
// named switch.
type KillswitchEntry struct {
	Name    string            `mapstructure:"name"`
	Context map[string]string `mapstructure:"context"`
}

type Config struct {
	Env          string            `mapstructure:"env"`
	ServiceName  string            `mapstructure:"service_name"`
	OpsPort      int               `mapstructure:"ops_port"`
	DB           DBConfig          `mapstructure:"db"`
	Redis        RedisConfig       `mapstructure:"redis"`
	RabbitMQ     RabbitMQConfig    `mapstructure:"rabbitmq"`
	CheckIn      CheckInConfig     `mapstructure:"checkin"`
	Killswitches []KillswitchEntry `mapstructure:"killswitches"`
}
