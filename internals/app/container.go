package app

import (
	"context"

	"cronguard/config"
	"cronguard/internals/modules/checkin"
	"cronguard/internals/modules/clock"
	"cronguard/internals/modules/ingest"
	"cronguard/internals/modules/monitor"
	"cronguard/internals/modules/project"
	"cronguard/internals/storage"
	"cronguard/pkg/killswitch"
	"cronguard/pkg/metrics"
	"cronguard/pkg/rabbitmq"
	"cronguard/pkg/redisstore"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type Container struct {
	DB          *pgxpool.Pool
	RedisClient *redisstore.Client
	Logger      *zerolog.Logger
	Metrics     *metrics.Registry
	Consumer    *rabbitmq.Consumer
	Driver      *ingest.Driver

	amqpConn    *amqp091.Connection
	sweepPub    *rabbitmq.Publisher
	signalPub   *rabbitmq.Publisher
}

func NewContainer(ctx context.Context, db *pgxpool.Pool, cfg *config.Config, logger *zerolog.Logger) (*Container, error) {

	redisClient, err := redisstore.New(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}

	amqpConn, err := rabbitmq.NewConnection(&cfg.RabbitMQ)
	if err != nil {
		return nil, err
	}
	if err := rabbitmq.SetupTopology(amqpConn, &cfg.RabbitMQ); err != nil {
		return nil, err
	}

	sweepPub, err := rabbitmq.NewPublisher(amqpConn, cfg.RabbitMQ.ExchangeName)
	if err != nil {
		return nil, err
	}
	signalPub, err := rabbitmq.NewPublisher(amqpConn, cfg.RabbitMQ.ExchangeName)
	if err != nil {
		return nil, err
	}
	consumer, err := rabbitmq.NewConsumer(amqpConn, cfg.RabbitMQ.QueueName, cfg.RabbitMQ.WorkerCount)
	if err != nil {
		return nil, err
	}

	registry := metrics.NewRegistry()

	projectSvc := project.NewService(project.NewRepository(db), redisClient, logger)

	signals := NewSignalEmitter(signalPub, cfg.RabbitMQ.SignalRoutingKey, logger)
	monitorSvc := monitor.NewService(
		cfg.CheckIn.MaxMonitorsPerOrg,
		cfg.CheckIn.MaxEnvsPerMonitor,
		signals,
		signals,
		logger,
	)

	reconciler := checkin.NewReconciler(
		storage.NewPostgres(db),
		&redisLocker{client: redisClient},
		monitorSvc,
		signals,
		cfg.CheckIn.LockTTL,
		logger,
	)

	ticker := clock.NewTicker(redisClient, logger)
	dispatcher := clock.NewDispatcher(sweepPub, cfg.RabbitMQ.SweepRoutingKey, logger)

	ks := killswitch.NewEvaluator(killswitchEntries(cfg.Killswitches))

	driver := ingest.NewDriver(
		ticker,
		dispatcher,
		projectSvc,
		ks,
		redisClient,
		reconciler,
		registry,
		cfg.CheckIn.QuotaLimit,
		cfg.CheckIn.QuotaWindow,
		logger,
	)

	return &Container{
		DB:          db,
		RedisClient: redisClient,
		Logger:      logger,
		Metrics:     registry,
		Consumer:    consumer,
		Driver:      driver,
		amqpConn:    amqpConn,
		sweepPub:    sweepPub,
		signalPub:   signalPub,
	}, nil
}

func killswitchEntries(entries []config.KillswitchEntry) []killswitch.Entry {
	out := make([]killswitch.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, killswitch.Entry{Name: e.Name, Context: e.Context})
	}
	return out
}

func (c *Container) Shutdown(ctx context.Context) error {
	if c.Consumer != nil {
		if err := c.Consumer.Shutdown(ctx); err != nil {
			c.Logger.Error().Err(err).Msg("consumer shutdown failed")
		}
	}
	if c.sweepPub != nil {
		_ = c.sweepPub.Close()
	}
	if c.signalPub != nil {
		_ = c.signalPub.Close()
	}
	if c.amqpConn != nil {
		_ = c.amqpConn.Close()
	}
	if c.RedisClient != nil {
		_ = c.RedisClient.Close()
	}
	if c.DB != nil {
		c.DB.Close()
	}
	return nil
}
