package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifykit/internal/ingest"
	"github.com/dmitrymomot/notifykit/internal/wakeup"
	"github.com/dmitrymomot/notifykit/pkg/channel"
	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/deadletter"
	"github.com/dmitrymomot/notifykit/pkg/dispatcher"
	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/grouping"
	"github.com/dmitrymomot/notifykit/pkg/inbox"
	"github.com/dmitrymomot/notifykit/pkg/kafka"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/mongo"
	"github.com/dmitrymomot/notifykit/pkg/notify"
	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/pgstore"
	"github.com/dmitrymomot/notifykit/pkg/queue"
	"github.com/dmitrymomot/notifykit/pkg/ratelimiter"
	"github.com/dmitrymomot/notifykit/pkg/redis"
	"github.com/dmitrymomot/notifykit/pkg/schedule"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

// App holds the components of one notifyd process.
type App struct {
	Queue        *queue.Queue
	DeadLetters  *deadletter.Sink
	Scheduler    *schedule.Scheduler
	Grouping     *grouping.Engine
	Orchestrator *notify.Orchestrator
	Registry     *channel.Registry
	Pool         *dispatcher.Pool
	Inbox        *inbox.Inbox

	cfg    config.Service
	policy *config.Policy
	logger *slog.Logger

	postgres *pgxpool.Pool
	redis    *goredis.Client
	mongo    *mongodriver.Client
	wake     *wakeup.Bridge

	checks    map[string]func(context.Context) error
	closers   []func() error
	closeOnce sync.Once
	closeErr  error
}

// New connects the configured backends and builds the components. A nil
// policy means no rate limits, grouping rules, holidays or templates. On
// error everything opened so far is closed.
func New(ctx context.Context, cfg config.Service, policy *config.Policy, log *slog.Logger) (_ *App, err error) {
	if policy == nil {
		policy = &config.Policy{}
	}
	if log == nil {
		log = slog.Default()
	}

	a := &App{
		cfg:    cfg,
		policy: policy,
		logger: log,
		checks: make(map[string]func(context.Context) error),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if err := a.connect(ctx); err != nil {
		return nil, err
	}
	if err := a.build(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Postgres returns the connection pool, or nil when Postgres is not
// configured.
func (a *App) Postgres() *pgxpool.Pool {
	return a.postgres
}

// Durable reports whether jobs survive a restart.
func (a *App) Durable() bool {
	return a.postgres != nil
}

func (a *App) connect(ctx context.Context) error {
	if a.cfg.Postgres.Enabled() {
		pool, err := pg.Connect(ctx, a.cfg.Postgres)
		if err != nil {
			return errors.Join(ErrBackend, err)
		}
		a.postgres = pool
		a.checks["postgres"] = pg.Healthcheck(pool)
		a.onClose(func() error { pool.Close(); return nil })
	}

	if a.cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, a.cfg.Redis)
		if err != nil {
			return errors.Join(ErrBackend, err)
		}
		a.redis = client
		a.checks["redis"] = redis.Healthcheck(client)
		a.onClose(client.Close)
	}

	if a.cfg.Mongo.Enabled() {
		client, err := mongo.New(ctx, a.cfg.Mongo)
		if err != nil {
			return errors.Join(ErrBackend, err)
		}
		a.mongo = client
		a.checks["mongodb"] = mongo.Healthcheck(client.Database(a.cfg.Mongo.Database))
		a.onClose(func() error { return client.Disconnect(context.Background()) })
	}

	a.logger.InfoContext(ctx, "backends connected",
		logger.Component("service"),
		slog.Bool("postgres", a.postgres != nil),
		slog.Bool("redis", a.redis != nil),
		slog.Bool("mongodb", a.mongo != nil),
		slog.Bool("kafka", a.cfg.Kafka.Enabled()))
	return nil
}

func (a *App) build(ctx context.Context) error {
	var (
		jobs    queue.Repository    = queue.NewMemoryStorage()
		specs   schedule.Repository = schedule.NewMemoryStorage()
		windows grouping.Store      = grouping.NewMemoryStore(grouping.WithRetention(a.cfg.Grouping.Retention))
		dead    deadletter.Storage  = deadletter.NewMemoryStorage()
	)
	if a.postgres != nil {
		jobs = pgstore.NewQueueRepository(a.postgres)
		specs = pgstore.NewSpecRepository(a.postgres)
		windows = pgstore.NewWindowStore(a.postgres)
		dead = pgstore.NewDeadLetterStorage(a.postgres)
	}
	if a.mongo != nil {
		ms := deadletter.NewMongoStorage(a.mongo.Database(a.cfg.Mongo.Database))
		if err := ms.EnsureIndexes(ctx); err != nil {
			return errors.Join(ErrBuild, err)
		}
		dead = ms
	}

	var err error
	if a.DeadLetters, err = deadletter.NewSink(dead, deadletter.WithLogger(a.logger)); err != nil {
		return buildErr("dead letter sink", err)
	}

	a.Queue, err = queue.New(jobs,
		queue.WithConfig(a.cfg.Queue),
		queue.WithDeadLetters(a.DeadLetters),
		queue.WithEnqueueHook(a.jobAvailable),
		queue.WithLogger(a.logger))
	if err != nil {
		return buildErr("queue", err)
	}

	if a.Registry, err = a.channels(); err != nil {
		return err
	}

	limiter, err := a.limiter()
	if err != nil {
		return err
	}

	a.Pool, err = dispatcher.New(a.Queue, a.Registry, limiter,
		dispatcher.WithConfig(a.cfg.Dispatcher),
		dispatcher.WithLogger(a.logger))
	if err != nil {
		return buildErr("dispatcher", err)
	}

	if a.redis != nil {
		a.wake, err = wakeup.New(a.redis, a.cfg.Redis.WakeChannel, a.Pool,
			wakeup.WithNodeID(a.Pool.Config().NodeID),
			wakeup.WithLogger(a.logger))
		if err != nil {
			return buildErr("wake-up bridge", err)
		}
	}

	cal, err := a.policy.Calendar()
	if err != nil {
		return err
	}
	a.Scheduler, err = schedule.New(specs, a.Queue,
		schedule.WithConfig(a.cfg.Scheduler),
		schedule.WithCalendar(cal),
		schedule.WithLogger(a.logger))
	if err != nil {
		return buildErr("scheduler", err)
	}

	a.Grouping, err = grouping.New(windows, a.Queue,
		grouping.WithConfig(a.cfg.Grouping),
		grouping.WithLogger(a.logger))
	if err != nil {
		return buildErr("grouping", err)
	}
	a.onClose(func() error { a.Grouping.Close(); return nil })

	a.Orchestrator, err = notify.New(a.Queue,
		notify.WithGrouping(a.Grouping, a.policy.Grouping),
		notify.WithScheduler(a.Scheduler),
		notify.WithDeadLetters(a.DeadLetters),
		notify.WithRenderer(notify.NewTemplateRenderer(a.policy.TemplateSource(), 0)),
		notify.WithDefaultChannels(a.policy.DefaultChannels...),
		notify.WithLogger(a.logger))
	if err != nil {
		return buildErr("orchestrator", err)
	}
	return nil
}

// channels builds the adapter registry: log, inbox, email and webhook are
// always present, push only when Kafka is configured.
func (a *App) channels() (*channel.Registry, error) {
	hub := inbox.NewHub(16, 1024)
	a.onClose(hub.Close)

	var err error
	a.Inbox, err = inbox.New(inbox.NewMemoryStorage(), inbox.WithHub(hub), inbox.WithLogger(a.logger))
	if err != nil {
		return nil, buildErr("inbox", err)
	}

	sender, err := email.NewSender(a.cfg.Email)
	if err != nil {
		return nil, buildErr("email sender", err)
	}
	mail, err := email.NewAdapter(sender, email.WithAdapterLogger(a.logger))
	if err != nil {
		return nil, buildErr("email adapter", err)
	}

	hook := webhook.New(append(a.cfg.Webhook.Options(), webhook.WithLogger(a.logger))...)

	adapters := []channel.Adapter{
		channel.NewLogAdapter("log", a.logger),
		a.Inbox,
		mail,
		hook,
	}

	if a.cfg.Kafka.Enabled() {
		client, err := kafka.NewProducerClient(a.cfg.Kafka)
		if err != nil {
			return nil, buildErr("kafka producer", err)
		}
		a.onClose(func() error { client.Close(); return nil })

		push, err := kafka.NewProducer(client, kafka.WithLogger(a.logger))
		if err != nil {
			return nil, buildErr("push adapter", err)
		}
		adapters = append(adapters, push)
	}

	registry, err := channel.NewRegistry(adapters...)
	if err != nil {
		return nil, buildErr("channel registry", err)
	}
	return registry, nil
}

// limiter shares buckets through Redis when it is configured so every
// process draws from the same budget.
func (a *App) limiter() (*ratelimiter.Policy, error) {
	var store ratelimiter.Store
	if a.redis != nil {
		rs, err := ratelimiter.NewRedisStore(a.redis)
		if err != nil {
			return nil, buildErr("rate limit store", err)
		}
		store = rs
	} else {
		ms := ratelimiter.NewMemoryStore()
		a.onClose(func() error { ms.Close(); return nil })
		store = ms
	}

	opts := append(a.policy.RateLimitOptions(), ratelimiter.WithPolicyLogger(a.logger))
	p, err := ratelimiter.NewPolicy(store, opts...)
	if err != nil {
		return nil, buildErr("rate limit policy", err)
	}
	return p, nil
}

func (a *App) jobAvailable(job *queue.Job) {
	if a.Pool != nil {
		a.Pool.Wake()
	}
	if a.wake != nil {
		a.wake.Notify(job)
	}
}

// Run starts the workers, reaper, scheduler, grouping sweeper, and the
// optional wake-up bridge and Kafka command consumer. It blocks until ctx is
// cancelled or one of them fails, then waits for in-flight jobs.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(a.Pool.Run(ctx))
	g.Go(a.Scheduler.Run(ctx))
	g.Go(a.Grouping.Run(ctx))

	if a.wake != nil {
		g.Go(a.wake.Run(ctx))
	}

	if a.cfg.Kafka.Enabled() {
		consumer, err := a.commandConsumer()
		if err != nil {
			return err
		}
		g.Go(consumer.Run(ctx))
	}

	a.logger.InfoContext(ctx, "notifyd running",
		logger.Component("service"),
		slog.Bool("durable", a.Durable()),
		slog.Any("channels", a.Registry.Names()))

	return g.Wait()
}

func (a *App) commandConsumer() (*kafka.Consumer, error) {
	handler, err := ingest.NewHandler(a.Orchestrator, ingest.WithLogger(a.logger))
	if err != nil {
		return nil, buildErr("ingest handler", err)
	}
	client, err := kafka.NewConsumerClient(a.cfg.Kafka, []string{a.cfg.Kafka.CommandTopic})
	if err != nil {
		return nil, buildErr("kafka consumer", err)
	}
	consumer, err := kafka.NewConsumer(client, handler.Handle, kafka.WithConsumerLogger(a.logger))
	if err != nil {
		client.Close()
		return nil, buildErr("kafka consumer", err)
	}
	return consumer, nil
}

// Health pings every connected backend and returns the result per name.
func (a *App) Health(ctx context.Context) map[string]error {
	out := make(map[string]error, len(a.checks))
	for name, check := range a.checks {
		out[name] = check(ctx)
	}
	return out
}

// Healthcheck pings every connected backend.
func (a *App) Healthcheck(ctx context.Context) error {
	health := a.Health(ctx)
	var errs []error
	for _, name := range a.Backends() {
		if err := health[name]; err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrUnhealthy, name, err))
		}
	}
	return errors.Join(errs...)
}

// Backends lists the connected backends by name.
func (a *App) Backends() []string {
	names := make([]string, 0, len(a.checks))
	for name := range a.checks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close releases everything New opened, last opened first. Safe to call
// more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		for _, fn := range slices.Backward(a.closers) {
			if err := fn(); err != nil {
				errs = append(errs, err)
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func buildErr(component string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrBuild, component, err)
}
