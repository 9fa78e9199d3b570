package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/example/stay-scheduler/internal/application/lifecycle"
	"github.com/example/stay-scheduler/internal/clock"
	"github.com/example/stay-scheduler/internal/db"
	"github.com/example/stay-scheduler/internal/domain/account"
	"github.com/example/stay-scheduler/internal/domain/notification"
	"github.com/example/stay-scheduler/internal/domain/reservation"
	"github.com/example/stay-scheduler/internal/infrastructure/config"
	"github.com/example/stay-scheduler/internal/infrastructure/logging"
	"github.com/example/stay-scheduler/internal/infrastructure/memory"
	"github.com/example/stay-scheduler/internal/infrastructure/mongo"
	"github.com/example/stay-scheduler/internal/infrastructure/notify"
	"github.com/example/stay-scheduler/internal/infrastructure/postgres"
	"github.com/example/stay-scheduler/internal/infrastructure/redis"
	"github.com/example/stay-scheduler/internal/infrastructure/telemetry"
	"github.com/example/stay-scheduler/internal/migrate"
	"github.com/example/stay-scheduler/internal/scheduler"
)

type policyStore interface {
	reservation.Accommodations
	Upsert(ctx context.Context, accommodationID string, p reservation.Policy) error
}

type accountStore interface {
	account.Directory
	Upsert(ctx context.Context, a account.Account) error
}

// app is everything a command needs, wired from the environment.
type app struct {
	cfg    config.Config
	log    *logrus.Logger
	engine *lifecycle.Engine
	sched  *scheduler.Scheduler

	accommodations policyStore
	accounts       accountStore
	inbox          *mongo.Inbox

	stopDispatch func()
	closers      []func()
}

type openOptions struct {
	migrate bool
}

func openApp(ctx context.Context, opts openOptions) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	log, logCloser, err := logging.New(logging.Options{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		File:      cfg.LogFile,
		MaxSizeMB: cfg.LogMaxSizeMB,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}
	a.onClose(func() { _ = logCloser.Close() })
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	shutdownTracing, err := telemetry.Setup(cfg.ServiceName, cfg.JaegerAddress)
	if err != nil {
		return nil, err
	}
	a.onClose(func() { _ = shutdownTracing(context.Background()) })

	var (
		store  reservation.Store
		locker lifecycle.Locker
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		log.Warn("memory store backend: state is lost when the process exits")
		store = memory.NewReservationStore()
		a.accommodations = memory.NewAccommodations()
		a.accounts = memory.NewAccounts()
	default:
		d, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.onClose(d.Close)
		if err := d.Ping(ctx); err != nil {
			return nil, fmt.Errorf("db ping: %w", err)
		}
		if opts.migrate {
			if err := migrate.Up(ctx, d, log); err != nil {
				return nil, err
			}
		}
		store = postgres.NewReservationRepo(d)
		a.accommodations = postgres.NewAccommodationRepo(d)
		a.accounts = postgres.NewAccountRepo(d)

		if cfg.RedisURL == "" {
			// advisory locks pin their connections, so they get their own pool
			lockDB, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return nil, err
			}
			a.onClose(lockDB.Close)
			locker = postgres.NewLocker(lockDB, log)
		}
	}

	sinks := []notification.Sink{notify.NewLogSink(log)}
	if cfg.RedisURL != "" {
		rc, err := redis.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = rc.Close() })
		locker = redis.NewLocker(rc, cfg.RedisLockTTL, log)
		sinks = append(sinks, notify.NewGuard("redis", redis.NewPublisher(rc, redis.DefaultChannel), log))
	}
	if cfg.MongoURI != "" {
		mc, err := mongo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = mc.Disconnect(context.Background()) })
		a.inbox = mongo.NewInbox(mc, cfg.MongoDatabase)
		if err := a.inbox.EnsureIndexes(ctx); err != nil {
			log.WithError(err).Warn("could not create notification indexes")
		}
		sinks = append(sinks, notify.NewGuard("mongo", a.inbox, log))
	}
	if cfg.SMTPHost != "" {
		email := notify.NewEmailSink(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, a.accounts)
		sinks = append(sinks, notify.NewGuard("smtp", email, log))
	}

	dispatcher := notify.NewDispatcher(cfg.NotifyQueueSize, cfg.NotifyWorkers, log, sinks...)
	dctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = dispatcher.Run(dctx)
	}()
	a.stopDispatch = func() {
		cancel()
		wg.Wait()
	}

	c := clock.System{}
	a.sched = scheduler.New(c, cfg.TickInterval, log)
	a.engine, err = lifecycle.New(lifecycle.Deps{
		Store:          store,
		Accommodations: a.accommodations,
		Accounts:       a.accounts,
		Notifier:       dispatcher,
		Scheduler:      a.sched,
		Locker:         locker,
		Clock:          c,
		Logger:         log,
	})
	if err != nil {
		return nil, err
	}
	ready = true
	return a, nil
}

func (a *app) onClose(f func()) { a.closers = append(a.closers, f) }

// Close flushes queued notifications, then releases connections in reverse
// order of opening.
func (a *app) Close() {
	if a.stopDispatch != nil {
		a.stopDispatch()
		a.stopDispatch = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
