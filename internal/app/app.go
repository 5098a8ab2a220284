package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/tablego/internal/config"
	"github.com/kirinyoku/tablego/internal/events"
	"github.com/kirinyoku/tablego/internal/postgres"
	"github.com/kirinyoku/tablego/internal/queue"
	"github.com/kirinyoku/tablego/internal/redis"
	"github.com/kirinyoku/tablego/internal/repository"
	"github.com/kirinyoku/tablego/internal/repository/gormstore"
	postgresrepo "github.com/kirinyoku/tablego/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tablego/internal/repository/redis"
	"github.com/kirinyoku/tablego/internal/service"
	"github.com/kirinyoku/tablego/internal/service/reservation"
	"github.com/kirinyoku/tablego/internal/service/tables"
	"github.com/kirinyoku/tablego/internal/telemetry"
	httpgin "github.com/kirinyoku/tablego/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	services   *service.Services
	changes    *redisrepo.ChangesPubSub
	closers    []func(context.Context) error
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx := context.Background()
	a := &App{cfg: cfg, logger: logger}

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: "tablego",
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	store, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	rdb, err := redis.New(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}
	if rdb == nil {
		logger.Info("redis disabled, running without cache and rate limits")
	} else {
		a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
	}

	cache := redisrepo.New(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "reservations", cfg.Limits.CreatePerMinute, time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 24*time.Hour)

	var publishers events.Multi
	if rdb != nil {
		a.changes = redisrepo.NewChangesPubSub(rdb)
		publishers = append(publishers, a.changes)
	}

	if cfg.RabbitMQ.URL != "" {
		pub, err := queue.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize rabbitmq: %w", err)
		}
		publishers = append(publishers, pub)
		a.closers = append(a.closers, func(context.Context) error { return pub.Close() })
	}

	a.services = service.NewServices(store, cache, publishers, limiter, logger, service.Config{
		Reservation: reservation.Config{Policy: cfg.Business.Policy},
		Tables:      tables.Config{ListTTL: cfg.Limits.TablesCacheTTL},
	})

	router := httpgin.NewRouter(a.services, idempotencyStore, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           otelhttp.NewHandler(router, "tablego"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// openStore connects to the configured database and creates the schema.
func (a *App) openStore(ctx context.Context) (repository.TxManager, error) {
	db := a.cfg.DB

	switch db.Driver {
	case "postgres":
		pool, err := postgres.New(ctx, postgres.Config{
			DSN:      db.Postgres.DSN(),
			MaxConns: db.Postgres.MaxConns,
			AppName:  "tablego",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })

		store := postgresrepo.NewStore(pool)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		return store, nil
	default:
		dsn := db.MySQLDSN
		if db.Driver == "sqlite" {
			dsn = db.SQLitePath
		}

		store, err := gormstore.Open(db.Driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s: %w", db.Driver, err)
		}
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })

		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate %s: %w", db.Driver, err)
		}
		return store, nil
	}
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Changes committed by other instances invalidate this instance's cache.
	if a.changes != nil {
		g.Go(func() error {
			err := a.changes.Subscribe(gCtx, a.services.Tables.Invalidate)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("changes subscription: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

// close releases resources in reverse order of acquisition.
func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("close", slog.Any("err", err))
		}
	}
	a.closers = nil
}
