package tables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/events"
	"github.com/kirinyoku/tablego/internal/repository"
	redisrepo "github.com/kirinyoku/tablego/internal/repository/redis"
	"github.com/kirinyoku/tablego/internal/rules"
)

type Config struct {
	ListTTL time.Duration
}

type Service struct {
	repos repository.Tx
	cache *redisrepo.Cache
	pub   events.Publisher
	log   *slog.Logger
	cfg   Config
}

func New(
	repos repository.Tx,
	cache *redisrepo.Cache,
	pub events.Publisher,
	log *slog.Logger,
	cfg Config,
) *Service {
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 30 * time.Second
	}
	if pub == nil {
		pub = events.Nop{}
	}

	return &Service{repos: repos, cache: cache, pub: pub, log: log, cfg: cfg}
}

// Create validates and stores a new, free table.
func (s *Service) Create(ctx context.Context, p *rules.TablePayload) (*domain.Table, error) {
	const op = "service.tables.Create"

	if err := rules.ValidateTable(p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	t := p.Table()
	if err := s.repos.Tables().Create(ctx, &t); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.InvalidateTables(ctx); err != nil {
		s.log.Warn("invalidate tables cache", slog.Any("err", err))
	}
	if err := s.pub.Publish(ctx, events.New(events.TableCreated, 0, t.ID, "")); err != nil {
		s.log.Warn("publish event", slog.String("type", string(events.TableCreated)), slog.Any("err", err))
	}

	return &t, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Table, error) {
	const op = "service.tables.Get"

	t, err := redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyTable(id), s.cfg.ListTTL,
		func(ctx context.Context) (*domain.Table, error) {
			return s.repos.Tables().Get(ctx, id)
		})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, rules.NotFound("table_id %d does not exist", id))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

// List returns all tables ordered by name, served from cache when possible.
func (s *Service) List(ctx context.Context) ([]domain.Table, error) {
	const op = "service.tables.List"

	out, err := redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyTablesList(), s.cfg.ListTTL,
		func(ctx context.Context) ([]domain.Table, error) {
			return s.repos.Tables().List(ctx)
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Invalidate drops cached table views. It is called for changes made by
// other instances.
func (s *Service) Invalidate(ctx context.Context, ev events.Event) {
	if !ev.TouchesTables() {
		return
	}
	if err := s.cache.InvalidateTables(ctx, ev.TableID); err != nil {
		s.log.Warn("invalidate tables cache", slog.Int64("table_id", ev.TableID), slog.Any("err", err))
	}
}
