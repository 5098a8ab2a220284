package service

import (
	"log/slog"

	"github.com/kirinyoku/tablego/internal/events"
	"github.com/kirinyoku/tablego/internal/repository"
	redisrepo "github.com/kirinyoku/tablego/internal/repository/redis"
	"github.com/kirinyoku/tablego/internal/service/reservation"
	"github.com/kirinyoku/tablego/internal/service/seating"
	"github.com/kirinyoku/tablego/internal/service/tables"
)

type Services struct {
	Reservation *reservation.Service
	Seating     *seating.Service
	Tables      *tables.Service
}

type Config struct {
	Reservation reservation.Config
	Tables      tables.Config
}

func NewServices(
	tm repository.TxManager,
	cache *redisrepo.Cache,
	pub events.Publisher,
	limiter *redisrepo.SlidingWindowLimiter,
	log *slog.Logger,
	cfg Config,
) *Services {
	return &Services{
		Reservation: reservation.New(tm, cache, pub, limiter, log, cfg.Reservation),
		Seating:     seating.New(tm, cache, pub, log),
		Tables:      tables.New(tm, cache, pub, log, cfg.Tables),
	}
}
