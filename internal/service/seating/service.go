// Package seating assigns reservations to tables and frees them again. Both
// operations write the table and the reservation in one transaction, locking
// the table before the reservation.
package seating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/events"
	"github.com/kirinyoku/tablego/internal/repository"
	redisrepo "github.com/kirinyoku/tablego/internal/repository/redis"
	"github.com/kirinyoku/tablego/internal/rules"
	"github.com/kirinyoku/tablego/internal/uow"
)

type Service struct {
	uow    *uow.UoW
	cache  *redisrepo.Cache
	pub    events.Publisher
	log    *slog.Logger
	tracer trace.Tracer
}

func New(
	tm repository.TxManager,
	cache *redisrepo.Cache,
	pub events.Publisher,
	log *slog.Logger,
) *Service {
	if pub == nil {
		pub = events.Nop{}
	}

	return &Service{
		uow:    uow.New(tm),
		cache:  cache,
		pub:    pub,
		log:    log,
		tracer: otel.Tracer("github.com/kirinyoku/tablego/internal/service/seating"),
	}
}

// Assign seats a reservation at a table.
//
// Parameters:
//   - ctx: request-scoped context.
//   - tableID: ID of the table to seat the party at.
//   - reservationID: ID of the booked reservation; zero means it was not supplied.
//
// Returns:
//   - *domain.Table: the table, now holding the reservation.
//   - error: a rules.Error describing the first failed precondition.
func (s *Service) Assign(ctx context.Context, tableID, reservationID int64) (*domain.Table, error) {
	const op = "service.seating.Assign"

	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.Int64("table.id", tableID),
		attribute.Int64("reservation.id", reservationID),
	))
	defer span.End()

	var table *domain.Table

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		t, err := AssignTx(ctx, tx, tableID, reservationID)
		if err != nil {
			return err
		}

		table = t
		after(s.notify(events.New(events.TableSeated, reservationID, tableID, string(domain.StatusSeated))))

		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return table, nil
}

// Free releases an occupied table and finishes the reservation it held.
//
// Returns:
//   - *domain.Table: the table, now free.
//   - error: a rules.Error when the table does not exist or is not occupied.
func (s *Service) Free(ctx context.Context, tableID int64) (*domain.Table, error) {
	const op = "service.seating.Free"

	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.Int64("table.id", tableID)))
	defer span.End()

	var table *domain.Table

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		t, err := LockTable(ctx, tx, tableID)
		if err != nil {
			return err
		}

		if err := rules.ValidateFree(*t); err != nil {
			return err
		}

		reservationID := *t.ReservationID
		if _, err := LockReservation(ctx, tx, reservationID); err != nil {
			return err
		}

		if err := tx.Tables().SetReservation(ctx, tableID, nil); err != nil {
			return err
		}

		if err := tx.Reservations().SetStatus(ctx, reservationID, domain.StatusFinished); err != nil {
			return err
		}

		t.ReservationID = nil
		table = t
		after(s.notify(events.New(events.TableFreed, reservationID, tableID, string(domain.StatusFinished))))

		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return table, nil
}

// AssignTx locks the table and then the reservation, and seats the party.
// A missing table is reported before a missing reservation id. The caller
// owns the transaction.
func AssignTx(ctx context.Context, tx repository.Tx, tableID, reservationID int64) (*domain.Table, error) {
	t, err := LockTable(ctx, tx, tableID)
	if err != nil {
		return nil, err
	}

	if reservationID == 0 {
		return nil, rules.Validation("reservation_id required")
	}

	r, err := LockReservation(ctx, tx, reservationID)
	if err != nil {
		return nil, err
	}

	return SeatTx(ctx, tx, t, r)
}

// SeatTx runs the seating checks on entities already locked in tx and writes
// the table before the reservation.
func SeatTx(ctx context.Context, tx repository.Tx, t *domain.Table, r *domain.Reservation) (*domain.Table, error) {
	if err := rules.ValidateSeat(rules.SeatRequest{Table: *t, Reservation: *r}); err != nil {
		return nil, err
	}

	if err := tx.Tables().SetReservation(ctx, t.ID, &r.ID); err != nil {
		return nil, err
	}

	if err := tx.Reservations().SetStatus(ctx, r.ID, domain.StatusSeated); err != nil {
		return nil, err
	}

	seated := *t
	seated.ReservationID = &r.ID
	return &seated, nil
}

// ReleaseTx clears the table holding reservationID, if any. It returns the
// freed table's ID or zero.
func ReleaseTx(ctx context.Context, tx repository.Tx, reservationID int64) (int64, error) {
	t, err := tx.Tables().GetByReservation(ctx, reservationID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if err := tx.Tables().SetReservation(ctx, t.ID, nil); err != nil {
		return 0, err
	}

	return t.ID, nil
}

// LockTable reads and locks a table, reporting a missing one as not found.
func LockTable(ctx context.Context, tx repository.Tx, tableID int64) (*domain.Table, error) {
	t, err := tx.Tables().GetForUpdate(ctx, tableID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, rules.NotFound("table_id %d does not exist", tableID)
	}
	return t, err
}

// LockReservation reads and locks a reservation, reporting a missing one as
// not found.
func LockReservation(ctx context.Context, tx repository.Tx, reservationID int64) (*domain.Reservation, error) {
	r, err := tx.Reservations().GetForUpdate(ctx, reservationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, rules.NotFound("reservation_id %d does not exist", reservationID)
	}
	return r, err
}

func (s *Service) notify(ev events.Event) uow.AfterCommit {
	return func(ctx context.Context) {
		if err := s.cache.InvalidateTables(ctx, ev.TableID); err != nil {
			s.log.Warn("invalidate tables cache", slog.Int64("table_id", ev.TableID), slog.Any("err", err))
		}
		if err := s.pub.Publish(ctx, ev); err != nil {
			s.log.Warn("publish event", slog.String("type", string(ev.Type)), slog.Any("err", err))
		}
	}
}
