package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/events"
	"github.com/kirinyoku/tablego/internal/repository"
	redisrepo "github.com/kirinyoku/tablego/internal/repository/redis"
	"github.com/kirinyoku/tablego/internal/rules"
	"github.com/kirinyoku/tablego/internal/service/seating"
	"github.com/kirinyoku/tablego/internal/uow"
)

type Config struct {
	Policy rules.Policy
}

type Service struct {
	tm      repository.TxManager
	uow     *uow.UoW
	cache   *redisrepo.Cache
	pub     events.Publisher
	limiter *redisrepo.SlidingWindowLimiter
	policy  rules.Policy
	log     *slog.Logger
}

func New(
	tm repository.TxManager,
	cache *redisrepo.Cache,
	pub events.Publisher,
	limiter *redisrepo.SlidingWindowLimiter,
	log *slog.Logger,
	cfg Config,
) *Service {
	if pub == nil {
		pub = events.Nop{}
	}

	return &Service{
		tm:      tm,
		uow:     uow.New(tm),
		cache:   cache,
		pub:     pub,
		limiter: limiter,
		policy:  cfg.Policy,
		log:     log,
	}
}

// Create validates a reservation request and stores it as booked.
//
// Parameters:
//   - ctx: request-scoped context.
//   - p: the decoded request data, nil when the body had none.
//   - rlKey: rate limit bucket, usually the client IP; empty disables limiting.
//
// Returns:
//   - *domain.Reservation: the stored reservation.
//   - error: *RateLimitedError, or a rules.Error for the first failed check.
func (s *Service) Create(
	ctx context.Context,
	p *rules.ReservationPayload,
	rlKey string,
) (*domain.Reservation, error) {
	const op = "service.reservation.Create"

	if rlKey != "" {
		d, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			s.log.Warn("rate limiter unavailable", slog.Any("err", err))
		} else if !d.Allowed {
			return nil, fmt.Errorf("%s: %w", op, &RateLimitedError{RetryAfter: d.RetryAfter})
		}
	}

	if err := rules.ValidateReservation(p, s.policy); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r := p.Reservation()
	r.Status = domain.StatusBooked

	if err := s.tm.Reservations().Create(ctx, &r); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.notify(events.New(events.ReservationCreated, r.ID, 0, string(r.Status)))(ctx)

	return &r, nil
}

// Get returns a reservation by ID.
//
// Returns:
//   - error: a not found rules.Error when the reservation does not exist.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Reservation, error) {
	const op = "service.reservation.Get"

	r, err := s.tm.Reservations().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, id))
	}

	return r, nil
}

// List returns the reservations of date, today in the venue's zone when date
// is empty. Finished reservations are never listed.
func (s *Service) List(ctx context.Context, date string, activeOnly bool) ([]domain.Reservation, error) {
	const op = "service.reservation.List"

	day := s.policy.Today()
	if date != "" {
		d, err := rules.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		day = d
	}

	out, err := s.tm.Reservations().ListByDate(ctx, day, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Search finds reservations by a fragment of the mobile number.
func (s *Service) Search(ctx context.Context, mobile string) ([]domain.Reservation, error) {
	const op = "service.reservation.Search"

	out, err := s.tm.Reservations().SearchByPhone(ctx, mobile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Update replaces the editable fields of a booked reservation. The whole
// validation pipeline runs again on the new values.
func (s *Service) Update(ctx context.Context, id int64, p *rules.ReservationPayload) (*domain.Reservation, error) {
	const op = "service.reservation.Update"

	var out *domain.Reservation

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		current, err := tx.Reservations().GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, id)
		}

		if err := rules.ValidateEdit(current.Status); err != nil {
			return err
		}

		if err := rules.ValidateReservation(p, s.policy); err != nil {
			return err
		}

		r := p.Reservation()
		r.ID = id
		r.Status = current.Status
		r.CreatedAt = current.CreatedAt

		if err := tx.Reservations().Update(ctx, &r); err != nil {
			return err
		}

		out = &r
		after(s.notify(events.New(events.ReservationUpdated, id, 0, string(r.Status))))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// UpdateStatus moves a reservation along its lifecycle.
//
// Parameters:
//   - ctx: request-scoped context.
//   - id: the reservation ID.
//   - target: the requested status, as sent by the client.
//   - tableID: table to seat the party at; required when target is seated.
//
// Returns:
//   - *domain.Reservation: the reservation with its new status.
//   - error: a rules.Error for an unknown status, an illegal transition or a
//     failed seating precondition.
//
// Seating goes through the same checks as the table seat endpoint. Leaving
// seated frees the table the party held, in the same transaction.
func (s *Service) UpdateStatus(
	ctx context.Context,
	id int64,
	target string,
	tableID int64,
) (*domain.Reservation, error) {
	const op = "service.reservation.UpdateStatus"

	var out *domain.Reservation

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		// Tables are locked before the reservation, as in the seating service.
		var seatAt *domain.Table
		var seatErr error
		if target == string(domain.StatusSeated) && tableID != 0 {
			seatAt, seatErr = seating.LockTable(ctx, tx, tableID)
			if seatErr != nil && rules.KindOf(seatErr) != rules.KindNotFound {
				return seatErr
			}
		}

		held, err := tx.Tables().GetByReservation(ctx, id)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		r, err := tx.Reservations().GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, id)
		}

		// A seat committed while we waited for the reservation lock is not
		// in the earlier read. Once the reservation is locked nothing else
		// can move it, so the re-read is final.
		if r.Status == domain.StatusSeated && held == nil {
			held, err = tx.Tables().GetByReservation(ctx, id)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}

		next, err := rules.ValidateStatusChange(r.Status, target)
		if err != nil {
			return err
		}

		var touched int64
		switch next {
		case domain.StatusSeated:
			if seatErr != nil {
				return seatErr
			}
			if seatAt == nil {
				return rules.Validation("table_id is required to seat a reservation")
			}
			if _, err := seating.SeatTx(ctx, tx, seatAt, r); err != nil {
				return err
			}
			touched = seatAt.ID
		default:
			if held != nil {
				if err := tx.Tables().SetReservation(ctx, held.ID, nil); err != nil {
					return err
				}
				touched = held.ID
			}
			if err := tx.Reservations().SetStatus(ctx, id, next); err != nil {
				return err
			}
		}

		r.Status = next
		out = r
		after(s.notify(events.New(events.ReservationStatusChanged, id, touched, string(next))))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Service) notify(ev events.Event) uow.AfterCommit {
	return func(ctx context.Context) {
		if ev.TouchesTables() {
			if err := s.cache.InvalidateTables(ctx, ev.TableID); err != nil {
				s.log.Warn("invalidate tables cache", slog.Int64("table_id", ev.TableID), slog.Any("err", err))
			}
		}
		if err := s.pub.Publish(ctx, ev); err != nil {
			s.log.Warn("publish event", slog.String("type", string(ev.Type)), slog.Any("err", err))
		}
	}
}

func notFound(err error, id int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return rules.NotFound("Reservation %d cannot be found", id)
	}
	return err
}
