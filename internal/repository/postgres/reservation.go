package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/repository"
)

const reservationColumns = `reservation_id, first_name, last_name, mobile_number,
	to_char(reservation_date, 'YYYY-MM-DD'), reservation_time, people, status,
	created_at, updated_at`

type ReservationRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ReservationRepo) With(db DB) *ReservationRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ReservationRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts a reservation.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - res: the reservation to insert; ID and timestamps are filled in.
//
// Returns:
//   - error: if the insert fails.
func (r *ReservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	const op = "postgres.ReservationRepo.Create"

	err := r.handle().QueryRow(ctx,
		`INSERT INTO reservations(first_name, last_name, mobile_number,
			reservation_date, reservation_time, people, status)
		 VALUES ($1, $2, $3, $4::date, $5, $6, $7)
		 RETURNING reservation_id, created_at, updated_at`,
		res.FirstName, res.LastName, res.MobileNumber,
		res.Date, res.Time, res.PartySize, string(res.Status),
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Get retrieves a reservation by its ID.
//
// Returns:
//   - *domain.Reservation: the reservation when found.
//   - error: repository.ErrNotFound if the reservation is not found.
func (r *ReservationRepo) Get(ctx context.Context, id int64) (*domain.Reservation, error) {
	const op = "postgres.ReservationRepo.Get"

	res, err := scanReservation(r.handle().QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE reservation_id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return res, nil
}

// GetForUpdate retrieves a reservation and locks its row for the rest of the
// transaction.
//
// Returns:
//   - *domain.Reservation: the reservation when found.
//   - error: repository.ErrNotFound if the reservation is not found.
func (r *ReservationRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Reservation, error) {
	const op = "postgres.ReservationRepo.GetForUpdate"

	res, err := scanReservation(r.handle().QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE reservation_id = $1 FOR UPDATE`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return res, nil
}

// ListByDate lists the reservations of one day ordered by time.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - date: calendar date as YYYY-MM-DD.
//   - activeOnly: also drop cancelled reservations.
//
// Returns:
//   - []domain.Reservation: reservations of the day, never finished ones.
//   - error: if the query fails.
func (r *ReservationRepo) ListByDate(
	ctx context.Context,
	date string,
	activeOnly bool,
) ([]domain.Reservation, error) {
	const op = "postgres.ReservationRepo.ListByDate"

	rows, err := r.handle().Query(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE reservation_date = $1::date
		   AND status <> 'finished'
		   AND (NOT $2 OR status <> 'cancelled')
		 ORDER BY reservation_time, reservation_id`,
		date, activeOnly,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return collectReservations(op, rows)
}

// SearchByPhone lists reservations whose mobile number contains fragment,
// ignoring punctuation.
//
// Returns:
//   - []domain.Reservation: matches ordered by date and time.
//   - error: if the query fails.
func (r *ReservationRepo) SearchByPhone(ctx context.Context, fragment string) ([]domain.Reservation, error) {
	const op = "postgres.ReservationRepo.SearchByPhone"

	rows, err := r.handle().Query(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE translate(mobile_number, '() -+.', '') LIKE $1 ESCAPE '!'
		 ORDER BY reservation_date, reservation_time, reservation_id`,
		repository.PhoneContains(fragment),
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return collectReservations(op, rows)
}

// Update writes the editable fields of a reservation.
//
// Returns:
//   - error: repository.ErrNotFound if the reservation is not found.
func (r *ReservationRepo) Update(ctx context.Context, res *domain.Reservation) error {
	const op = "postgres.ReservationRepo.Update"

	err := r.handle().QueryRow(ctx,
		`UPDATE reservations
		 SET first_name = $2, last_name = $3, mobile_number = $4,
		     reservation_date = $5::date, reservation_time = $6, people = $7,
		     updated_at = now()
		 WHERE reservation_id = $1
		 RETURNING updated_at`,
		res.ID, res.FirstName, res.LastName, res.MobileNumber,
		res.Date, res.Time, res.PartySize,
	).Scan(&res.UpdatedAt)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// SetStatus overwrites the status of a reservation.
//
// Returns:
//   - error: repository.ErrNotFound if the reservation is not found.
func (r *ReservationRepo) SetStatus(ctx context.Context, id int64, status domain.ReservationStatus) error {
	const op = "postgres.ReservationRepo.SetStatus"

	tag, err := r.handle().Exec(ctx,
		`UPDATE reservations SET status = $2, updated_at = now() WHERE reservation_id = $1`,
		id, string(status),
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	var status string

	if err := row.Scan(
		&res.ID,
		&res.FirstName,
		&res.LastName,
		&res.MobileNumber,
		&res.Date,
		&res.Time,
		&res.PartySize,
		&status,
		&res.CreatedAt,
		&res.UpdatedAt,
	); err != nil {
		return nil, err
	}

	res.Status = domain.ReservationStatus(status)
	return &res, nil
}

func collectReservations(op string, rows pgx.Rows) ([]domain.Reservation, error) {
	defer rows.Close()

	out := []domain.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
