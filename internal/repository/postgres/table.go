package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/repository"
)

const tableColumns = `table_id, table_name, capacity, reservation_id, created_at, updated_at`

type TableRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TableRepo) With(db DB) *TableRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TableRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts a free table.
func (r *TableRepo) Create(ctx context.Context, t *domain.Table) error {
	const op = "postgres.TableRepo.Create"

	err := r.handle().QueryRow(ctx,
		`INSERT INTO tables(table_name, capacity, reservation_id)
		 VALUES ($1, $2, $3)
		 RETURNING table_id, created_at, updated_at`,
		t.Name, t.Capacity, t.ReservationID,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *TableRepo) Get(ctx context.Context, id int64) (*domain.Table, error) {
	const op = "postgres.TableRepo.Get"

	t, err := scanTable(r.handle().QueryRow(ctx,
		`SELECT `+tableColumns+` FROM tables WHERE table_id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TableRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Table, error) {
	const op = "postgres.TableRepo.GetForUpdate"

	t, err := scanTable(r.handle().QueryRow(ctx,
		`SELECT `+tableColumns+` FROM tables WHERE table_id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TableRepo) GetByReservation(ctx context.Context, reservationID int64) (*domain.Table, error) {
	const op = "postgres.TableRepo.GetByReservation"

	t, err := scanTable(r.handle().QueryRow(ctx,
		`SELECT `+tableColumns+` FROM tables WHERE reservation_id = $1 FOR UPDATE`, reservationID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TableRepo) List(ctx context.Context) ([]domain.Table, error) {
	const op = "postgres.TableRepo.List"

	rows, err := r.handle().Query(ctx,
		`SELECT `+tableColumns+` FROM tables ORDER BY table_name, table_id`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	out := []domain.Table{}
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// SetReservation points the table at reservationID, or frees it when nil.
func (r *TableRepo) SetReservation(ctx context.Context, tableID int64, reservationID *int64) error {
	const op = "postgres.TableRepo.SetReservation"

	tag, err := r.handle().Exec(ctx,
		`UPDATE tables SET reservation_id = $2, updated_at = now() WHERE table_id = $1`,
		tableID, reservationID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

func scanTable(row pgx.Row) (*domain.Table, error) {
	var t domain.Table

	if err := row.Scan(&t.ID, &t.Name, &t.Capacity, &t.ReservationID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}

	return &t, nil
}
