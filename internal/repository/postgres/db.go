package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/tablego/internal/repository"
)

//go:embed schema.sql
var schema string

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool   *pgxpool.Pool
	txOpts pgx.TxOptions
}

// NewStore returns a store whose transactions run at READ COMMITTED. Seating
// correctness relies on the explicit row locks taken by the ForUpdate reads.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		txOpts: pgx.TxOptions{
			IsoLevel:   pgx.ReadCommitted,
			AccessMode: pgx.ReadWrite,
		},
	}
}

// Migrate creates the schema when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	const op = "postgres.Store.Migrate"

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RunTx implements repository.TxManager.
func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Tx) error,
) error {
	return s.RunTxOpts(ctx, nil, func(ctx context.Context, db DB) error {
		return fn(ctx, txScope{db: db})
	})
}

// RunTxOpts runs fn in a transaction with the given options, falling back to
// the store defaults when opts is nil.
func (s *Store) RunTxOpts(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx DB) error,
) error {
	txOpts := s.txOpts
	if opts != nil {
		txOpts = *opts
	}

	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return translateDBErr(err)
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", translateDBErr(err))
	}

	return nil
}

func (s *Store) Reservations() repository.ReservationRepository {
	return &ReservationRepo{pool: s.pool}
}

func (s *Store) Tables() repository.TableRepository {
	return &TableRepo{pool: s.pool}
}

type txScope struct {
	db DB
}

func (t txScope) Reservations() repository.ReservationRepository {
	return (&ReservationRepo{}).With(t.db)
}

func (t txScope) Tables() repository.TableRepository {
	return (&TableRepo{}).With(t.db)
}
