// Package gormstore implements the repositories on gorm for the sqlite and
// mysql drivers.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/kirinyoku/tablego/internal/repository"
)

type reservationRow struct {
	ID           int64     `gorm:"column:reservation_id;primaryKey;autoIncrement"`
	FirstName    string    `gorm:"column:first_name;size:255;not null"`
	LastName     string    `gorm:"column:last_name;size:255;not null"`
	MobileNumber string    `gorm:"column:mobile_number;size:64;not null"`
	Date         string    `gorm:"column:reservation_date;size:10;not null;index:reservations_date_time_idx,priority:1"`
	Time         string    `gorm:"column:reservation_time;size:8;not null;index:reservations_date_time_idx,priority:2"`
	People       int       `gorm:"column:people;not null"`
	Status       string    `gorm:"column:status;size:16;not null;default:booked"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (reservationRow) TableName() string { return "reservations" }

type tableRow struct {
	ID            int64     `gorm:"column:table_id;primaryKey;autoIncrement"`
	Name          string    `gorm:"column:table_name;size:255;not null"`
	Capacity      int       `gorm:"column:capacity;not null"`
	ReservationID *int64    `gorm:"column:reservation_id;uniqueIndex:tables_reservation_id_key"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (tableRow) TableName() string { return "tables" }

// Store implements repository.TxManager. Inside RunTx the store handed to fn
// is bound to the transaction.
type Store struct {
	db *gorm.DB
	// lock adds FOR UPDATE to locking reads. sqlite has no row locks and
	// serializes writers on its single connection instead.
	lock bool
}

// Open connects to driver ("sqlite" or "mysql") at dsn.
func Open(driver, dsn string) (*Store, error) {
	const op = "gormstore.Open"

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(withFoundRows(dsn))
	default:
		return nil, fmt.Errorf("%s: unsupported driver %q", op, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		// One connection keeps an in-memory database alive and makes
		// transactions run one at a time.
		sqlDB.SetMaxOpenConns(1)
	}

	return NewStore(db), nil
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, lock: db.Dialector.Name() == "mysql"}
}

func (s *Store) Migrate(ctx context.Context) error {
	const op = "gormstore.Store.Migrate"

	if err := s.db.WithContext(ctx).AutoMigrate(&reservationRow{}, &tableRow{}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Store{db: tx, lock: s.lock})
	})
}

func (s *Store) Reservations() repository.ReservationRepository {
	return &ReservationRepo{db: s.db, lock: s.lock}
}

func (s *Store) Tables() repository.TableRepository {
	return &TableRepo{db: s.db, lock: s.lock}
}

func forUpdate(db *gorm.DB, lock bool) *gorm.DB {
	if lock {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func wrapDBErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w: %v", op, repository.ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// withFoundRows makes MySQL report matched rather than changed rows, so an
// update that rewrites identical values is not mistaken for a missing row.
func withFoundRows(dsn string) string {
	if strings.Contains(dsn, "clientFoundRows=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&clientFoundRows=true"
	}
	return dsn + "?clientFoundRows=true"
}
