package repository

import (
	"context"
	"strings"

	"github.com/kirinyoku/tablego/internal/domain"
)

// ReservationRepository persists reservations. Reads of a missing id return
// ErrNotFound. There is no delete.
type ReservationRepository interface {
	// Create inserts r and fills in its ID and timestamps.
	Create(ctx context.Context, r *domain.Reservation) error
	Get(ctx context.Context, id int64) (*domain.Reservation, error)
	// GetForUpdate reads and row-locks a reservation until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Reservation, error)
	// ListByDate returns the reservations of date ordered by time. Finished
	// reservations are never listed; cancelled ones are dropped when activeOnly.
	ListByDate(ctx context.Context, date string, activeOnly bool) ([]domain.Reservation, error)
	// SearchByPhone matches fragment against stored mobile numbers with
	// punctuation removed on both sides.
	SearchByPhone(ctx context.Context, fragment string) ([]domain.Reservation, error)
	// Update writes every editable field of r. Status is left untouched.
	Update(ctx context.Context, r *domain.Reservation) error
	SetStatus(ctx context.Context, id int64, status domain.ReservationStatus) error
}

// TableRepository persists tables.
type TableRepository interface {
	Create(ctx context.Context, t *domain.Table) error
	Get(ctx context.Context, id int64) (*domain.Table, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Table, error)
	// GetByReservation returns the table currently holding reservationID,
	// locking it when called inside a transaction.
	GetByReservation(ctx context.Context, reservationID int64) (*domain.Table, error)
	// List returns all tables ordered by name.
	List(ctx context.Context) ([]domain.Table, error)
	SetReservation(ctx context.Context, tableID int64, reservationID *int64) error
}

// Tx exposes repositories bound to one transaction.
type Tx interface {
	Reservations() ReservationRepository
	Tables() TableRepository
}

// TxManager exposes non-transactional repositories and runs fn in a
// transaction that commits only when fn returns nil.
type TxManager interface {
	Tx
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

var phonePunctuation = strings.NewReplacer("(", "", ")", "", "-", "", " ", "", "+", "", ".", "")

// NormalizePhone strips the punctuation ignored by SearchByPhone.
func NormalizePhone(s string) string {
	return phonePunctuation.Replace(s)
}

var likeSpecials = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// PhoneContains builds a LIKE pattern, to be used with ESCAPE '!', matching
// numbers that contain fragment once punctuation is ignored.
func PhoneContains(fragment string) string {
	return "%" + likeSpecials.Replace(NormalizePhone(fragment)) + "%"
}
