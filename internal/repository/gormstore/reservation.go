package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/repository"
)

// strippedPhone is the stored mobile number without the punctuation removed
// by repository.NormalizePhone. REPLACE exists on both sqlite and mysql.
const strippedPhone = `REPLACE(REPLACE(REPLACE(REPLACE(REPLACE(REPLACE(mobile_number,
	'(', ''), ')', ''), '-', ''), ' ', ''), '+', ''), '.', '')`

type ReservationRepo struct {
	db   *gorm.DB
	lock bool
}

func (r *ReservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	const op = "gormstore.ReservationRepo.Create"

	row := toReservationRow(res)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapDBErr(op, err)
	}

	res.ID, res.CreatedAt, res.UpdatedAt = row.ID, row.CreatedAt, row.UpdatedAt
	return nil
}

func (r *ReservationRepo) Get(ctx context.Context, id int64) (*domain.Reservation, error) {
	const op = "gormstore.ReservationRepo.Get"

	var row reservationRow
	if err := r.db.WithContext(ctx).First(&row, "reservation_id = ?", id).Error; err != nil {
		return nil, wrapDBErr(op, err)
	}

	return row.toDomain(), nil
}

func (r *ReservationRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Reservation, error) {
	const op = "gormstore.ReservationRepo.GetForUpdate"

	var row reservationRow
	err := forUpdate(r.db.WithContext(ctx), r.lock).First(&row, "reservation_id = ?", id).Error
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return row.toDomain(), nil
}

func (r *ReservationRepo) ListByDate(ctx context.Context, date string, activeOnly bool) ([]domain.Reservation, error) {
	const op = "gormstore.ReservationRepo.ListByDate"

	q := r.db.WithContext(ctx).
		Where("reservation_date = ?", date).
		Where("status <> ?", string(domain.StatusFinished))
	if activeOnly {
		q = q.Where("status <> ?", string(domain.StatusCancelled))
	}

	var rows []reservationRow
	if err := q.Order("reservation_time, reservation_id").Find(&rows).Error; err != nil {
		return nil, wrapDBErr(op, err)
	}

	return toReservations(rows), nil
}

func (r *ReservationRepo) SearchByPhone(ctx context.Context, fragment string) ([]domain.Reservation, error) {
	const op = "gormstore.ReservationRepo.SearchByPhone"

	var rows []reservationRow
	err := r.db.WithContext(ctx).
		Where(strippedPhone+" LIKE ? ESCAPE '!'", repository.PhoneContains(fragment)).
		Order("reservation_date, reservation_time, reservation_id").
		Find(&rows).Error
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return toReservations(rows), nil
}

func (r *ReservationRepo) Update(ctx context.Context, res *domain.Reservation) error {
	const op = "gormstore.ReservationRepo.Update"

	now := time.Now().UTC()
	tx := r.db.WithContext(ctx).Model(&reservationRow{}).
		Where("reservation_id = ?", res.ID).
		Updates(map[string]any{
			"first_name":       res.FirstName,
			"last_name":        res.LastName,
			"mobile_number":    res.MobileNumber,
			"reservation_date": res.Date,
			"reservation_time": res.Time,
			"people":           res.PartySize,
			"updated_at":       now,
		})
	if tx.Error != nil {
		return wrapDBErr(op, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	res.UpdatedAt = now
	return nil
}

func (r *ReservationRepo) SetStatus(ctx context.Context, id int64, status domain.ReservationStatus) error {
	const op = "gormstore.ReservationRepo.SetStatus"

	tx := r.db.WithContext(ctx).Model(&reservationRow{}).
		Where("reservation_id = ?", id).
		Updates(map[string]any{"status": string(status), "updated_at": time.Now().UTC()})
	if tx.Error != nil {
		return wrapDBErr(op, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

func toReservationRow(r *domain.Reservation) reservationRow {
	return reservationRow{
		ID:           r.ID,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		MobileNumber: r.MobileNumber,
		Date:         r.Date,
		Time:         r.Time,
		People:       r.PartySize,
		Status:       string(r.Status),
	}
}

func (row reservationRow) toDomain() *domain.Reservation {
	return &domain.Reservation{
		ID:           row.ID,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		MobileNumber: row.MobileNumber,
		Date:         row.Date,
		Time:         row.Time,
		PartySize:    row.People,
		Status:       domain.ReservationStatus(row.Status),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func toReservations(rows []reservationRow) []domain.Reservation {
	out := make([]domain.Reservation, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out
}
