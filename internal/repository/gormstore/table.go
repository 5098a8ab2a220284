package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/repository"
)

type TableRepo struct {
	db   *gorm.DB
	lock bool
}

func (r *TableRepo) Create(ctx context.Context, t *domain.Table) error {
	const op = "gormstore.TableRepo.Create"

	row := tableRow{Name: t.Name, Capacity: t.Capacity, ReservationID: t.ReservationID}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapDBErr(op, err)
	}

	t.ID, t.CreatedAt, t.UpdatedAt = row.ID, row.CreatedAt, row.UpdatedAt
	return nil
}

func (r *TableRepo) Get(ctx context.Context, id int64) (*domain.Table, error) {
	const op = "gormstore.TableRepo.Get"

	var row tableRow
	if err := r.db.WithContext(ctx).First(&row, "table_id = ?", id).Error; err != nil {
		return nil, wrapDBErr(op, err)
	}

	return row.toDomain(), nil
}

func (r *TableRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Table, error) {
	const op = "gormstore.TableRepo.GetForUpdate"

	var row tableRow
	if err := forUpdate(r.db.WithContext(ctx), r.lock).First(&row, "table_id = ?", id).Error; err != nil {
		return nil, wrapDBErr(op, err)
	}

	return row.toDomain(), nil
}

func (r *TableRepo) GetByReservation(ctx context.Context, reservationID int64) (*domain.Table, error) {
	const op = "gormstore.TableRepo.GetByReservation"

	var row tableRow
	err := forUpdate(r.db.WithContext(ctx), r.lock).First(&row, "reservation_id = ?", reservationID).Error
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return row.toDomain(), nil
}

func (r *TableRepo) List(ctx context.Context) ([]domain.Table, error) {
	const op = "gormstore.TableRepo.List"

	var rows []tableRow
	if err := r.db.WithContext(ctx).Order("table_name, table_id").Find(&rows).Error; err != nil {
		return nil, wrapDBErr(op, err)
	}

	out := make([]domain.Table, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}

	return out, nil
}

func (r *TableRepo) SetReservation(ctx context.Context, tableID int64, reservationID *int64) error {
	const op = "gormstore.TableRepo.SetReservation"

	var value any
	if reservationID != nil {
		value = *reservationID
	}

	tx := r.db.WithContext(ctx).Model(&tableRow{}).
		Where("table_id = ?", tableID).
		Updates(map[string]any{"reservation_id": value, "updated_at": time.Now().UTC()})
	if tx.Error != nil {
		return wrapDBErr(op, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return nil
}

func (row tableRow) toDomain() *domain.Table {
	return &domain.Table{
		ID:            row.ID,
		Name:          row.Name,
		Capacity:      row.Capacity,
		ReservationID: row.ReservationID,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}
