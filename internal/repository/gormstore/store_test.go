package gormstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/tablego/internal/domain"
	"github.com/kirinyoku/tablego/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	return s
}

func reservation(first, phone, date, at string) *domain.Reservation {
	return &domain.Reservation{
		FirstName:    first,
		LastName:     "Doe",
		MobileNumber: phone,
		Date:         date,
		Time:         at,
		PartySize:    2,
		Status:       domain.StatusBooked,
	}
}

func TestReservationRepo_CRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := s.Reservations()

	r := reservation("Ann", "555-1212", "2030-01-02", "18:00")
	require.NoError(t, repo.Create(ctx, r))
	require.NotZero(t, r.ID)
	assert.False(t, r.CreatedAt.IsZero())

	got, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.FirstName)
	assert.Equal(t, "2030-01-02", got.Date)
	assert.Equal(t, domain.StatusBooked, got.Status)

	got.PartySize = 6
	got.Time = "19:30"
	require.NoError(t, repo.Update(ctx, got))

	got, err = repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.PartySize)
	assert.Equal(t, "19:30", got.Time)
	assert.Equal(t, domain.StatusBooked, got.Status)

	require.NoError(t, repo.SetStatus(ctx, r.ID, domain.StatusCancelled))
	got, err = repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)

	_, err = repo.Get(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repo.SetStatus(ctx, 999, domain.StatusSeated), repository.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &domain.Reservation{ID: 999}), repository.ErrNotFound)
}

func TestReservationRepo_ListByDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := s.Reservations()

	late := reservation("Late", "1", "2030-01-02", "20:00")
	early := reservation("Early", "2", "2030-01-02", "11:15")
	done := reservation("Done", "3", "2030-01-02", "12:00")
	gone := reservation("Gone", "4", "2030-01-02", "13:00")
	other := reservation("Other", "5", "2030-01-03", "12:00")
	for _, r := range []*domain.Reservation{late, early, done, gone, other} {
		require.NoError(t, repo.Create(ctx, r))
	}
	require.NoError(t, repo.SetStatus(ctx, done.ID, domain.StatusFinished))
	require.NoError(t, repo.SetStatus(ctx, gone.ID, domain.StatusCancelled))

	all, err := repo.ListByDate(ctx, "2030-01-02", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Early", "Gone", "Late"}, firstNames(all))

	active, err := repo.ListByDate(ctx, "2030-01-02", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Early", "Late"}, firstNames(active))

	none, err := repo.ListByDate(ctx, "2030-01-04", false)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestReservationRepo_SearchByPhone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := s.Reservations()

	require.NoError(t, repo.Create(ctx, reservation("B", "(800) 555-1212", "2030-01-03", "12:00")))
	require.NoError(t, repo.Create(ctx, reservation("A", "+1 800-555-1212", "2030-01-02", "12:00")))
	require.NoError(t, repo.Create(ctx, reservation("C", "212-555-0000", "2030-01-01", "12:00")))

	got, err := repo.SearchByPhone(ctx, "800-555")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, firstNames(got))

	got, err = repo.SearchByPhone(ctx, "999")
	require.NoError(t, err)
	assert.Empty(t, got)

	// Wildcards in the fragment match literally.
	for _, fragment := range []string{"5_5", "5%5", "!"} {
		got, err = repo.SearchByPhone(ctx, fragment)
		require.NoError(t, err)
		assert.Empty(t, got, fragment)
	}
}

func TestTableRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := reservation("Ann", "1", "2030-01-02", "18:00")
	require.NoError(t, s.Reservations().Create(ctx, r))

	tables := s.Tables()
	bar := &domain.Table{Name: "Bar #2", Capacity: 2}
	patio := &domain.Table{Name: "#1", Capacity: 6}
	require.NoError(t, tables.Create(ctx, bar))
	require.NoError(t, tables.Create(ctx, patio))

	list, err := tables.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "#1", list[0].Name)
	assert.Equal(t, "Bar #2", list[1].Name)

	require.NoError(t, tables.SetReservation(ctx, patio.ID, &r.ID))
	got, err := tables.GetByReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, patio.ID, got.ID)
	assert.True(t, got.Occupied())

	err = tables.SetReservation(ctx, bar.ID, &r.ID)
	assert.ErrorIs(t, err, repository.ErrConflict, "one table per reservation")

	require.NoError(t, tables.SetReservation(ctx, patio.ID, nil))
	got, err = tables.Get(ctx, patio.ID)
	require.NoError(t, err)
	assert.False(t, got.Occupied())

	_, err = tables.GetByReservation(ctx, r.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = tables.GetForUpdate(ctx, 404)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, tables.SetReservation(ctx, 404, nil), repository.ErrNotFound)
}

func TestStore_RunTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Tables().Create(ctx, &domain.Table{Name: "Ghost", Capacity: 4}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := s.Tables().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "")
	assert.Error(t, err)
}

func firstNames(rs []domain.Reservation) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.FirstName)
	}
	return out
}

func TestWithFoundRows(t *testing.T) {
	assert.Equal(t, "u:p@/db?clientFoundRows=true", withFoundRows("u:p@/db"))
	assert.Equal(t, "u:p@/db?parseTime=true&clientFoundRows=true", withFoundRows("u:p@/db?parseTime=true"))
	assert.Equal(t, "u:p@/db?clientFoundRows=false", withFoundRows("u:p@/db?clientFoundRows=false"))
}
