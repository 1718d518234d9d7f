package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveServiceByNamePrefix(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "salon_id", "name", "duration_minutes", "price_cents", "currency"}).
		AddRow("svc-1", "salon-1", "Haircut", 30, 3500, "USD")
	mock.ExpectQuery("SELECT id, salon_id, name").
		WithArgs("salon-1", "hair").
		WillReturnRows(rows)

	repo := NewRepositoryWithDB(mock)
	svc, err := repo.ResolveService(context.Background(), "salon-1", "hair")
	require.NoError(t, err)
	assert.Equal(t, "svc-1", svc.ID)
	assert.Equal(t, 30*time.Minute, svc.Duration())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveServiceNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, salon_id, name").
		WithArgs("salon-1", "unicorn grooming").
		WillReturnRows(pgxmock.NewRows([]string{"id", "salon_id", "name", "duration_minutes", "price_cents", "currency"}))

	repo := NewRepositoryWithDB(mock)
	_, err = repo.ResolveService(context.Background(), "salon-1", "unicorn grooming")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestWorkingHoursGroupsByWeekday(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"weekday", "start_minute", "end_minute"}).
		AddRow(1, 9*60, 13*60).
		AddRow(1, 14*60, 18*60).
		AddRow(5, 10*60, 16*60)
	mock.ExpectQuery("SELECT weekday, start_minute, end_minute").
		WithArgs("staff-1").
		WillReturnRows(rows)

	repo := NewRepositoryWithDB(mock)
	hours, err := repo.WorkingHours(context.Background(), "staff-1")
	require.NoError(t, err)
	assert.Len(t, hours[time.Monday], 2)
	assert.Len(t, hours[time.Friday], 1)
	assert.Empty(t, hours[time.Sunday])
}

func TestQualifiedStaff(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "salon_id", "display_name"}).
		AddRow("staff-1", "salon-1", "Maria").
		AddRow("staff-2", "salon-1", "Sam")
	mock.ExpectQuery("SELECT s.id, s.salon_id, s.display_name").
		WithArgs("salon-1", "svc-1").
		WillReturnRows(rows)

	repo := NewRepositoryWithDB(mock)
	staff, err := repo.QualifiedStaff(context.Background(), "salon-1", "svc-1")
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, "Maria", staff[0].DisplayName)
}
