package serviceorder

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/apperrors"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/logger"
)

var orderColumnNames = []string{
	"id", "technician_id", "client_id", "companie_id", "initial_date", "final_date",
	"delivery_declaration", "problem", "solution", "return_declaration", "hours",
	"total_value", "transaction_ids", "status", "created_at", "updated_at",
}

func orderRow(id int64, status Status, txIDs string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(orderColumnNames).AddRow(
		id, int64(42), int64(13), int64(7), now, nil,
		"left at reception", "does not boot", nil, nil, nil,
		nil, []byte(txIDs), string(status), now, now,
	)
}

func TestStore_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db, logger.NewTestLogger(t))

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO service_orders").
		WithArgs(int64(42), int64(13), int64(7), sqlmock.AnyArg(), "left at reception",
			"does not boot", []byte("[]"), "Received").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(1), time.Now(), time.Now()))

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)

	order := &ServiceOrder{
		TechnicianID:        42,
		ClientID:            13,
		TenantID:            7,
		InitialDate:         time.Now(),
		DeliveryDeclaration: "left at reception",
		Problem:             "does not boot",
		Status:              StatusReceived,
	}
	require.NoError(t, store.Insert(context.Background(), tx, order))

	assert.Equal(t, int64(1), order.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindForUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db, logger.NewTestLogger(t))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM service_orders").
		WithArgs(int64(1), int64(7)).
		WillReturnRows(orderRow(1, StatusCompleted, "[101,102]"))

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)

	order, err := store.FindForUpdate(context.Background(), tx, 1, 7)
	require.NoError(t, err)

	assert.Equal(t, int64(1), order.ID)
	assert.Equal(t, StatusCompleted, order.Status)
	assert.Equal(t, []int64{101, 102}, order.TransactionIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FindForUpdate_WrongTenantIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db, logger.NewTestLogger(t))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM service_orders").
		WithArgs(int64(1), int64(99)).
		WillReturnRows(sqlmock.NewRows(orderColumnNames))

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)

	_, err = store.FindForUpdate(context.Background(), tx, 1, 99)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeOrderNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_List_AppliesFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db, logger.NewTestLogger(t))

	clientID := int64(13)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	status := StatusCompleted
	gte := 100.0
	lte := 500.0

	mock.ExpectQuery("SELECT (.+) FROM service_orders WHERE companie_id = \\$1").
		WithArgs(int64(7), clientID, from, to, string(status), gte, lte).
		WillReturnRows(orderRow(1, StatusCompleted, "[101]"))

	orders, err := store.List(context.Background(), Filter{
		TenantID:        7,
		ClientID:        &clientID,
		InitialDateFrom: &from,
		InitialDateTo:   &to,
		Status:          &status,
		TotalValueGTE:   &gte,
		TotalValueLTE:   &lte,
	})
	require.NoError(t, err)

	require.Len(t, orders, 1)
	assert.Equal(t, int64(1), orders[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_List_TenantOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db, logger.NewTestLogger(t))

	mock.ExpectQuery("SELECT (.+) FROM service_orders WHERE companie_id = \\$1 AND deleted_at IS NULL").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(orderColumnNames))

	orders, err := store.List(context.Background(), Filter{TenantID: 7})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}
