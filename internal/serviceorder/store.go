package serviceorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/apperrors"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/logger"
)

const orderColumns = `id, technician_id, client_id, companie_id, initial_date, final_date, delivery_declaration, problem, solution, return_declaration, hours, total_value, transaction_ids, status, created_at, updated_at`

// Store is the transactional persistence layer for service orders. The
// workflow owns the transaction; the store only operates inside one, except
// for List which is a plain read.
type Store struct {
	db  *sql.DB
	log logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{db: db, log: log.WithFields(map[string]interface{}{"component": "order-store"})}
}

// Begin opens the transactional boundary for one workflow invocation.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("begin transaction: %w", err))
	}
	return tx, nil
}

// Insert persists a new order and fills in its generated id and timestamps.
func (s *Store) Insert(ctx context.Context, tx *sql.Tx, o *ServiceOrder) error {
	txIDs, err := marshalTransactionIDs(o.TransactionIDs)
	if err != nil {
		return apperrors.NewInternal(err)
	}

	const query = `INSERT INTO service_orders
		(technician_id, client_id, companie_id, initial_date, delivery_declaration,
		 problem, transaction_ids, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowContext(ctx, query,
		o.TechnicianID, o.ClientID, o.TenantID, o.InitialDate, o.DeliveryDeclaration,
		o.Problem, txIDs, string(o.Status),
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return apperrors.NewInternal(fmt.Errorf("insert service order: %w", err))
	}
	return nil
}

// FindForUpdate loads one order by id within the caller's tenant, locking
// the row for the rest of the transaction. A missing row (wrong id, wrong
// tenant or soft-deleted) is ORDER_NOT_FOUND.
func (s *Store) FindForUpdate(ctx context.Context, tx *sql.Tx, id, tenantID int64) (*ServiceOrder, error) {
	query := fmt.Sprintf(`SELECT %s FROM service_orders
		WHERE id = $1 AND companie_id = $2 AND deleted_at IS NULL
		FOR UPDATE`, orderColumns)

	o, err := scanOrder(tx.QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewOrderNotFound(id)
		}
		return nil, apperrors.NewInternal(fmt.Errorf("find service order: %w", err))
	}
	return o, nil
}

// Update writes the mutable fields of an already-loaded order.
func (s *Store) Update(ctx context.Context, tx *sql.Tx, o *ServiceOrder) error {
	txIDs, err := marshalTransactionIDs(o.TransactionIDs)
	if err != nil {
		return apperrors.NewInternal(err)
	}

	const query = `UPDATE service_orders
		SET status = $1, final_date = $2, return_declaration = $3, hours = $4,
		    solution = $5, total_value = $6, transaction_ids = $7, updated_at = NOW()
		WHERE id = $8`

	result, err := tx.ExecContext(ctx, query,
		string(o.Status), o.FinalDate, o.ReturnDeclaration, o.Hours,
		nullableString(o.Solution), o.TotalValue, txIDs, o.ID,
	)
	if err != nil {
		return apperrors.NewInternal(fmt.Errorf("update service order: %w", err))
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewOrderNotFound(o.ID)
	}
	return nil
}

// List returns the tenant's orders matching the filter, newest first.
// Soft-deleted rows are excluded.
func (s *Store) List(ctx context.Context, f Filter) ([]ServiceOrder, error) {
	var (
		conditions = []string{"companie_id = $1", "deleted_at IS NULL"}
		args       = []interface{}{f.TenantID}
	)

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ClientID != nil {
		conditions = append(conditions, "client_id = "+arg(*f.ClientID))
	}
	if f.InitialDateFrom != nil {
		conditions = append(conditions, "initial_date >= "+arg(*f.InitialDateFrom))
	}
	if f.InitialDateTo != nil {
		conditions = append(conditions, "initial_date <= "+arg(*f.InitialDateTo))
	}
	if f.Status != nil {
		conditions = append(conditions, "status = "+arg(string(*f.Status)))
	}
	if f.TotalValueGTE != nil {
		conditions = append(conditions, "total_value >= "+arg(*f.TotalValueGTE))
	}
	if f.TotalValueLTE != nil {
		conditions = append(conditions, "total_value <= "+arg(*f.TotalValueLTE))
	}

	query := fmt.Sprintf(`SELECT %s FROM service_orders WHERE %s ORDER BY created_at DESC`,
		orderColumns, strings.Join(conditions, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("list service orders: %w", err))
	}
	defer rows.Close()

	var orders []ServiceOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, apperrors.NewInternal(fmt.Errorf("scan service order: %w", err))
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("list service orders: %w", err))
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*ServiceOrder, error) {
	var (
		o         ServiceOrder
		finalDate sql.NullTime
		solution  sql.NullString
		returnDec sql.NullString
		hours     sql.NullInt64
		total     sql.NullFloat64
		txIDs     []byte
		status    string
	)

	err := row.Scan(
		&o.ID, &o.TechnicianID, &o.ClientID, &o.TenantID, &o.InitialDate, &finalDate,
		&o.DeliveryDeclaration, &o.Problem, &solution, &returnDec, &hours, &total,
		&txIDs, &status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if finalDate.Valid {
		t := finalDate.Time
		o.FinalDate = &t
	}
	o.Solution = solution.String
	if returnDec.Valid {
		v := returnDec.String
		o.ReturnDeclaration = &v
	}
	if hours.Valid {
		h := int(hours.Int64)
		o.Hours = &h
	}
	if total.Valid {
		v := total.Float64
		o.TotalValue = &v
	}
	if len(txIDs) > 0 {
		if err := json.Unmarshal(txIDs, &o.TransactionIDs); err != nil {
			return nil, fmt.Errorf("decode transaction ids: %w", err)
		}
	}
	o.Status = Status(status)
	return &o, nil
}

func marshalTransactionIDs(ids []int64) ([]byte, error) {
	if ids == nil {
		ids = []int64{}
	}
	return json.Marshal(ids)
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
