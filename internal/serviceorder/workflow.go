package serviceorder

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/apperrors"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/logger"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/metrics"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/gateway"
)

// Authorizer is the slice of the authorization gateway the workflow uses.
type Authorizer interface {
	Authorize(ctx context.Context, token string) gateway.AuthorizationResult
}

// StockValidator is the slice of the stock gateway the workflow uses.
type StockValidator interface {
	Validate(ctx context.Context, req gateway.StockRequest) gateway.StockResult
}

// CreateInput carries the caller-supplied fields of a new order. Tenant and
// technician come from the authorization result, never from the caller.
type CreateInput struct {
	InitialDate         time.Time
	DeliveryDeclaration string
	ClientID            int64
	Problem             string
}

// UpdateInput carries one status transition request. The completion fields
// are only meaningful when Target is completed.
type UpdateInput struct {
	OrderID           int64
	Target            Status
	FinalDate         *time.Time
	ReturnDeclaration *string
	Hours             *int
	Items             []gateway.StockItem
}

// Workflow sequences authorization and stock validation around the
// transactional boundary. The transaction opens before the remote stock
// call and commits only after it succeeds, so a remote failure rolls back
// atomically; the price is a transaction held open for a full broker round
// trip, bounded by the call's deadline.
type Workflow struct {
	store *Store
	auth  Authorizer
	stock StockValidator
	log   logger.Logger
}

func NewWorkflow(store *Store, auth Authorizer, stock StockValidator, log logger.Logger) *Workflow {
	return &Workflow{
		store: store,
		auth:  auth,
		stock: stock,
		log:   log.WithFields(map[string]interface{}{"component": "order-workflow"}),
	}
}

// Create authorizes the request and persists a new order in status Received.
// No transaction is opened until authorization has passed, and no stock call
// is involved.
func (w *Workflow) Create(ctx context.Context, token string, in CreateInput) (*ServiceOrder, error) {
	access := w.auth.Authorize(ctx, token)
	if !access.Valid {
		return nil, accessError(access)
	}
	if access.Role != gateway.RoleClient {
		return nil, apperrors.NewAuthorizationDenied("order creation requires the client role, got " + access.Role)
	}

	order := &ServiceOrder{
		TechnicianID:        access.UserID,
		ClientID:            in.ClientID,
		TenantID:            access.TenantID,
		InitialDate:         in.InitialDate,
		DeliveryDeclaration: in.DeliveryDeclaration,
		Problem:             in.Problem,
		Status:              StatusReceived,
	}

	tx, err := w.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if err := w.store.Insert(ctx, tx, order); err != nil {
		w.rollback(tx)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternal(err)
	}

	metrics.OrdersCreated.Inc()
	w.log.Info("service order created", map[string]interface{}{
		"orderId":  order.ID,
		"tenantId": order.TenantID,
	})
	return order, nil
}

// UpdateStatus moves an order to inProgress or completed. Field validation
// happens before authorization or any transaction; not-found and
// terminal-state checks happen before the stock call; the stock call happens
// inside the transaction so its failure rolls everything back.
func (w *Workflow) UpdateStatus(ctx context.Context, token string, in UpdateInput) (*ServiceOrder, error) {
	switch in.Target {
	case StatusInProgress, StatusCompleted:
	default:
		return nil, apperrors.NewInvalidTransition("unsupported target status " + string(in.Target))
	}
	if in.Target == StatusCompleted {
		if in.FinalDate == nil || in.ReturnDeclaration == nil || in.Hours == nil || len(in.Items) == 0 {
			return nil, apperrors.NewInvalidTransition(
				"final_date, return_declaration, hours and items are required to complete an order")
		}
	}

	access := w.auth.Authorize(ctx, token)
	if !access.Valid {
		return nil, accessError(access)
	}
	if access.Role != gateway.RoleTechnician {
		return nil, apperrors.NewAuthorizationDenied("status updates require the technician role")
	}

	tx, err := w.store.Begin(ctx)
	if err != nil {
		return nil, err
	}

	order, err := w.store.FindForUpdate(ctx, tx, in.OrderID, access.TenantID)
	if err != nil {
		w.rollback(tx)
		return nil, err
	}
	if order.Status.Terminal() {
		w.rollback(tx)
		return nil, apperrors.NewInvalidTransition("order is delivered and can no longer change")
	}
	if !order.Status.CanTransitionTo(in.Target) {
		w.rollback(tx)
		return nil, apperrors.NewInvalidTransition(
			"cannot move from " + string(order.Status) + " to " + string(in.Target))
	}

	switch in.Target {
	case StatusInProgress:
		err = w.revertToInProgress(ctx, order)
	case StatusCompleted:
		err = w.complete(ctx, order, in)
	}
	if err != nil {
		w.rollback(tx)
		metrics.OrderTransitions.WithLabelValues(string(in.Target), "rejected").Inc()
		return nil, err
	}

	if err := w.store.Update(ctx, tx, order); err != nil {
		w.rollback(tx)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternal(err)
	}

	metrics.OrderTransitions.WithLabelValues(string(in.Target), "ok").Inc()
	w.log.Info("service order transitioned", map[string]interface{}{
		"orderId": order.ID,
		"status":  string(order.Status),
	})
	return order, nil
}

// revertToInProgress handles both edges into inProgress. Coming from
// completed, the prior reservation must be released remotely before any
// field is cleared; coming from Received it is a plain status write.
func (w *Workflow) revertToInProgress(ctx context.Context, order *ServiceOrder) error {
	if order.Status == StatusCompleted {
		release := w.stock.Validate(ctx, gateway.StockRequest{
			TenantID:       order.TenantID,
			TechnicianID:   order.TechnicianID,
			ClientID:       order.ClientID,
			Items:          nil, // empty list signals release
			TransactionIDs: order.TransactionIDs,
		})
		if !release.Success {
			return stockError(release)
		}
		order.FinalDate = nil
		order.ReturnDeclaration = nil
		order.Hours = nil
		order.TransactionIDs = nil
	}
	order.Status = StatusInProgress
	return nil
}

// complete reserves the supplied items against the stock service and, only
// on success, stamps the completion fields and the returned transaction ids.
func (w *Workflow) complete(ctx context.Context, order *ServiceOrder, in UpdateInput) error {
	reserve := w.stock.Validate(ctx, gateway.StockRequest{
		TenantID:       order.TenantID,
		TechnicianID:   order.TechnicianID,
		ClientID:       order.ClientID,
		Items:          in.Items,
		TransactionIDs: order.TransactionIDs,
	})
	if !reserve.Success {
		return stockError(reserve)
	}

	order.TransactionIDs = reserve.TransactionIDs
	order.FinalDate = in.FinalDate
	order.ReturnDeclaration = in.ReturnDeclaration
	order.Hours = in.Hours
	order.Status = StatusCompleted
	return nil
}

// List returns the caller's tenant-scoped orders matching the filter.
func (w *Workflow) List(ctx context.Context, token string, f Filter) ([]ServiceOrder, error) {
	access := w.auth.Authorize(ctx, token)
	if !access.Valid {
		return nil, accessError(access)
	}
	if access.Role != gateway.RoleTechnician {
		return nil, apperrors.NewAuthorizationDenied("listing requires the technician role")
	}

	f.TenantID = access.TenantID
	return w.store.List(ctx, f)
}

func (w *Workflow) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		w.log.Error("rollback failed", map[string]interface{}{"error": err.Error()})
	}
}

// accessError maps an invalid authorization result back onto the error
// taxonomy, preserving the distinction between a denial and a failed call.
func accessError(access gateway.AuthorizationResult) error {
	switch access.Code {
	case apperrors.CodeRPCTimeout:
		return apperrors.NewRPCTimeout("authorization")
	case apperrors.CodeBrokerError:
		return apperrors.NewBrokerError(errors.New(access.Reason))
	default:
		return apperrors.NewAuthorizationDenied(access.Reason)
	}
}

// stockError does the same for stock results, surfacing the remote message
// verbatim on business rejections.
func stockError(res gateway.StockResult) error {
	switch res.Code {
	case apperrors.CodeRPCTimeout:
		return apperrors.NewRPCTimeout("stock validation")
	case apperrors.CodeBrokerError:
		return apperrors.NewBrokerError(errors.New(res.Message))
	default:
		return apperrors.NewStockValidation(res.Message)
	}
}
