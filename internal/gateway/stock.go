package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/apperrors"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/config"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/logger"
)

// StockItem is one line item to reserve.
type StockItem struct {
	ItemID int64 `json:"item_id"`
	Amount int   `json:"amount"`
}

// StockRequest is the payload for one stock validation call. An empty Items
// list asks the stock service to release the reservations held by
// TransactionIDs; a non-empty list reserves exactly these items.
type StockRequest struct {
	TenantID       int64       `json:"companie_id"`
	TechnicianID   int64       `json:"technician_id"`
	ClientID       int64       `json:"client_id"`
	Items          []StockItem `json:"items"`
	TransactionIDs []int64     `json:"transactionIds"`
}

// StockResult is the definite outcome of one stock validation call.
type StockResult struct {
	Success        bool
	TransactionIDs []int64
	Message        string
	Code           apperrors.Code
}

type stockResponse struct {
	Error          string  `json:"error,omitempty"`
	TransactionIDs []int64 `json:"transactionIds,omitempty"`
}

// Stock reserves and releases inventory through the stock service's
// request/reply exchanges.
type Stock struct {
	caller   Caller
	endpoint config.RPCEndpoint
	timeout  time.Duration
	log      logger.Logger
}

func NewStock(caller Caller, endpoint config.RPCEndpoint, timeout time.Duration, log logger.Logger) *Stock {
	return &Stock{
		caller:   caller,
		endpoint: endpoint,
		timeout:  timeout,
		log:      log.WithFields(map[string]interface{}{"gateway": "stock"}),
	}
}

// Validate performs one reserve or release exchange. Remote rejections,
// timeouts and broker failures are all data results; Code distinguishes
// them for the workflow.
func (g *Stock) Validate(ctx context.Context, req StockRequest) StockResult {
	// The stock service treats absent and empty lists differently from
	// null, so nil slices are normalized before marshalling.
	if req.Items == nil {
		req.Items = []StockItem{}
	}
	if req.TransactionIDs == nil {
		req.TransactionIDs = []int64{}
	}

	raw, err := g.caller.Call(ctx, g.endpoint, req, g.timeout)
	if err != nil {
		code := apperrors.CodeOf(err)
		g.log.Warn("stock call failed", map[string]interface{}{
			"code":     string(code),
			"clientId": req.ClientID,
			"error":    err.Error(),
		})
		return StockResult{Success: false, Message: err.Error(), Code: code}
	}

	var resp stockResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return StockResult{
			Success: false,
			Message: "malformed stock response",
			Code:    apperrors.CodeStockValidation,
		}
	}

	if resp.Error != "" {
		return StockResult{Success: false, Message: resp.Error, Code: apperrors.CodeStockValidation}
	}

	return StockResult{Success: true, TransactionIDs: resp.TransactionIDs}
}
