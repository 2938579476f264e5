// Package api is the HTTP surface over the service-order workflow. It only
// does shape validation, input mapping and error-code translation; every
// business decision lives in the workflow.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/apperrors"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/logger"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/gateway"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/serviceorder"
)

// Workflow is the slice of the order workflow the handlers depend on.
type Workflow interface {
	Create(ctx context.Context, token string, in serviceorder.CreateInput) (*serviceorder.ServiceOrder, error)
	UpdateStatus(ctx context.Context, token string, in serviceorder.UpdateInput) (*serviceorder.ServiceOrder, error)
	List(ctx context.Context, token string, f serviceorder.Filter) ([]serviceorder.ServiceOrder, error)
}

type Server struct {
	workflow Workflow
	log      logger.Logger
}

func NewServer(workflow Workflow, log logger.Logger) *Server {
	return &Server{workflow: workflow, log: log.WithFields(map[string]interface{}{"component": "api"})}
}

// Router builds the service-order routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/service-orders", s.handleCreate)
	r.Patch("/service-orders", s.handleUpdate)
	r.Get("/service-orders", s.handleList)
	return r
}

type createRequest struct {
	ServiceOrder struct {
		InitialDate         string `json:"initial_date"`
		DeliveryDeclaration string `json:"delivery_declaration"`
		ClientID            int64  `json:"client_id"`
		Problem             string `json:"problem"`
	} `json:"serviceOrder"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, apperrors.NewInvalidPayload("unreadable body"))
		return
	}
	if err := createOrderSchema.Validate(body); err != nil {
		s.writeError(w, err)
		return
	}

	var req createRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, apperrors.NewInvalidPayload(err.Error()))
		return
	}
	initialDate, err := time.Parse(time.RFC3339, req.ServiceOrder.InitialDate)
	if err != nil {
		s.writeError(w, apperrors.NewInvalidPayload("initial_date must be an ISO timestamp"))
		return
	}

	order, err := s.workflow.Create(r.Context(), bearerToken(r), serviceorder.CreateInput{
		InitialDate:         initialDate,
		DeliveryDeclaration: req.ServiceOrder.DeliveryDeclaration,
		ClientID:            req.ServiceOrder.ClientID,
		Problem:             req.ServiceOrder.Problem,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":      "Service order created successfully.",
		"serviceOrder": order,
	})
}

type updateRequest struct {
	ServiceOrder struct {
		ID                int64               `json:"id"`
		Status            string              `json:"status"`
		FinalDate         *string             `json:"final_date"`
		ReturnDeclaration *string             `json:"return_declaration"`
		Hours             *int                `json:"hours"`
		Items             []gateway.StockItem `json:"items"`
	} `json:"serviceOrder"`
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, apperrors.NewInvalidPayload("unreadable body"))
		return
	}
	if err := updateOrderSchema.Validate(body); err != nil {
		s.writeError(w, err)
		return
	}

	var req updateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, apperrors.NewInvalidPayload(err.Error()))
		return
	}

	target, err := serviceorder.ParseStatus(req.ServiceOrder.Status)
	if err != nil {
		s.writeError(w, apperrors.NewInvalidPayload(err.Error()))
		return
	}

	in := serviceorder.UpdateInput{
		OrderID:           req.ServiceOrder.ID,
		Target:            target,
		ReturnDeclaration: req.ServiceOrder.ReturnDeclaration,
		Hours:             req.ServiceOrder.Hours,
		Items:             req.ServiceOrder.Items,
	}
	if req.ServiceOrder.FinalDate != nil {
		finalDate, err := time.Parse(time.RFC3339, *req.ServiceOrder.FinalDate)
		if err != nil {
			s.writeError(w, apperrors.NewInvalidPayload("final_date must be an ISO timestamp"))
			return
		}
		in.FinalDate = &finalDate
	}

	order, err := s.workflow.UpdateStatus(r.Context(), bearerToken(r), in)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Service order updated successfully.",
		"serviceOrder": order,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	orders, err := s.workflow.List(r.Context(), bearerToken(r), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if orders == nil {
		orders = []serviceorder.ServiceOrder{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Service orders listed successfully.",
		"serviceOrders": orders,
	})
}

func parseListFilter(r *http.Request) (serviceorder.Filter, error) {
	var f serviceorder.Filter
	q := r.URL.Query()

	if v := q.Get("client_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, apperrors.NewInvalidPayload("client_id must be an integer")
		}
		f.ClientID = &id
	}
	if v := q.Get("initial_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, apperrors.NewInvalidPayload("initial_date must be an ISO timestamp")
		}
		f.InitialDateFrom = &t
	}
	if v := q.Get("final_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, apperrors.NewInvalidPayload("final_date must be an ISO timestamp")
		}
		f.InitialDateTo = &t
	}
	if v := q.Get("status"); v != "" {
		status, err := serviceorder.ParseStatus(v)
		if err != nil {
			return f, apperrors.NewInvalidPayload(err.Error())
		}
		f.Status = &status
	}
	if v := q.Get("total_value_gte"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, apperrors.NewInvalidPayload("total_value_gte must be a number")
		}
		f.TotalValueGTE = &n
	}
	if v := q.Get("total_value_lte"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, apperrors.NewInvalidPayload("total_value_lte must be a number")
		}
		f.TotalValueLTE = &n
	}
	return f, nil
}

func bearerToken(r *http.Request) string {
	return r.Header.Get("Authorization")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("write response failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", map[string]interface{}{"code": string(code), "error": err.Error()})
	}

	s.writeJSON(w, status, map[string]interface{}{
		"code":  string(code),
		"error": err.Error(),
	})
}

func statusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeInvalidPayload, apperrors.CodeInvalidTransition, apperrors.CodeStockValidation:
		return http.StatusBadRequest
	case apperrors.CodeAuthorizationDenied:
		return http.StatusForbidden
	case apperrors.CodeOrderNotFound:
		return http.StatusNotFound
	case apperrors.CodeBrokerError:
		return http.StatusBadGateway
	case apperrors.CodeRPCTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
