// Package serviceorder owns the service-order lifecycle: the status state
// machine, the persisted model, the SQL store and the workflow that
// sequences authorization and stock validation inside a transaction.
package serviceorder

import "time"

// ServiceOrder is one unit of field work, scoped to a tenant (company).
// Completion-related fields are pointers because they only exist while the
// order is completed; reverting to inProgress clears them.
type ServiceOrder struct {
	ID                  int64      `json:"id"`
	TechnicianID        int64      `json:"technician_id"`
	ClientID            int64      `json:"client_id"`
	TenantID            int64      `json:"companie_id"`
	InitialDate         time.Time  `json:"initial_date"`
	FinalDate           *time.Time `json:"final_date,omitempty"`
	DeliveryDeclaration string     `json:"delivery_declaration"`
	Problem             string     `json:"problem"`
	Solution            string     `json:"solution,omitempty"`
	ReturnDeclaration   *string    `json:"return_declaration,omitempty"`
	Hours               *int       `json:"hours,omitempty"`
	TotalValue          *float64   `json:"total_value,omitempty"`
	TransactionIDs      []int64    `json:"transactionIds,omitempty"`
	Status              Status     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Filter narrows a tenant-scoped listing. Nil fields are not applied.
type Filter struct {
	TenantID        int64
	ClientID        *int64
	InitialDateFrom *time.Time
	InitialDateTo   *time.Time
	Status          *Status
	TotalValueGTE   *float64
	TotalValueLTE   *float64
}
