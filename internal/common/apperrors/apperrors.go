// Package apperrors defines the closed error taxonomy shared by the gateways,
// the workflow and the API layer.
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// Code identifies one entry of the error taxonomy.
type Code string

const (
	CodeAuthorizationDenied Code = "AUTHORIZATION_DENIED"
	CodeRPCTimeout          Code = "RPC_TIMEOUT"
	CodeBrokerError         Code = "BROKER_ERROR"
	CodeStockValidation     Code = "STOCK_VALIDATION_FAILED"
	CodeOrderNotFound       Code = "ORDER_NOT_FOUND"
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
	CodeInvalidPayload      Code = "INVALID_PAYLOAD"
	CodeInternal            Code = "INTERNAL"
)

// Error is a structured application error. Details carries the underlying
// cause or the remote service's message verbatim.
type Error struct {
	Code      Code      `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports code equality, so errors.Is(err, &Error{Code: c}) and the
// HasCode helper both work across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func newError(code Code, message, details string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// CodeOf extracts the taxonomy code from err, or CodeInternal when err is not
// an application error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given taxonomy code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func NewAuthorizationDenied(details string) *Error {
	return newError(CodeAuthorizationDenied, "access denied", details)
}

func NewRPCTimeout(target string) *Error {
	return newError(CodeRPCTimeout, "no response received within deadline", target)
}

func NewBrokerError(err error) *Error {
	return newError(CodeBrokerError, "broker operation failed", err.Error())
}

func NewStockValidation(remoteMessage string) *Error {
	return newError(CodeStockValidation, "stock validation failed", remoteMessage)
}

func NewOrderNotFound(orderID int64) *Error {
	return newError(CodeOrderNotFound, "service order not found", fmt.Sprintf("orderId: %d", orderID))
}

func NewInvalidTransition(details string) *Error {
	return newError(CodeInvalidTransition, "invalid status transition", details)
}

func NewInvalidPayload(details string) *Error {
	return newError(CodeInvalidPayload, "invalid request structure", details)
}

func NewInternal(err error) *Error {
	return newError(CodeInternal, "internal error", err.Error())
}
