// Package errors holds the typed errors shared by services and handlers.
package errors

import (
	"fmt"

	"github.com/kicksvault/storefront/internal/domain"
)

// ErrNotFound is returned when a resource does not exist
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrInvalidStateTransition is returned when an order cannot move to a status
type ErrInvalidStateTransition struct {
	From domain.OrderStatus
	To   domain.OrderStatus
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// ErrValidation is returned for malformed input
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrOrderPlacement is returned when the order service rejects or fails a
// placement. ServerMessage is the verbatim message from the service, if any.
type ErrOrderPlacement struct {
	StatusCode    int
	ServerMessage string
	Err           error
}

func (e *ErrOrderPlacement) Error() string {
	if e.ServerMessage != "" {
		return e.ServerMessage
	}
	if e.Err != nil {
		return fmt.Sprintf("order placement failed: %v", e.Err)
	}
	return fmt.Sprintf("order placement failed: status %d", e.StatusCode)
}

func (e *ErrOrderPlacement) Unwrap() error {
	return e.Err
}

// ErrReconciliationConflict records a pushed status that disagrees with a
// terminal local status. It is logged and reported, never applied.
type ErrReconciliationConflict struct {
	OrderID string
	Local   domain.OrderStatus
	Pushed  domain.OrderStatus
}

func (e *ErrReconciliationConflict) Error() string {
	return fmt.Sprintf("order %s is %s locally; ignoring pushed status %s", e.OrderID, e.Local, e.Pushed)
}

// ErrUpstream is returned when a collaborator service call other than order
// placement fails. ServerMessage is the service's own message, if any.
type ErrUpstream struct {
	Service       string
	StatusCode    int
	ServerMessage string
	Err           error
}

func (e *ErrUpstream) Error() string {
	if e.ServerMessage != "" {
		return e.ServerMessage
	}
	if e.Err != nil {
		return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s request failed: status %d", e.Service, e.StatusCode)
}

func (e *ErrUpstream) Unwrap() error {
	return e.Err
}
