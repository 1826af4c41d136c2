package models

import (
	"fmt"

	"github.com/google/uuid"
)

// InvalidTransitionError reports an attempt to move a return request along an
// edge that does not exist in the transition graph. Transitions are
// one-directional; the only way "backward" is resubmitting a rejected request
// as a new record.
type InvalidTransitionError struct {
	From ReturnStatus
	To   ReturnStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid return status transition from %s to %s", e.From, e.To)
}

// ValidOrderTransitions defines valid state transitions for OrderStatus
// Flow: ORDER_PLACED → PROCESSING → OUT_FOR_DELIVERY → DELIVERED
// CANCELLED is reachable until the order leaves the warehouse
var ValidOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:         {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusOutForDelivery, OrderStatusCancelled},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
	OrderStatusDelivered:      {}, // Terminal state
	OrderStatusCancelled:      {}, // Terminal state
}

// ValidReturnTransitions defines valid state transitions for ReturnStatus.
// Forward flow: REQUESTED → APPROVED → PICKUP_SCHEDULED → PICKED_UP →
// INSPECTED → REFUND_PROCESSED → COMPLETED. The customer may withdraw
// (CANCELLED) from any state before the items are picked up. REJECTED is
// terminal; resubmission creates a new ReturnRequest.
var ValidReturnTransitions = map[ReturnStatus][]ReturnStatus{
	ReturnStatusRequested:       {ReturnStatusApproved, ReturnStatusRejected, ReturnStatusCancelled},
	ReturnStatusApproved:        {ReturnStatusPickupScheduled, ReturnStatusCancelled},
	ReturnStatusPickupScheduled: {ReturnStatusPickedUp, ReturnStatusCancelled},
	ReturnStatusPickedUp:        {ReturnStatusInspected},
	ReturnStatusInspected:       {ReturnStatusRefundProcessed},
	ReturnStatusRefundProcessed: {ReturnStatusCompleted},
	ReturnStatusCompleted:       {}, // Terminal state
	ReturnStatusRejected:        {}, // Terminal state; re-request creates a new record
	ReturnStatusCancelled:       {}, // Terminal state
}

// returnedStatuses are the return states that take an item out of the active
// set. REQUESTED and REJECTED deliberately do not: a merely requested or
// rejected return leaves the item active, it only blocks a second concurrent
// request while pending.
var returnedStatuses = map[ReturnStatus]bool{
	ReturnStatusApproved:        true,
	ReturnStatusPickupScheduled: true,
	ReturnStatusPickedUp:        true,
	ReturnStatusInspected:       true,
	ReturnStatusRefundProcessed: true,
	ReturnStatusCompleted:       true,
}

// CanTransitionOrderStatus checks if a transition from one order status to another is valid
func CanTransitionOrderStatus(from, to OrderStatus) bool {
	validTransitions, exists := ValidOrderTransitions[from]
	if !exists {
		return false
	}
	for _, validTo := range validTransitions {
		if validTo == to {
			return true
		}
	}
	return false
}

// ValidateOrderStatusTransition returns an error if the transition is invalid
func ValidateOrderStatusTransition(from, to OrderStatus) error {
	if !CanTransitionOrderStatus(from, to) {
		return fmt.Errorf("invalid order status transition from %s to %s", from, to)
	}
	return nil
}

// CanTransitionReturnStatus checks if a transition from one return status to another is valid
func CanTransitionReturnStatus(from, to ReturnStatus) bool {
	validTransitions, exists := ValidReturnTransitions[from]
	if !exists {
		return false
	}
	for _, validTo := range validTransitions {
		if validTo == to {
			return true
		}
	}
	return false
}

// ValidateReturnTransition returns an InvalidTransitionError if the requested
// edge is not in the graph
func ValidateReturnTransition(from, to ReturnStatus) error {
	if !CanTransitionReturnStatus(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// GetNextValidReturnStatuses returns the list of valid next statuses for a return
func GetNextValidReturnStatuses(current ReturnStatus) []ReturnStatus {
	return ValidReturnTransitions[current]
}

// GetNextValidOrderStatuses returns the list of valid next statuses for an order
func GetNextValidOrderStatuses(current OrderStatus) []OrderStatus {
	return ValidOrderTransitions[current]
}

// IsTerminalReturnStatus checks if the return status is a terminal state
func IsTerminalReturnStatus(status ReturnStatus) bool {
	return len(ValidReturnTransitions[status]) == 0
}

// IsTerminalOrderStatus checks if the order status is a terminal state
func IsTerminalOrderStatus(status OrderStatus) bool {
	return len(ValidOrderTransitions[status]) == 0
}

// CountsAsReturned reports whether a single return status removes the item
// from the active set
func CountsAsReturned(status ReturnStatus) bool {
	return returnedStatuses[status]
}

// ItemReturned reports whether the given item has been returned, judged by
// the most advanced return request covering it. An item with only REQUESTED
// or REJECTED requests is still active.
func ItemReturned(itemID uuid.UUID, requests []ReturnRequest) bool {
	for i := range requests {
		if requests[i].ItemID == itemID && returnedStatuses[requests[i].Status] {
			return true
		}
	}
	return false
}

// ItemHasOpenReturn reports whether the item already has a live return
// request, which blocks submitting another one. Rejected and cancelled
// requests do not block resubmission.
func ItemHasOpenReturn(itemID uuid.UUID, requests []ReturnRequest) bool {
	for i := range requests {
		if requests[i].ItemID != itemID {
			continue
		}
		if requests[i].Status == ReturnStatusRejected || requests[i].Status == ReturnStatusCancelled {
			continue
		}
		return true
	}
	return false
}

// OrderFrozen reports whether the order must refuse status mutations. Any
// pending cancellation request freezes the order until an admin resolves it;
// an approved partial cancellation leaves the remaining items mutable.
func OrderFrozen(ledger []CancellationRequest) bool {
	for i := range ledger {
		if ledger[i].Status == CancellationStatusPending {
			return true
		}
	}
	return false
}
