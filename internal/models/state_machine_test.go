package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// A delivered item's return walks the full happy path to completion.
func TestReturnTransitions_FullLifecycle(t *testing.T) {
	path := []ReturnStatus{
		ReturnStatusRequested,
		ReturnStatusApproved,
		ReturnStatusPickupScheduled,
		ReturnStatusPickedUp,
		ReturnStatusInspected,
		ReturnStatusRefundProcessed,
		ReturnStatusCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		assert.NoError(t, ValidateReturnTransition(path[i], path[i+1]),
			"%s -> %s", path[i], path[i+1])
	}
}

func TestReturnTransitions_NoSkippingStages(t *testing.T) {
	err := ValidateReturnTransition(ReturnStatusRequested, ReturnStatusPickedUp)

	var terr *InvalidTransitionError
	assert.ErrorAs(t, err, &terr)
	assert.Equal(t, ReturnStatusRequested, terr.From)
	assert.Equal(t, ReturnStatusPickedUp, terr.To)
}

func TestReturnTransitions_NoBackwardMoves(t *testing.T) {
	assert.Error(t, ValidateReturnTransition(ReturnStatusPickedUp, ReturnStatusApproved))
	assert.Error(t, ValidateReturnTransition(ReturnStatusCompleted, ReturnStatusRequested))
}

func TestReturnTransitions_CancelOnlyBeforePickup(t *testing.T) {
	assert.True(t, CanTransitionReturnStatus(ReturnStatusRequested, ReturnStatusCancelled))
	assert.True(t, CanTransitionReturnStatus(ReturnStatusApproved, ReturnStatusCancelled))
	assert.True(t, CanTransitionReturnStatus(ReturnStatusPickupScheduled, ReturnStatusCancelled))

	assert.False(t, CanTransitionReturnStatus(ReturnStatusPickedUp, ReturnStatusCancelled))
	assert.False(t, CanTransitionReturnStatus(ReturnStatusInspected, ReturnStatusCancelled))
	assert.False(t, CanTransitionReturnStatus(ReturnStatusRefundProcessed, ReturnStatusCancelled))
}

func TestReturnTransitions_TerminalStates(t *testing.T) {
	assert.True(t, IsTerminalReturnStatus(ReturnStatusCompleted))
	assert.True(t, IsTerminalReturnStatus(ReturnStatusRejected))
	assert.True(t, IsTerminalReturnStatus(ReturnStatusCancelled))
	assert.False(t, IsTerminalReturnStatus(ReturnStatusRequested))

	assert.Empty(t, GetNextValidReturnStatuses(ReturnStatusCompleted))
}

func TestCountsAsReturned(t *testing.T) {
	returned := []ReturnStatus{
		ReturnStatusApproved,
		ReturnStatusPickupScheduled,
		ReturnStatusPickedUp,
		ReturnStatusInspected,
		ReturnStatusRefundProcessed,
		ReturnStatusCompleted,
	}
	for _, s := range returned {
		assert.True(t, CountsAsReturned(s), "%s", s)
	}

	assert.False(t, CountsAsReturned(ReturnStatusRequested))
	assert.False(t, CountsAsReturned(ReturnStatusRejected))
	assert.False(t, CountsAsReturned(ReturnStatusCancelled))
}

func TestItemReturned_MostAdvancedRequestDecides(t *testing.T) {
	itemID := uuid.New()
	requests := []ReturnRequest{
		{ItemID: itemID, Status: ReturnStatusRejected},
		{ItemID: itemID, Status: ReturnStatusApproved},
	}

	assert.True(t, ItemReturned(itemID, requests))
	assert.False(t, ItemReturned(uuid.New(), requests))
}

func TestItemHasOpenReturn(t *testing.T) {
	itemID := uuid.New()

	assert.True(t, ItemHasOpenReturn(itemID, []ReturnRequest{
		{ItemID: itemID, Status: ReturnStatusRequested},
	}))

	// rejected and cancelled requests do not block a resubmission
	assert.False(t, ItemHasOpenReturn(itemID, []ReturnRequest{
		{ItemID: itemID, Status: ReturnStatusRejected},
		{ItemID: itemID, Status: ReturnStatusCancelled},
	}))
}

func TestOrderTransitions(t *testing.T) {
	assert.NoError(t, ValidateOrderStatusTransition(OrderStatusPlaced, OrderStatusProcessing))
	assert.NoError(t, ValidateOrderStatusTransition(OrderStatusProcessing, OrderStatusOutForDelivery))
	assert.NoError(t, ValidateOrderStatusTransition(OrderStatusOutForDelivery, OrderStatusDelivered))
	assert.NoError(t, ValidateOrderStatusTransition(OrderStatusProcessing, OrderStatusCancelled))

	assert.Error(t, ValidateOrderStatusTransition(OrderStatusDelivered, OrderStatusProcessing))
	assert.Error(t, ValidateOrderStatusTransition(OrderStatusCancelled, OrderStatusPlaced))
	assert.Error(t, ValidateOrderStatusTransition(OrderStatusOutForDelivery, OrderStatusCancelled))
}

func TestOrderFrozen(t *testing.T) {
	assert.False(t, OrderFrozen(nil))
	assert.False(t, OrderFrozen([]CancellationRequest{
		{Status: CancellationStatusApproved},
		{Status: CancellationStatusRejected},
	}))
	assert.True(t, OrderFrozen([]CancellationRequest{
		{Status: CancellationStatusApproved},
		{Status: CancellationStatusPending},
	}))
}
