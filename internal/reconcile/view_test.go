package reconcile

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"aftersale-service/internal/models"
)

func twoItemOrder() *models.Order {
	return &models.Order{
		ID:             uuid.New(),
		Status:         models.OrderStatusProcessing,
		Subtotal:       500,
		DeliveryCharge: 50,
		Total:          550,
		OrderDate:      time.Now(),
		Items: []models.OrderItem{
			{ID: uuid.New(), Name: "Shirt", Quantity: 1, UnitPrice: 200},
			{ID: uuid.New(), Name: "Jeans", Quantity: 1, UnitPrice: 300},
		},
	}
}

func approvedCancellation(orderID uuid.UUID, itemIDs ...uuid.UUID) models.CancellationRequest {
	return models.CancellationRequest{
		ID:      uuid.New(),
		OrderID: orderID,
		Status:  models.CancellationStatusApproved,
		ItemIDs: models.UUIDList(itemIDs),
	}
}

func TestBuildActiveView_UntouchedOrderReturnsStoredTotals(t *testing.T) {
	b := NewBuilder(nil, nil)
	order := twoItemOrder()

	view := b.BuildActiveView(order, nil, nil)

	assert.Equal(t, 500.0, view.RemainingSubtotal)
	assert.Equal(t, 550.0, view.RemainingTotal)
	assert.Equal(t, 50.0, view.DeliveryCharge)
	assert.Equal(t, 2, view.ActiveItemCount)
	assert.False(t, view.HasCancelledItems)
	assert.False(t, view.HasReturnedItems)
	assert.False(t, view.IsFullyCancelled)
	assert.Zero(t, view.RefundAmount)
}

// Cancelled order, subtotal 900 delivery 100, no explicit refund recorded:
// the customer gets 90% of the items plus the full delivery charge.
func TestBuildActiveView_CancelledOrderComputesRefund(t *testing.T) {
	b := NewBuilder(nil, nil)
	order := &models.Order{
		ID:             uuid.New(),
		Status:         models.OrderStatusCancelled,
		Subtotal:       900,
		DeliveryCharge: 100,
		Total:          1000,
	}

	view := b.BuildActiveView(order, nil, nil)

	assert.True(t, view.IsFullyCancelled)
	assert.Empty(t, view.ActiveItems)
	assert.Zero(t, view.RemainingTotal)
	assert.Equal(t, 910.0, view.RefundAmount)
	assert.Equal(t, 90.0, view.RetentionFee)
}

func TestBuildActiveView_CancelledOrderPrefersExplicitRefund(t *testing.T) {
	b := NewBuilder(nil, nil)
	order := &models.Order{
		ID:             uuid.New(),
		Status:         models.OrderStatusCancelled,
		Subtotal:       900,
		DeliveryCharge: 100,
		Total:          1000,
	}
	req := approvedCancellation(order.ID)
	req.RefundAmount = 650

	view := b.BuildActiveView(order, []models.CancellationRequest{req}, nil)

	assert.Equal(t, 650.0, view.RefundAmount)
}

// One of two items is cancellation-approved: remaining amounts are
// re-derived from the surviving line and the delivery charge is retained.
func TestBuildActiveView_PartialCancellation(t *testing.T) {
	b := NewBuilder(nil, nil)
	order := twoItemOrder()
	req := approvedCancellation(order.ID, order.Items[0].ID)

	view := b.BuildActiveView(order, []models.CancellationRequest{req}, nil)

	assert.Len(t, view.ActiveItems, 1)
	assert.Equal(t, "Jeans", view.ActiveItems[0].Name)
	assert.Equal(t, 300.0, view.RemainingSubtotal)
	assert.Equal(t, 50.0, view.DeliveryCharge)
	assert.Equal(t, 350.0, view.RemainingTotal)
	assert.Equal(t, 180.0, view.RefundAmount)
	assert.Equal(t, 20.0, view.RetentionFee)
	assert.True(t, view.HasCancelledItems)
	assert.False(t, view.IsFullyCancelled)
}

func TestBuildActiveView_SingleItemCancellationWaivesDelivery(t *testing.T) {
	b := NewBuilder(nil, nil)
	itemID := uuid.New()
	order := &models.Order{
		ID:             uuid.New(),
		Status:         models.OrderStatusProcessing,
		Subtotal:       200,
		DeliveryCharge: 40,
		Total:          240,
		Items: []models.OrderItem{
			{ID: itemID, Name: "Shirt", Quantity: 1, UnitPrice: 200},
		},
	}
	req := approvedCancellation(order.ID, itemID)

	view := b.BuildActiveView(order, []models.CancellationRequest{req}, nil)

	assert.Zero(t, view.RemainingTotal)
	assert.Zero(t, view.DeliveryCharge)
	assert.Equal(t, 220.0, view.RefundAmount)
	assert.True(t, view.IsFullyCancelled)
}

func TestBuildActiveView_ThreeItemsOneCancelledKeepsDelivery(t *testing.T) {
	b := NewBuilder(nil, nil)
	order := &models.Order{
		ID:             uuid.New(),
		Status:         models.OrderStatusProcessing,
		Subtotal:       600,
		DeliveryCharge: 60,
		Total:          660,
		Items: []models.OrderItem{
			{ID: uuid.New(), Quantity: 1, UnitPrice: 100},
			{ID: uuid.New(), Quantity: 1, UnitPrice: 200},
			{ID: uuid.New(), Quantity: 1, UnitPrice: 300},
		},
	}
	req := approvedCancellation(order.ID, order.Items[0].ID)

	view := b.BuildActiveView(order, []models.CancellationRequest{req}, nil)

	assert.Equal(t, 500.0, view.RemainingSubtotal)
	assert.Equal(t, 60.0, view.DeliveryCharge)
	assert.Equal(t, 560.0, view.RemainingTotal)
}

func TestBuildActiveView_UnionsAllCancelledSources(t *testing.T) {
	b := NewBuilder(nil, nil)
	order := &models.Order{
		ID:             uuid.New(),
		Status:         models.OrderStatusProcessing,
		Subtotal:       600,
		DeliveryCharge: 60,
		Total:          660,
		Items: []models.OrderItem{
			{ID: uuid.New(), Quantity: 1, UnitPrice: 100},
			{ID: uuid.New(), Quantity: 1, UnitPrice: 200},
			{ID: uuid.New(), Quantity: 1, UnitPrice: 300},
		},
	}
	// one item per source: embedded annotation, approved ledger entry,
	// settled refund-summary line
	order.CancelledItemIDs = models.UUIDList{order.Items[0].ID}
	req := approvedCancellation(order.ID, order.Items[1].ID)
	order.RefundSummary = []models.RefundSummaryEntry{
		{ItemID: order.Items[2].ID, Status: models.RefundSummaryCompleted, Amount: 270},
	}

	view := b.BuildActiveView(order, []models.CancellationRequest{req}, nil)

	assert.Empty(t, view.ActiveItems)
	assert.True(t, view.IsFullyCancelled)
	assert.Zero(t, view.RemainingTotal)
}

func TestBuildActiveView_PendingCancellationDoesNotRemoveItems(t *testing.T) {
	b := NewBuilder(nil, nil)
	order := twoItemOrder()
	req := approvedCancellation(order.ID, order.Items[0].ID)
	req.Status = models.CancellationStatusPending

	view := b.BuildActiveView(order, []models.CancellationRequest{req}, nil)

	assert.Len(t, view.ActiveItems, 2)
	assert.Equal(t, 550.0, view.RemainingTotal)
}

func TestBuildActiveView_RejectedReturnKeepsItemActive(t *testing.T) {
	b := NewBuilder(nil, nil)
	order := twoItemOrder()
	returns := []models.ReturnRequest{
		{ID: uuid.New(), OrderID: order.ID, ItemID: order.Items[0].ID, Status: models.ReturnStatusRejected},
	}

	view := b.BuildActiveView(order, nil, returns)

	assert.Len(t, view.ActiveItems, 2)
	assert.False(t, view.HasReturnedItems)
}

func TestBuildActiveView_ApprovedReturnRemovesItem(t *testing.T) {
	b := NewBuilder(nil, nil)
	order := twoItemOrder()
	returns := []models.ReturnRequest{
		{ID: uuid.New(), OrderID: order.ID, ItemID: order.Items[0].ID, Status: models.ReturnStatusApproved},
	}

	view := b.BuildActiveView(order, nil, returns)

	assert.Len(t, view.ActiveItems, 1)
	assert.Equal(t, 300.0, view.RemainingSubtotal)
	assert.True(t, view.HasReturnedItems)
	assert.False(t, view.HasCancelledItems)
}

func TestBuildActiveView_ExplicitLedgerRefundWins(t *testing.T) {
	b := NewBuilder(nil, nil)
	order := twoItemOrder()
	req := approvedCancellation(order.ID, order.Items[0].ID)
	req.RefundAmount = 155.55

	view := b.BuildActiveView(order, []models.CancellationRequest{req}, nil)

	assert.Equal(t, 155.55, view.RefundAmount)
	assert.Equal(t, 20.0, view.RetentionFee)
}

func TestBuildActiveView_Idempotent(t *testing.T) {
	b := NewBuilder(nil, nil)
	order := twoItemOrder()
	ledger := []models.CancellationRequest{approvedCancellation(order.ID, order.Items[0].ID)}

	first := b.BuildActiveView(order, ledger, nil)
	second := b.BuildActiveView(order, ledger, nil)

	assert.Equal(t, first, second)
}

// Approving one more cancellation never raises the remaining total and
// never lowers the refund.
func TestBuildActiveView_MonotonicUnderAddedCancellations(t *testing.T) {
	b := NewBuilder(nil, nil)
	order := &models.Order{
		ID:             uuid.New(),
		Status:         models.OrderStatusProcessing,
		Subtotal:       600,
		DeliveryCharge: 60,
		Total:          660,
		Items: []models.OrderItem{
			{ID: uuid.New(), Quantity: 1, UnitPrice: 100},
			{ID: uuid.New(), Quantity: 1, UnitPrice: 200},
			{ID: uuid.New(), Quantity: 1, UnitPrice: 300},
		},
	}

	var ledger []models.CancellationRequest
	prev := b.BuildActiveView(order, ledger, nil)
	for _, item := range order.Items {
		ledger = append(ledger, approvedCancellation(order.ID, item.ID))
		next := b.BuildActiveView(order, ledger, nil)

		assert.LessOrEqual(t, next.RemainingTotal, prev.RemainingTotal)
		assert.GreaterOrEqual(t, next.RefundAmount, prev.RefundAmount)
		prev = next
	}
}

func TestBuildActiveView_InvariantSubtotalPlusDelivery(t *testing.T) {
	b := NewBuilder(nil, nil)
	order := twoItemOrder()
	ledger := []models.CancellationRequest{approvedCancellation(order.ID, order.Items[0].ID)}

	view := b.BuildActiveView(order, ledger, nil)

	assert.InDelta(t, view.RemainingTotal, view.RemainingSubtotal+view.DeliveryCharge, 0.01)
}
