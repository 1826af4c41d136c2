package services

import (
	"time"

	"github.com/google/uuid"

	"aftersale-service/internal/models"
)

// MaskID masks a UUID for public display: keeps the first segment only,
// "a1b2c3d4-....-...." -> "a1b2c3d4-****".
func MaskID(id uuid.UUID) string {
	s := id.String()
	return s[:8] + "-****"
}

// MaskOrderForPublic returns a JSON-safe map with identifiers masked for
// guest order lookup. The guest link proves knowledge of the order, not of
// the customer account, so account-level identifiers never leave masked.
func MaskOrderForPublic(order *models.Order) map[string]interface{} {
	result := map[string]interface{}{
		"orderNumber":    order.OrderNumber,
		"customerId":     MaskID(order.CustomerID),
		"status":         order.Status,
		"statusDisplay":  order.Status.DisplayName(),
		"paymentStatus":  order.PaymentStatus,
		"subtotal":       order.Subtotal,
		"deliveryCharge": order.DeliveryCharge,
		"total":          order.Total,
		"orderDate":      order.OrderDate.Format(time.RFC3339),
	}

	if order.EstimatedDelivery != nil {
		result["estimatedDelivery"] = order.EstimatedDelivery.Format(time.RFC3339)
	}
	if order.ActualDelivery != nil {
		result["actualDelivery"] = order.ActualDelivery.Format(time.RFC3339)
	}

	// Items (public info only, no catalog snapshot internals)
	cancelled := make(map[uuid.UUID]bool, len(order.CancelledItemIDs))
	for _, id := range order.CancelledItemIDs {
		cancelled[id] = true
	}

	var items []map[string]interface{}
	for _, item := range order.Items {
		items = append(items, map[string]interface{}{
			"id":        item.ID,
			"name":      item.Name,
			"size":      item.Size,
			"quantity":  item.Quantity,
			"unitPrice": item.UnitPrice,
			"itemTotal": item.ItemTotal,
			"cancelled": cancelled[item.ID],
		})
	}
	result["items"] = items

	// Cancellation annotation
	if order.CancelledAt != nil {
		result["cancelledAt"] = order.CancelledAt.Format(time.RFC3339)
		result["cancellationReason"] = order.CancellationReason
	}

	// Computed eligibility flags for the storefront
	result["canCancel"] = models.CanTransitionOrderStatus(order.Status, models.OrderStatusCancelled)
	result["canRequestReturn"] = order.Status == models.OrderStatusDelivered

	return result
}
