package events

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"aftersale-service/internal/models"
)

// Publisher wraps the go-shared events publisher for after-sale events
type Publisher struct {
	publisher *events.Publisher
	logger    *logrus.Entry
}

// NewPublisher creates a new after-sale events publisher
func NewPublisher(logger *logrus.Logger) (*Publisher, error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		// Default to GKE internal NATS service URL
		// For local development, set NATS_URL=nats://localhost:4222
		natsURL = "nats://nats.nats.svc.cluster.local:4222"
	}

	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "aftersale-service"

	publisher, err := events.NewPublisher(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create events publisher: %w", err)
	}

	// Ensure the orders stream exists
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := publisher.EnsureStream(ctx, events.StreamOrders, []string{"order.>"}); err != nil {
		logger.WithError(err).Warn("Failed to ensure orders stream (may already exist)")
	}

	return &Publisher{
		publisher: publisher,
		logger:    logger.WithField("component", "aftersale-events"),
	}, nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p.publisher != nil {
		p.publisher.Close()
	}
}

// PublishOrderStatusChanged publishes an order.status_changed event
func (p *Publisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus, newStatus string, tenantID string) error {
	event := p.buildOrderEvent("order.status_changed", order, tenantID)
	event.Metadata = map[string]interface{}{
		"previousStatus": previousStatus,
		"newStatus":      newStatus,
	}
	return p.publish(ctx, event)
}

// PublishOrderCancelled publishes an order.cancelled event
func (p *Publisher) PublishOrderCancelled(ctx context.Context, order *models.Order, reason string, tenantID string) error {
	event := p.buildOrderEvent(events.OrderCancelled, order, tenantID)
	event.CancellationReason = reason
	event.CancelledBy = "admin"
	return p.publish(ctx, event)
}

// PublishCancellationApproved publishes an order.cancellation_approved event
// carrying the refund decision
func (p *Publisher) PublishCancellationApproved(ctx context.Context, order *models.Order, req *models.CancellationRequest, tenantID string) error {
	event := p.buildOrderEvent("order.cancellation_approved", order, tenantID)
	event.RefundAmount = req.RefundAmount
	event.Metadata = map[string]interface{}{
		"cancellationRequestId": req.ID.String(),
		"refundPercentage":      req.RefundPercentage,
		"fullOrder":             req.IsFullOrder(),
		"itemCount":             len(req.ItemIDs),
	}
	return p.publish(ctx, event)
}

// PublishCancellationRejected publishes an order.cancellation_rejected event
func (p *Publisher) PublishCancellationRejected(ctx context.Context, order *models.Order, req *models.CancellationRequest, tenantID string) error {
	event := p.buildOrderEvent("order.cancellation_rejected", order, tenantID)
	event.Metadata = map[string]interface{}{
		"cancellationRequestId": req.ID.String(),
		"adminComments":         req.AdminComments,
	}
	return p.publish(ctx, event)
}

// PublishOrderRefunded publishes an order.refunded event
func (p *Publisher) PublishOrderRefunded(ctx context.Context, order *models.Order, refundAmount float64, reason string, tenantID string) error {
	event := p.buildOrderEvent(events.OrderRefunded, order, tenantID)
	event.RefundAmount = refundAmount
	event.RefundReason = reason
	return p.publish(ctx, event)
}

// PublishReturnStatusChanged publishes an order.return_status_changed event
// for each transition of a return request
func (p *Publisher) PublishReturnStatusChanged(ctx context.Context, order *models.Order, ret *models.ReturnRequest, previousStatus models.ReturnStatus, tenantID string) error {
	event := p.buildOrderEvent("order.return_status_changed", order, tenantID)
	event.Metadata = map[string]interface{}{
		"returnId":       ret.ID.String(),
		"rmaNumber":      ret.RMANumber,
		"itemId":         ret.ItemID.String(),
		"previousStatus": string(previousStatus),
		"newStatus":      string(ret.Status),
		"refundAmount":   ret.RefundAmount,
	}
	return p.publish(ctx, event)
}

// buildOrderEvent creates an OrderEvent from an order model
func (p *Publisher) buildOrderEvent(eventType string, order *models.Order, tenantID string) *events.OrderEvent {
	event := events.NewOrderEvent(eventType, tenantID)
	event.SourceID = uuid.New().String()
	event.OrderID = order.ID.String()
	event.OrderNumber = order.OrderNumber
	event.OrderDate = order.OrderDate.Format(time.RFC3339)
	event.Status = string(order.Status)
	event.PaymentStatus = string(order.PaymentStatus)
	event.TotalAmount = order.Total
	event.Subtotal = order.Subtotal
	event.ShippingCost = order.DeliveryCharge
	event.CustomerID = order.CustomerID.String()

	// Order items
	event.Items = make([]events.OrderItem, len(order.Items))
	for i, item := range order.Items {
		productID := ""
		if item.ProductID != nil {
			productID = item.ProductID.String()
		}
		event.Items[i] = events.OrderItem{
			ProductID:  productID,
			SKU:        item.SKU,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.ItemTotal,
		}
	}
	event.ItemCount = len(order.Items)

	if order.EstimatedDelivery != nil {
		event.EstimatedDelivery = order.EstimatedDelivery.Format(time.RFC3339)
	}

	return event
}

// publish is a helper that logs and publishes events asynchronously
func (p *Publisher) publish(ctx context.Context, event *events.OrderEvent) error {
	// Publish asynchronously to not block the main flow
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := p.publisher.PublishOrder(pubCtx, event); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType":   event.EventType,
				"orderNumber": event.OrderNumber,
				"tenantID":    event.TenantID,
			}).WithError(err).Error("Failed to publish order event")
		} else {
			p.logger.WithFields(logrus.Fields{
				"eventType":   event.EventType,
				"orderNumber": event.OrderNumber,
				"tenantID":    event.TenantID,
			}).Info("Order event published successfully")
		}
	}()

	return nil
}
