package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"aftersale-service/internal/clients"
	"aftersale-service/internal/events"
	"aftersale-service/internal/models"
	"aftersale-service/internal/pricing"
	"aftersale-service/internal/reconcile"
	"aftersale-service/internal/repository"
)

// CancellationLedger is the slice of the cancellation repository the order
// service reads
type CancellationLedger interface {
	GetCancellationsByOrderID(orderID uuid.UUID) ([]models.CancellationRequest, error)
	HasPendingCancellation(orderID uuid.UUID, tenantID string) (bool, error)
}

// ReturnLedger is the slice of the return repository the order service reads
type ReturnLedger interface {
	GetReturnsByOrderID(orderID uuid.UUID) ([]models.ReturnRequest, error)
}

type OrderService struct {
	orderRepo        repository.OrderRepository
	cancellationRepo CancellationLedger
	returnRepo       ReturnLedger
	viewBuilder      *reconcile.Builder
	pricer           *pricing.Resolver
	catalogClient    clients.CatalogClient
	publisher        *events.Publisher
	log              *logrus.Entry
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	cancellationRepo CancellationLedger,
	returnRepo ReturnLedger,
	viewBuilder *reconcile.Builder,
	pricer *pricing.Resolver,
	catalogClient clients.CatalogClient,
	publisher *events.Publisher,
	logger *logrus.Logger,
) *OrderService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &OrderService{
		orderRepo:        orderRepo,
		cancellationRepo: cancellationRepo,
		returnRepo:       returnRepo,
		viewBuilder:      viewBuilder,
		pricer:           pricer,
		catalogClient:    catalogClient,
		publisher:        publisher,
		log:              logger.WithField("component", "order-service"),
	}
}

// CreateOrder persists a new order. Line totals are resolved through the
// pricing snapshot precedence so the stored subtotal reflects the prices
// actually charged.
func (s *OrderService) CreateOrder(order *models.Order) (*models.Order, error) {
	if len(order.Items) == 0 {
		return nil, fmt.Errorf("order must contain at least one item")
	}

	subtotal := 0.0
	for i := range order.Items {
		amount := s.pricer.ResolveLineAmount(order.Items[i], s.catalogRef(&order.Items[i], order.TenantID))
		if order.Items[i].UnitPrice == 0 {
			order.Items[i].UnitPrice = amount.UnitPrice
		}
		if order.Items[i].ItemTotal == 0 {
			order.Items[i].ItemTotal = amount.Total
		}
		subtotal += amount.Total
	}
	order.Subtotal = subtotal
	order.Total = subtotal + order.DeliveryCharge

	if order.Status == "" {
		order.Status = models.OrderStatusPlaced
	}
	if order.OrderDate.IsZero() {
		order.OrderDate = time.Now()
	}

	if err := s.orderRepo.Create(order); err != nil {
		return nil, err
	}

	return order, nil
}

// catalogRef fetches the live catalog reference for an item that arrived
// with neither a price snapshot nor catalog snapshot columns. Lookup
// failures are logged and fall through to the resolver's stored fallbacks.
func (s *OrderService) catalogRef(item *models.OrderItem, tenantID string) *models.CatalogRef {
	if s.catalogClient == nil {
		return nil
	}
	if item.SizeAdjustedPrice > 0 || item.UnitPrice > 0 || item.ItemTotal > 0 {
		return nil
	}
	if item.BasePrice > 0 || item.BundlePrice > 0 {
		return nil
	}

	var (
		ref *models.CatalogRef
		err error
	)
	switch {
	case item.ItemType == models.ItemTypeBundle && item.BundleID != nil:
		ref, err = s.catalogClient.GetBundleRef(item.BundleID.String(), tenantID)
	case item.ProductID != nil:
		ref, err = s.catalogClient.GetProductRef(item.ProductID.String(), tenantID)
	default:
		return nil
	}
	if err != nil {
		s.log.WithError(err).WithField("itemName", item.Name).
			Warn("Failed to fetch catalog reference for unpriced item")
		return nil
	}
	return ref
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(id uuid.UUID, tenantID string) (*models.Order, error) {
	return s.orderRepo.GetByID(id, tenantID)
}

// GetOrderByNumber retrieves an order by order number
func (s *OrderService) GetOrderByNumber(orderNumber string, tenantID string) (*models.Order, error) {
	return s.orderRepo.GetByOrderNumber(orderNumber, tenantID)
}

// ListOrders lists orders with filters
func (s *OrderService) ListOrders(filters repository.OrderFilters) ([]models.Order, int64, error) {
	return s.orderRepo.List(filters)
}

// GetActiveView loads the order and both ledgers and reconciles them into
// the active view. The builder itself never fails; a load failure of either
// ledger degrades to the order's stored totals with the Degraded flag set.
func (s *OrderService) GetActiveView(orderID uuid.UUID, tenantID string) (*reconcile.ActiveOrderView, error) {
	order, err := s.orderRepo.GetByID(orderID, tenantID)
	if err != nil {
		return nil, err
	}

	degraded := false

	cancellations, err := s.cancellationRepo.GetCancellationsByOrderID(orderID)
	if err != nil {
		s.log.WithError(err).WithField("orderId", orderID).
			Error("Failed to load cancellation ledger, degrading view")
		cancellations = nil
		degraded = true
	}

	returns, err := s.returnRepo.GetReturnsByOrderID(orderID)
	if err != nil {
		s.log.WithError(err).WithField("orderId", orderID).
			Error("Failed to load return ledger, degrading view")
		returns = nil
		degraded = true
	}

	view := s.viewBuilder.BuildActiveView(order, cancellations, returns)
	if degraded {
		view.Degraded = true
	}

	return view, nil
}

// UpdateOrderStatus applies a status transition. The transition must be in
// the order status graph, and an order with any pending cancellation request
// is frozen until the request is resolved.
func (s *OrderService) UpdateOrderStatus(orderID uuid.UUID, tenantID string, target models.OrderStatus, notes string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID, tenantID)
	if err != nil {
		return nil, err
	}

	pending, err := s.cancellationRepo.HasPendingCancellation(orderID, tenantID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, fmt.Errorf("order is frozen by a pending cancellation request")
	}

	if err := models.ValidateOrderStatusTransition(order.Status, target); err != nil {
		return nil, err
	}

	previous := order.Status

	var extra map[string]interface{}
	if target == models.OrderStatusDelivered {
		extra = map[string]interface{}{"actual_delivery": time.Now()}
	}

	if err := s.orderRepo.UpdateStatus(orderID, target, notes, tenantID, extra); err != nil {
		return nil, err
	}

	updated, err := s.orderRepo.GetByID(orderID, tenantID)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishOrderStatusChanged(context.Background(), updated, string(previous), string(target), tenantID); err != nil {
			s.log.WithError(err).Warn("Failed to publish order status event")
		}
	}

	return updated, nil
}

// GetOrderTimeline retrieves the audit timeline for an order
func (s *OrderService) GetOrderTimeline(orderID uuid.UUID) ([]models.OrderTimeline, error) {
	return s.orderRepo.GetTimelineByOrderID(orderID)
}
