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
	"aftersale-service/internal/refund"
	"aftersale-service/internal/repository"
)

// CancellationStore is the slice of the cancellation repository the service
// writes and reads the ledger through
type CancellationStore interface {
	CreateCancellation(req *models.CancellationRequest) error
	GetCancellationByID(id uuid.UUID, tenantID string) (*models.CancellationRequest, error)
	ListCancellations(tenantID string, filters map[string]interface{}, page, pageSize int) ([]models.CancellationRequest, int64, error)
	GetCancellationsByOrderID(orderID uuid.UUID) ([]models.CancellationRequest, error)
	ApproveCancellation(id uuid.UUID, tenantID, processedBy string, refundAmount, refundPercentage float64, comments string) error
	RejectCancellation(id uuid.UUID, tenantID, processedBy, comments string) error
	UpdateRefundDetails(id uuid.UUID, tenantID, refundID, refundStatus, refundMethod string) error
}

type CancellationService struct {
	cancellationRepo CancellationStore
	orderRepo        repository.OrderRepository
	policyRepo       RefundPolicyStore
	refundEngine     *refund.Engine
	catalogClient    clients.CatalogClient
	paymentClient    clients.PaymentClient
	publisher        *events.Publisher
	log              *logrus.Entry
}

func NewCancellationService(
	cancellationRepo CancellationStore,
	orderRepo repository.OrderRepository,
	policyRepo RefundPolicyStore,
	refundEngine *refund.Engine,
	catalogClient clients.CatalogClient,
	paymentClient clients.PaymentClient,
	publisher *events.Publisher,
	logger *logrus.Logger,
) *CancellationService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CancellationService{
		cancellationRepo: cancellationRepo,
		orderRepo:        orderRepo,
		policyRepo:       policyRepo,
		refundEngine:     refundEngine,
		catalogClient:    catalogClient,
		paymentClient:    paymentClient,
		publisher:        publisher,
		log:              logger.WithField("component", "cancellation-service"),
	}
}

// CreateCancellationRequest opens a cancellation request for an order.
// An empty item list asks to cancel the whole order. Orders already out for
// delivery or delivered do not accept new requests, and a pending request
// blocks a second one.
func (s *CancellationService) CreateCancellationRequest(req *CreateCancellationRequest) (*models.CancellationRequest, error) {
	order, err := s.orderRepo.GetByID(req.OrderID, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("order not found: %w", err)
	}

	if order.Status == models.OrderStatusCancelled {
		return nil, fmt.Errorf("order is already cancelled")
	}
	if order.Status == models.OrderStatusOutForDelivery || order.Status == models.OrderStatusDelivered {
		return nil, fmt.Errorf("order cannot be cancelled (status: %s)", order.Status)
	}

	for _, itemID := range req.ItemIDs {
		if order.ItemByID(itemID) == nil {
			return nil, fmt.Errorf("order item %s not found", itemID)
		}
		if order.CancelledItemIDs.Contains(itemID) {
			return nil, fmt.Errorf("order item %s is already cancelled", itemID)
		}
	}

	cancellation := &models.CancellationRequest{
		TenantID:    req.TenantID,
		OrderID:     req.OrderID,
		Status:      models.CancellationStatusPending,
		ItemIDs:     req.ItemIDs,
		Reason:      req.Reason,
		RequestedAt: time.Now(),
	}

	if err := s.cancellationRepo.CreateCancellation(cancellation); err != nil {
		return nil, err
	}

	return cancellation, nil
}

// GetCancellation retrieves a cancellation request by ID
func (s *CancellationService) GetCancellation(id uuid.UUID, tenantID string) (*models.CancellationRequest, error) {
	return s.cancellationRepo.GetCancellationByID(id, tenantID)
}

// ListCancellations lists cancellation requests with filters
func (s *CancellationService) ListCancellations(tenantID string, filters map[string]interface{}, page, pageSize int) ([]models.CancellationRequest, int64, error) {
	return s.cancellationRepo.ListCancellations(tenantID, filters, page, pageSize)
}

// GetCancellationsByOrder retrieves the cancellation ledger for an order
func (s *CancellationService) GetCancellationsByOrder(orderID uuid.UUID) ([]models.CancellationRequest, error) {
	return s.cancellationRepo.GetCancellationsByOrderID(orderID)
}

// ApproveCancellation approves a pending request. The refund policy engine
// decides the payable amount (with penalties, optionally overridden by the
// admin); the decision is recorded on the ledger, the order is annotated,
// inventory is restored, and the refund is paid out.
func (s *CancellationService) ApproveCancellation(id uuid.UUID, tenantID, processedBy string, overridePercentage *float64, comments string) (*models.CancellationRequest, error) {
	req, err := s.cancellationRepo.GetCancellationByID(id, tenantID)
	if err != nil {
		return nil, err
	}
	if !req.CanApprove() {
		return nil, fmt.Errorf("cancellation request cannot be approved (status: %s)", req.Status)
	}

	order, err := s.orderRepo.GetByID(req.OrderID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("order not found: %w", err)
	}

	settings, err := s.policySettings(tenantID)
	if err != nil {
		return nil, err
	}

	ctx := refund.RequestContext{RequestedAt: req.RequestedAt}

	var result *refund.RefundResult
	if req.IsFullOrder() {
		result, err = s.refundEngine.ComputeRefund(order, ctx, overridePercentage, settings)
	} else {
		result, _, err = s.refundEngine.ComputeItemsRefund(order, req.ItemIDs, ctx, overridePercentage, settings)
	}
	if err != nil {
		return nil, err
	}

	if err := s.cancellationRepo.ApproveCancellation(id, tenantID, processedBy, result.RefundAmount, result.Percentage, comments); err != nil {
		return nil, err
	}

	if err := s.annotateOrder(order, req); err != nil {
		return nil, err
	}

	s.restoreInventory(order, req)
	s.executeRefund(req, order, result.RefundAmount)

	approved, err := s.cancellationRepo.GetCancellationByID(id, tenantID)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishCancellationApproved(context.Background(), order, approved, tenantID); err != nil {
			s.log.WithError(err).Warn("Failed to publish cancellation approved event")
		}
		if req.IsFullOrder() {
			if err := s.publisher.PublishOrderCancelled(context.Background(), order, req.Reason, tenantID); err != nil {
				s.log.WithError(err).Warn("Failed to publish order cancelled event")
			}
		}
	}

	return approved, nil
}

// PreviewRefund runs the refund policy engine against the current order
// state without persisting anything. Admins use it to see the payable amount
// and its penalty breakdown before deciding a request.
func (s *CancellationService) PreviewRefund(orderID uuid.UUID, tenantID string, itemIDs models.UUIDList, overridePercentage *float64) (*refund.RefundResult, []refund.ItemRefund, error) {
	order, err := s.orderRepo.GetByID(orderID, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("order not found: %w", err)
	}

	settings, err := s.policySettings(tenantID)
	if err != nil {
		return nil, nil, err
	}

	ctx := refund.RequestContext{RequestedAt: time.Now()}

	if len(itemIDs) == 0 {
		result, err := s.refundEngine.ComputeRefund(order, ctx, overridePercentage, settings)
		return result, nil, err
	}
	return s.refundEngine.ComputeItemsRefund(order, itemIDs, ctx, overridePercentage, settings)
}

// RejectCancellation rejects a pending request, unfreezing the order
func (s *CancellationService) RejectCancellation(id uuid.UUID, tenantID, processedBy, comments string) (*models.CancellationRequest, error) {
	req, err := s.cancellationRepo.GetCancellationByID(id, tenantID)
	if err != nil {
		return nil, err
	}
	if !req.CanReject() {
		return nil, fmt.Errorf("cancellation request cannot be rejected (status: %s)", req.Status)
	}

	if err := s.cancellationRepo.RejectCancellation(id, tenantID, processedBy, comments); err != nil {
		return nil, err
	}

	rejected, err := s.cancellationRepo.GetCancellationByID(id, tenantID)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		order, orderErr := s.orderRepo.GetByID(req.OrderID, tenantID)
		if orderErr == nil {
			if err := s.publisher.PublishCancellationRejected(context.Background(), order, rejected, tenantID); err != nil {
				s.log.WithError(err).Warn("Failed to publish cancellation rejected event")
			}
		}
	}

	return rejected, nil
}

// annotateOrder writes the approval onto the order itself: a full-order
// approval moves the order to CANCELLED, a partial one extends the embedded
// cancelled-item annotation
func (s *CancellationService) annotateOrder(order *models.Order, req *models.CancellationRequest) error {
	if req.IsFullOrder() {
		return s.orderRepo.MarkCancelled(order.ID, req.Reason, nil, order.TenantID)
	}

	merged := order.CancelledItemIDs
	for _, id := range req.ItemIDs {
		if !merged.Contains(id) {
			merged = append(merged, id)
		}
	}
	return s.orderRepo.MarkCancelled(order.ID, req.Reason, merged, order.TenantID)
}

// restoreInventory puts the cancelled quantities back into stock. Failures
// are logged, not surfaced: the approval already happened and inventory can
// be reconciled out of band.
func (s *CancellationService) restoreInventory(order *models.Order, req *models.CancellationRequest) {
	if s.catalogClient == nil {
		return
	}

	var items []clients.InventoryItem
	for _, item := range order.Items {
		if item.ProductID == nil || !req.CoversItem(item.ID) {
			continue
		}
		items = append(items, clients.InventoryItem{
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
		})
	}
	if len(items) == 0 {
		return
	}

	reason := fmt.Sprintf("Cancellation approved for order %s", order.OrderNumber)
	if err := s.catalogClient.RestoreInventoryWithIdempotency(items, reason, order.ID.String(), order.TenantID); err != nil {
		s.log.WithError(err).WithField("orderNumber", order.OrderNumber).
			Warn("Failed to restore inventory after cancellation")
	}
}

// executeRefund pays the approved amount out via payment-service and records
// the execution details on the ledger entry. Failures are logged; the
// approved figure stays on the ledger for a manual retry.
func (s *CancellationService) executeRefund(req *models.CancellationRequest, order *models.Order, amount float64) {
	if s.paymentClient == nil || amount <= 0 {
		return
	}

	payment, err := s.paymentClient.FindRefundablePayment(req.OrderID, req.TenantID)
	if err != nil {
		s.log.WithError(err).WithField("orderNumber", order.OrderNumber).
			Warn("No refundable payment for cancellation")
		return
	}

	paymentID, err := uuid.Parse(payment.ID)
	if err != nil {
		s.log.WithError(err).Warn("Invalid payment ID on refund")
		return
	}

	refundReq := clients.CreateRefundRequest{
		Amount:         amount,
		Reason:         fmt.Sprintf("Cancellation refund for order %s", order.OrderNumber),
		Notes:          fmt.Sprintf("Cancellation request ID: %s", req.ID.String()),
		IdempotencyKey: fmt.Sprintf("cancel-refund-%s", req.ID.String()),
	}

	resp, err := s.paymentClient.CreateRefund(paymentID, refundReq, req.TenantID)
	if err != nil {
		s.log.WithError(err).WithField("orderNumber", order.OrderNumber).
			Error("Failed to execute cancellation refund")
		return
	}

	if err := s.cancellationRepo.UpdateRefundDetails(req.ID, req.TenantID, resp.ID, resp.Status, "ORIGINAL_PAYMENT"); err != nil {
		s.log.WithError(err).Warn("Failed to record refund execution details")
	}

	// Payment status tracks the money flow; order status tracks fulfilment
	disposition := models.PaymentStatusRefunded
	if amount < order.Total {
		disposition = models.PaymentStatusPartiallyRefunded
	}
	if err := s.orderRepo.UpdatePaymentStatus(order.ID, disposition, req.TenantID); err != nil {
		s.log.WithError(err).Warn("Failed to update payment status after refund")
	}

	if s.publisher != nil {
		if err := s.publisher.PublishOrderRefunded(context.Background(), order, amount, refundReq.Reason, req.TenantID); err != nil {
			s.log.WithError(err).Warn("Failed to publish refund event")
		}
	}
}

// policySettings loads the tenant's refund policy, falling back to defaults
func (s *CancellationService) policySettings(tenantID string) (*models.RefundPolicySettings, error) {
	if s.policyRepo == nil {
		return models.DefaultRefundPolicySettings(tenantID), nil
	}
	settings, err := s.policyRepo.GetByTenant(context.Background(), tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load refund policy: %w", err)
	}
	if settings == nil {
		settings = models.DefaultRefundPolicySettings(tenantID)
	}
	return settings, nil
}

// DTOs

type CreateCancellationRequest struct {
	TenantID string          `json:"tenantId"`
	OrderID  uuid.UUID       `json:"orderId"`
	ItemIDs  models.UUIDList `json:"items"`
	Reason   string          `json:"reason"`
}
