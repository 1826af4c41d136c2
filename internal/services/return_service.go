package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"aftersale-service/internal/clients"
	"aftersale-service/internal/events"
	"aftersale-service/internal/models"
	"aftersale-service/internal/pricing"
	"aftersale-service/internal/refund"
	"aftersale-service/internal/repository"
)

// ReturnStore is the slice of the return repository the service works
// through
type ReturnStore interface {
	CreateReturn(ret *models.ReturnRequest) error
	GetReturnByID(id uuid.UUID, tenantID string) (*models.ReturnRequest, error)
	GetReturnByRMANumber(rmaNumber string, tenantID string) (*models.ReturnRequest, error)
	ListReturns(tenantID string, filters map[string]interface{}, page, pageSize int) ([]models.ReturnRequest, int64, error)
	GetReturnsByOrderID(orderID uuid.UUID) ([]models.ReturnRequest, error)
	GetReturnStats(tenantID string) (map[string]interface{}, error)
	UpdateReturn(ret *models.ReturnRequest) error
	UpdateReturnStatus(returnID uuid.UUID, from, to models.ReturnStatus, note string, userID *uuid.UUID, extra map[string]interface{}) error
	AddTimelineEntry(timeline *models.ReturnTimeline) error
}

type ReturnService struct {
	returnRepo    ReturnStore
	orderRepo     repository.OrderRepository
	policyRepo    RefundPolicyStore
	refundEngine  *refund.Engine
	pricer        *pricing.Resolver
	paymentClient clients.PaymentClient
	publisher     *events.Publisher
	log           *logrus.Entry
}

func NewReturnService(
	returnRepo ReturnStore,
	orderRepo repository.OrderRepository,
	policyRepo RefundPolicyStore,
	refundEngine *refund.Engine,
	pricer *pricing.Resolver,
	paymentClient clients.PaymentClient,
	publisher *events.Publisher,
	logger *logrus.Logger,
) *ReturnService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ReturnService{
		returnRepo:    returnRepo,
		orderRepo:     orderRepo,
		policyRepo:    policyRepo,
		refundEngine:  refundEngine,
		pricer:        pricer,
		paymentClient: paymentClient,
		publisher:     publisher,
		log:           logger.WithField("component", "return-service"),
	}
}

// CreateReturnRequest opens a return for a single order item. The order must
// be delivered, the item must still be active, and no open return may exist
// for it; a rejected or withdrawn return does not block a fresh request.
func (s *ReturnService) CreateReturnRequest(req *CreateReturnRequest) (*models.ReturnRequest, error) {
	order, err := s.orderRepo.GetByID(req.OrderID, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("order not found: %w", err)
	}

	if order.Status != models.OrderStatusDelivered {
		return nil, fmt.Errorf("order cannot be returned (status: %s)", order.Status)
	}

	item := order.ItemByID(req.ItemID)
	if item == nil {
		return nil, fmt.Errorf("order item %s not found", req.ItemID)
	}

	if req.Quantity <= 0 || req.Quantity > item.Quantity {
		return nil, fmt.Errorf("invalid quantity for item %s", item.Name)
	}

	existing, err := s.returnRepo.GetReturnsByOrderID(req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load return ledger: %w", err)
	}
	if models.ItemReturned(req.ItemID, existing) {
		return nil, fmt.Errorf("item %s has already been returned", item.Name)
	}
	if models.ItemHasOpenReturn(req.ItemID, existing) {
		return nil, fmt.Errorf("item %s already has an open return request", item.Name)
	}

	amount := s.pricer.ResolveLineAmount(*item, nil)

	ret := &models.ReturnRequest{
		TenantID:          req.TenantID,
		OrderID:           req.OrderID,
		ItemID:            req.ItemID,
		Status:            models.ReturnStatusRequested,
		ItemName:          item.Name,
		ItemSize:          item.Size,
		Quantity:          req.Quantity,
		OriginalPrice:     amount.UnitPrice,
		ReturnReason:      req.Reason,
		ReturnDescription: req.Description,
		EvidencePhotos:    pq.StringArray(req.EvidencePhotos),
	}

	if err := s.returnRepo.CreateReturn(ret); err != nil {
		return nil, fmt.Errorf("failed to create return: %w", err)
	}

	return ret, nil
}

// UpdateReturnDetails edits the customer-supplied fields on a return while
// it is still awaiting review. Decided requests are immutable; the customer
// files a new request instead.
func (s *ReturnService) UpdateReturnDetails(returnID uuid.UUID, tenantID string, req *UpdateReturnDetailsRequest, userID *uuid.UUID) (*models.ReturnRequest, error) {
	ret, err := s.returnRepo.GetReturnByID(returnID, tenantID)
	if err != nil {
		return nil, err
	}

	if ret.Status != models.ReturnStatusRequested {
		return nil, fmt.Errorf("return details cannot be edited (status: %s)", ret.Status)
	}

	if req.Reason != nil {
		ret.ReturnReason = *req.Reason
	}
	if req.Description != nil {
		ret.ReturnDescription = *req.Description
	}
	if req.EvidencePhotos != nil {
		ret.EvidencePhotos = pq.StringArray(req.EvidencePhotos)
	}

	if err := s.returnRepo.UpdateReturn(ret); err != nil {
		return nil, fmt.Errorf("failed to update return: %w", err)
	}

	timeline := &models.ReturnTimeline{
		ReturnID:  ret.ID,
		Status:    ret.Status,
		Note:      "Return details updated",
		CreatedBy: userID,
	}
	if err := s.returnRepo.AddTimelineEntry(timeline); err != nil {
		s.log.WithError(err).WithField("rmaNumber", ret.RMANumber).
			Warn("Failed to record details update on timeline")
	}

	return ret, nil
}

// GetReturn retrieves a return by ID
func (s *ReturnService) GetReturn(id uuid.UUID, tenantID string) (*models.ReturnRequest, error) {
	return s.returnRepo.GetReturnByID(id, tenantID)
}

// GetReturnByRMA retrieves a return by RMA number
func (s *ReturnService) GetReturnByRMA(rmaNumber string, tenantID string) (*models.ReturnRequest, error) {
	return s.returnRepo.GetReturnByRMANumber(rmaNumber, tenantID)
}

// ListReturns lists returns with filters
func (s *ReturnService) ListReturns(tenantID string, filters map[string]interface{}, page, pageSize int) ([]models.ReturnRequest, int64, error) {
	return s.returnRepo.ListReturns(tenantID, filters, page, pageSize)
}

// GetReturnsByOrder retrieves the return ledger for an order
func (s *ReturnService) GetReturnsByOrder(orderID uuid.UUID) ([]models.ReturnRequest, error) {
	return s.returnRepo.GetReturnsByOrderID(orderID)
}

// GetReturnStats retrieves return statistics
func (s *ReturnService) GetReturnStats(tenantID string) (map[string]interface{}, error) {
	return s.returnRepo.GetReturnStats(tenantID)
}

// ApplyReturnTransition validates the requested transition against the
// return state machine and applies it with a timeline entry. Approval locks
// the refund amount from the policy's flat return rate; processing the
// refund records the amount actually paid out.
func (s *ReturnService) ApplyReturnTransition(returnID uuid.UUID, tenantID string, target models.ReturnStatus, note string, userID *uuid.UUID) (*models.ReturnRequest, error) {
	ret, err := s.returnRepo.GetReturnByID(returnID, tenantID)
	if err != nil {
		return nil, err
	}

	if err := models.ValidateReturnTransition(ret.Status, target); err != nil {
		return nil, err
	}

	previous := ret.Status
	extra := map[string]interface{}{}

	switch target {
	case models.ReturnStatusApproved:
		settings, err := s.policySettings(tenantID)
		if err != nil {
			return nil, err
		}
		refundAmount, _ := s.refundEngine.ReturnLineRefund(ret.LineTotal(), settings)
		extra["refund_amount"] = refundAmount
		extra["processed_at"] = time.Now()
		if userID != nil {
			extra["processed_by"] = userID.String()
		}
		if note == "" {
			note = "Return request approved"
		}

	case models.ReturnStatusRejected:
		extra["processed_at"] = time.Now()
		if userID != nil {
			extra["processed_by"] = userID.String()
		}
		if note == "" {
			note = "Return request rejected"
		}

	case models.ReturnStatusRefundProcessed:
		if err := s.executeRefund(ret); err != nil {
			return nil, fmt.Errorf("failed to process refund: %w", err)
		}
		s.recordRefundOnOrder(ret)
		extra["actual_refund_amount"] = ret.RefundAmount
		extra["refunded_at"] = time.Now()
		extra["refund_status"] = "PROCESSED"
		if note == "" {
			note = fmt.Sprintf("Refund of %.2f processed", ret.RefundAmount)
		}

	default:
		if note == "" {
			note = fmt.Sprintf("Return moved to %s", target.DisplayName())
		}
	}

	if err := s.returnRepo.UpdateReturnStatus(returnID, previous, target, note, userID, extra); err != nil {
		return nil, err
	}

	updated, err := s.returnRepo.GetReturnByID(returnID, tenantID)
	if err != nil {
		return nil, err
	}

	s.publishReturnStatusChanged(updated, previous, tenantID)

	return updated, nil
}

// CancelReturn withdraws a return on behalf of the customer. The state
// machine only permits this before pickup.
func (s *ReturnService) CancelReturn(returnID uuid.UUID, tenantID string, userID *uuid.UUID, reason string) (*models.ReturnRequest, error) {
	note := "Return cancelled"
	if reason != "" {
		note = fmt.Sprintf("Return cancelled: %s", reason)
	}
	return s.ApplyReturnTransition(returnID, tenantID, models.ReturnStatusCancelled, note, userID)
}

// policySettings loads the tenant's refund policy, falling back to defaults
func (s *ReturnService) policySettings(tenantID string) (*models.RefundPolicySettings, error) {
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

// executeRefund pays out the locked refund amount via payment-service
func (s *ReturnService) executeRefund(ret *models.ReturnRequest) error {
	if ret.RefundAmount <= 0 {
		return fmt.Errorf("refund amount must be greater than 0")
	}
	if s.paymentClient == nil {
		return fmt.Errorf("payment client not configured")
	}

	payment, err := s.paymentClient.FindRefundablePayment(ret.OrderID, ret.TenantID)
	if err != nil {
		return fmt.Errorf("no refundable payment: %w", err)
	}

	paymentID, err := uuid.Parse(payment.ID)
	if err != nil {
		return fmt.Errorf("invalid payment ID: %w", err)
	}

	refundReq := clients.CreateRefundRequest{
		Amount:         ret.RefundAmount,
		Reason:         fmt.Sprintf("Return refund for RMA %s", ret.RMANumber),
		Notes:          fmt.Sprintf("Return ID: %s, Reason: %s", ret.ID.String(), ret.ReturnReason),
		IdempotencyKey: fmt.Sprintf("return-refund-%s", ret.ID.String()),
	}

	resp, err := s.paymentClient.CreateRefund(paymentID, refundReq, ret.TenantID)
	if err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}

	ret.RefundID = resp.ID
	s.log.WithFields(logrus.Fields{
		"rmaNumber": ret.RMANumber,
		"refundId":  resp.ID,
		"amount":    resp.Amount,
		"status":    resp.Status,
	}).Info("Return refund processed")

	return nil
}

// recordRefundOnOrder writes the paid-out return refund onto the order: a
// settled refund-summary line so the reconciliation view counts the item and
// the recorded figure, and the payment-status disposition. Return refunds
// live in the summary rather than the cancellation ledger, so each payout is
// recorded exactly once.
func (s *ReturnService) recordRefundOnOrder(ret *models.ReturnRequest) {
	entry := &models.RefundSummaryEntry{
		OrderID: ret.OrderID,
		ItemID:  ret.ItemID,
		Status:  models.RefundSummaryCompleted,
		Amount:  ret.RefundAmount,
	}
	if err := s.orderRepo.AddRefundSummaryEntry(entry, ret.TenantID); err != nil {
		s.log.WithError(err).WithField("rmaNumber", ret.RMANumber).
			Warn("Failed to record refund summary entry")
	}

	order, err := s.orderRepo.GetByID(ret.OrderID, ret.TenantID)
	if err != nil {
		s.log.WithError(err).Warn("Failed to load order for payment status update")
		return
	}
	disposition := models.PaymentStatusRefunded
	if ret.RefundAmount < order.Total {
		disposition = models.PaymentStatusPartiallyRefunded
	}
	if err := s.orderRepo.UpdatePaymentStatus(order.ID, disposition, ret.TenantID); err != nil {
		s.log.WithError(err).Warn("Failed to update payment status after return refund")
	}
}

func (s *ReturnService) publishReturnStatusChanged(ret *models.ReturnRequest, previous models.ReturnStatus, tenantID string) {
	if s.publisher == nil {
		return
	}
	order, err := s.orderRepo.GetByID(ret.OrderID, tenantID)
	if err != nil {
		s.log.WithError(err).Warn("Failed to load order for return event")
		return
	}
	if err := s.publisher.PublishReturnStatusChanged(context.Background(), order, ret, previous, tenantID); err != nil {
		s.log.WithError(err).Warn("Failed to publish return status event")
	}
}

// DTOs

type CreateReturnRequest struct {
	TenantID       string              `json:"tenantId"`
	OrderID        uuid.UUID           `json:"orderId"`
	ItemID         uuid.UUID           `json:"itemId"`
	Quantity       int                 `json:"quantity"`
	Reason         models.ReturnReason `json:"reason"`
	Description    string              `json:"description"`
	EvidencePhotos []string            `json:"evidencePhotos,omitempty"`
}

// UpdateReturnDetailsRequest carries partial edits to a pending return. Nil
// fields are left untouched.
type UpdateReturnDetailsRequest struct {
	Reason         *models.ReturnReason `json:"reason,omitempty"`
	Description    *string              `json:"description,omitempty"`
	EvidencePhotos []string             `json:"evidencePhotos,omitempty"`
}
