package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"aftersale-service/internal/clients"
	"aftersale-service/internal/models"
	"aftersale-service/internal/pricing"
	"aftersale-service/internal/refund"
)

// MockCancellationStore is a mock implementation of CancellationStore
type MockCancellationStore struct {
	mock.Mock
}

var _ CancellationStore = (*MockCancellationStore)(nil)

func (m *MockCancellationStore) CreateCancellation(req *models.CancellationRequest) error {
	args := m.Called(req)
	if args.Error(0) == nil && req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockCancellationStore) GetCancellationByID(id uuid.UUID, tenantID string) (*models.CancellationRequest, error) {
	args := m.Called(id, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CancellationRequest), args.Error(1)
}

func (m *MockCancellationStore) ListCancellations(tenantID string, filters map[string]interface{}, page, pageSize int) ([]models.CancellationRequest, int64, error) {
	args := m.Called(tenantID, filters, page, pageSize)
	return args.Get(0).([]models.CancellationRequest), args.Get(1).(int64), args.Error(2)
}

func (m *MockCancellationStore) GetCancellationsByOrderID(orderID uuid.UUID) ([]models.CancellationRequest, error) {
	args := m.Called(orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CancellationRequest), args.Error(1)
}

func (m *MockCancellationStore) ApproveCancellation(id uuid.UUID, tenantID, processedBy string, refundAmount, refundPercentage float64, comments string) error {
	args := m.Called(id, tenantID, processedBy, refundAmount, refundPercentage, comments)
	return args.Error(0)
}

func (m *MockCancellationStore) RejectCancellation(id uuid.UUID, tenantID, processedBy, comments string) error {
	args := m.Called(id, tenantID, processedBy, comments)
	return args.Error(0)
}

func (m *MockCancellationStore) UpdateRefundDetails(id uuid.UUID, tenantID, refundID, refundStatus, refundMethod string) error {
	args := m.Called(id, tenantID, refundID, refundStatus, refundMethod)
	return args.Error(0)
}

// MockPaymentClient is a mock implementation of clients.PaymentClient
type MockPaymentClient struct {
	mock.Mock
}

var _ clients.PaymentClient = (*MockPaymentClient)(nil)

func (m *MockPaymentClient) FindRefundablePayment(orderID uuid.UUID, tenantID string) (*clients.Payment, error) {
	args := m.Called(orderID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.Payment), args.Error(1)
}

func (m *MockPaymentClient) CreateRefund(paymentID uuid.UUID, req clients.CreateRefundRequest, tenantID string) (*clients.RefundResponse, error) {
	args := m.Called(paymentID, req, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.RefundResponse), args.Error(1)
}

func newTestCancellationService(cancellations *MockCancellationStore, orderRepo *MockOrderRepository, payments *MockPaymentClient) *CancellationService {
	pricer := pricing.NewResolver(nil)
	engine := refund.NewEngine(pricer, nil)
	return NewCancellationService(cancellations, orderRepo, nil, engine, nil, payments, nil, nil)
}

func pendingCancellation(tenantID string, orderID uuid.UUID) *models.CancellationRequest {
	return &models.CancellationRequest{
		ID:          uuid.New(),
		TenantID:    tenantID,
		OrderID:     orderID,
		Status:      models.CancellationStatusPending,
		Reason:      "changed mind",
		RequestedAt: time.Now(),
	}
}

func TestApproveCancellation_PartialPayoutMarksPaymentPartiallyRefunded(t *testing.T) {
	tenantID := "tenant-123"
	mockCancellations := new(MockCancellationStore)
	mockRepo := new(MockOrderRepository)
	mockPayments := new(MockPaymentClient)
	service := newTestCancellationService(mockCancellations, mockRepo, mockPayments)

	order := createTestOrder(tenantID)
	req := pendingCancellation(tenantID, order.ID)

	// No penalties apply: base 75% of the 110 total pays out 82.50
	mockCancellations.On("GetCancellationByID", req.ID, tenantID).Return(req, nil)
	mockRepo.On("GetByID", order.ID, tenantID).Return(order, nil)
	mockCancellations.On("ApproveCancellation", req.ID, tenantID, "admin-1", 82.5, 75.0, "ok").Return(nil)
	mockRepo.On("MarkCancelled", order.ID, req.Reason, models.UUIDList(nil), tenantID).Return(nil)
	mockPayments.On("FindRefundablePayment", order.ID, tenantID).
		Return(&clients.Payment{ID: uuid.New().String(), Status: "COMPLETED"}, nil)
	mockPayments.On("CreateRefund", mock.Anything, mock.Anything, tenantID).
		Return(&clients.RefundResponse{ID: "refund-1", Status: "COMPLETED", Amount: 82.5}, nil)
	mockCancellations.On("UpdateRefundDetails", req.ID, tenantID, "refund-1", "COMPLETED", "ORIGINAL_PAYMENT").Return(nil)
	mockRepo.On("UpdatePaymentStatus", order.ID, models.PaymentStatusPartiallyRefunded, tenantID).Return(nil)

	result, err := service.ApproveCancellation(req.ID, tenantID, "admin-1", nil, "ok")

	assert.NoError(t, err)
	assert.NotNil(t, result)
	mockCancellations.AssertExpectations(t)
	mockRepo.AssertExpectations(t)
	mockPayments.AssertExpectations(t)
}

func TestApproveCancellation_FullPayoutMarksPaymentRefunded(t *testing.T) {
	tenantID := "tenant-123"
	mockCancellations := new(MockCancellationStore)
	mockRepo := new(MockOrderRepository)
	mockPayments := new(MockPaymentClient)
	service := newTestCancellationService(mockCancellations, mockRepo, mockPayments)

	order := createTestOrder(tenantID)
	req := pendingCancellation(tenantID, order.ID)

	override := 100.0

	mockCancellations.On("GetCancellationByID", req.ID, tenantID).Return(req, nil)
	mockRepo.On("GetByID", order.ID, tenantID).Return(order, nil)
	mockCancellations.On("ApproveCancellation", req.ID, tenantID, "admin-1", 110.0, 100.0, "goodwill").Return(nil)
	mockRepo.On("MarkCancelled", order.ID, req.Reason, models.UUIDList(nil), tenantID).Return(nil)
	mockPayments.On("FindRefundablePayment", order.ID, tenantID).
		Return(&clients.Payment{ID: uuid.New().String(), Status: "COMPLETED"}, nil)
	mockPayments.On("CreateRefund", mock.Anything, mock.Anything, tenantID).
		Return(&clients.RefundResponse{ID: "refund-2", Status: "COMPLETED", Amount: 110}, nil)
	mockCancellations.On("UpdateRefundDetails", req.ID, tenantID, "refund-2", "COMPLETED", "ORIGINAL_PAYMENT").Return(nil)
	mockRepo.On("UpdatePaymentStatus", order.ID, models.PaymentStatusRefunded, tenantID).Return(nil)

	result, err := service.ApproveCancellation(req.ID, tenantID, "admin-1", &override, "goodwill")

	assert.NoError(t, err)
	assert.NotNil(t, result)
	mockRepo.AssertExpectations(t)
	mockPayments.AssertExpectations(t)
}

func TestApproveCancellation_NoRefundablePaymentLeavesPaymentStatusAlone(t *testing.T) {
	tenantID := "tenant-123"
	mockCancellations := new(MockCancellationStore)
	mockRepo := new(MockOrderRepository)
	mockPayments := new(MockPaymentClient)
	service := newTestCancellationService(mockCancellations, mockRepo, mockPayments)

	order := createTestOrder(tenantID)
	req := pendingCancellation(tenantID, order.ID)

	mockCancellations.On("GetCancellationByID", req.ID, tenantID).Return(req, nil)
	mockRepo.On("GetByID", order.ID, tenantID).Return(order, nil)
	mockCancellations.On("ApproveCancellation", req.ID, tenantID, "admin-1", 82.5, 75.0, "").Return(nil)
	mockRepo.On("MarkCancelled", order.ID, req.Reason, models.UUIDList(nil), tenantID).Return(nil)
	mockPayments.On("FindRefundablePayment", order.ID, tenantID).Return(nil, assert.AnError)

	result, err := service.ApproveCancellation(req.ID, tenantID, "admin-1", nil, "")

	// The approval stands; the payout is retried out of band
	assert.NoError(t, err)
	assert.NotNil(t, result)
	mockPayments.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "UpdatePaymentStatus", mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertExpectations(t)
}
