package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"aftersale-service/internal/clients"
	"aftersale-service/internal/models"
	"aftersale-service/internal/pricing"
	"aftersale-service/internal/refund"
)

// MockReturnStore is a mock implementation of ReturnStore
type MockReturnStore struct {
	mock.Mock
}

var _ ReturnStore = (*MockReturnStore)(nil)

func (m *MockReturnStore) CreateReturn(ret *models.ReturnRequest) error {
	args := m.Called(ret)
	if args.Error(0) == nil && ret.ID == uuid.Nil {
		ret.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockReturnStore) GetReturnByID(id uuid.UUID, tenantID string) (*models.ReturnRequest, error) {
	args := m.Called(id, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReturnRequest), args.Error(1)
}

func (m *MockReturnStore) GetReturnByRMANumber(rmaNumber string, tenantID string) (*models.ReturnRequest, error) {
	args := m.Called(rmaNumber, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReturnRequest), args.Error(1)
}

func (m *MockReturnStore) ListReturns(tenantID string, filters map[string]interface{}, page, pageSize int) ([]models.ReturnRequest, int64, error) {
	args := m.Called(tenantID, filters, page, pageSize)
	return args.Get(0).([]models.ReturnRequest), args.Get(1).(int64), args.Error(2)
}

func (m *MockReturnStore) GetReturnsByOrderID(orderID uuid.UUID) ([]models.ReturnRequest, error) {
	args := m.Called(orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ReturnRequest), args.Error(1)
}

func (m *MockReturnStore) GetReturnStats(tenantID string) (map[string]interface{}, error) {
	args := m.Called(tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func (m *MockReturnStore) UpdateReturn(ret *models.ReturnRequest) error {
	args := m.Called(ret)
	return args.Error(0)
}

func (m *MockReturnStore) UpdateReturnStatus(returnID uuid.UUID, from, to models.ReturnStatus, note string, userID *uuid.UUID, extra map[string]interface{}) error {
	args := m.Called(returnID, from, to, note, userID, extra)
	return args.Error(0)
}

func (m *MockReturnStore) AddTimelineEntry(timeline *models.ReturnTimeline) error {
	args := m.Called(timeline)
	return args.Error(0)
}

func newTestReturnService(returns *MockReturnStore, orderRepo *MockOrderRepository, payments *MockPaymentClient) *ReturnService {
	pricer := pricing.NewResolver(nil)
	engine := refund.NewEngine(pricer, nil)
	return NewReturnService(returns, orderRepo, nil, engine, pricer, payments, nil, nil)
}

func inspectedReturn(tenantID string, orderID uuid.UUID) *models.ReturnRequest {
	return &models.ReturnRequest{
		ID:            uuid.New(),
		TenantID:      tenantID,
		OrderID:       orderID,
		ItemID:        uuid.New(),
		RMANumber:     "RMA-1700000000-TEST",
		Status:        models.ReturnStatusInspected,
		ItemName:      "Jeans",
		Quantity:      1,
		OriginalPrice: 60,
		RefundAmount:  54,
	}
}

func TestApplyReturnTransition_RefundProcessedRecordsSummaryAndPaymentStatus(t *testing.T) {
	tenantID := "tenant-123"
	mockReturns := new(MockReturnStore)
	mockRepo := new(MockOrderRepository)
	mockPayments := new(MockPaymentClient)
	service := newTestReturnService(mockReturns, mockRepo, mockPayments)

	order := createTestOrder(tenantID)
	ret := inspectedReturn(tenantID, order.ID)

	var entry *models.RefundSummaryEntry
	mockReturns.On("GetReturnByID", ret.ID, tenantID).Return(ret, nil)
	mockPayments.On("FindRefundablePayment", order.ID, tenantID).
		Return(&clients.Payment{ID: uuid.New().String(), Status: "COMPLETED"}, nil)
	mockPayments.On("CreateRefund", mock.Anything, mock.Anything, tenantID).
		Return(&clients.RefundResponse{ID: "refund-9", Status: "COMPLETED", Amount: 54}, nil)
	mockRepo.On("AddRefundSummaryEntry", mock.AnythingOfType("*models.RefundSummaryEntry"), tenantID).
		Run(func(args mock.Arguments) {
			entry = args.Get(0).(*models.RefundSummaryEntry)
		}).Return(nil)
	mockRepo.On("GetByID", order.ID, tenantID).Return(order, nil)
	mockRepo.On("UpdatePaymentStatus", order.ID, models.PaymentStatusPartiallyRefunded, tenantID).Return(nil)
	mockReturns.On("UpdateReturnStatus", ret.ID, models.ReturnStatusInspected, models.ReturnStatusRefundProcessed, mock.Anything, (*uuid.UUID)(nil), mock.Anything).Return(nil)

	result, err := service.ApplyReturnTransition(ret.ID, tenantID, models.ReturnStatusRefundProcessed, "", nil)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	// The payout lands in the refund summary as a settled line
	assert.NotNil(t, entry)
	assert.Equal(t, order.ID, entry.OrderID)
	assert.Equal(t, ret.ItemID, entry.ItemID)
	assert.Equal(t, models.RefundSummaryCompleted, entry.Status)
	assert.Equal(t, 54.0, entry.Amount)
	assert.True(t, entry.IsSettled())
	mockReturns.AssertExpectations(t)
	mockRepo.AssertExpectations(t)
	mockPayments.AssertExpectations(t)
}

func TestApplyReturnTransition_RefundFailureLeavesOrderUntouched(t *testing.T) {
	tenantID := "tenant-123"
	mockReturns := new(MockReturnStore)
	mockRepo := new(MockOrderRepository)
	mockPayments := new(MockPaymentClient)
	service := newTestReturnService(mockReturns, mockRepo, mockPayments)

	order := createTestOrder(tenantID)
	ret := inspectedReturn(tenantID, order.ID)

	mockReturns.On("GetReturnByID", ret.ID, tenantID).Return(ret, nil)
	mockPayments.On("FindRefundablePayment", order.ID, tenantID).Return(nil, assert.AnError)

	result, err := service.ApplyReturnTransition(ret.ID, tenantID, models.ReturnStatusRefundProcessed, "", nil)

	assert.Error(t, err)
	assert.Nil(t, result)
	mockRepo.AssertNotCalled(t, "AddRefundSummaryEntry", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "UpdatePaymentStatus", mock.Anything, mock.Anything, mock.Anything)
	mockReturns.AssertNotCalled(t, "UpdateReturnStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateReturnDetails_EditsPendingReturn(t *testing.T) {
	tenantID := "tenant-123"
	mockReturns := new(MockReturnStore)
	service := newTestReturnService(mockReturns, new(MockOrderRepository), new(MockPaymentClient))

	ret := &models.ReturnRequest{
		ID:                uuid.New(),
		TenantID:          tenantID,
		OrderID:           uuid.New(),
		ItemID:            uuid.New(),
		RMANumber:         "RMA-1700000000-TEST",
		Status:            models.ReturnStatusRequested,
		ReturnReason:      models.ReturnReasonWrongSize,
		ReturnDescription: "too small",
	}

	mockReturns.On("GetReturnByID", ret.ID, tenantID).Return(ret, nil)
	mockReturns.On("UpdateReturn", ret).Return(nil)
	mockReturns.On("AddTimelineEntry", mock.AnythingOfType("*models.ReturnTimeline")).Return(nil)

	newReason := models.ReturnReasonDefective
	description := "seam torn on arrival"
	result, err := service.UpdateReturnDetails(ret.ID, tenantID, &UpdateReturnDetailsRequest{
		Reason:         &newReason,
		Description:    &description,
		EvidencePhotos: []string{"photos/seam.jpg"},
	}, nil)

	assert.NoError(t, err)
	assert.Equal(t, models.ReturnReasonDefective, result.ReturnReason)
	assert.Equal(t, "seam torn on arrival", result.ReturnDescription)
	assert.Len(t, result.EvidencePhotos, 1)
	mockReturns.AssertExpectations(t)
}

func TestUpdateReturnDetails_RejectsDecidedReturn(t *testing.T) {
	tenantID := "tenant-123"
	mockReturns := new(MockReturnStore)
	service := newTestReturnService(mockReturns, new(MockOrderRepository), new(MockPaymentClient))

	ret := &models.ReturnRequest{
		ID:       uuid.New(),
		TenantID: tenantID,
		Status:   models.ReturnStatusApproved,
	}

	mockReturns.On("GetReturnByID", ret.ID, tenantID).Return(ret, nil)

	description := "edited after decision"
	result, err := service.UpdateReturnDetails(ret.ID, tenantID, &UpdateReturnDetailsRequest{Description: &description}, nil)

	assert.Error(t, err)
	assert.Nil(t, result)
	mockReturns.AssertNotCalled(t, "UpdateReturn", mock.Anything)
	mockReturns.AssertNotCalled(t, "AddTimelineEntry", mock.Anything)
}
