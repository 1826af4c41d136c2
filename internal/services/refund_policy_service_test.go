package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"aftersale-service/internal/models"
)

// MockRefundPolicyStore is a mock implementation of RefundPolicyStore
type MockRefundPolicyStore struct {
	mock.Mock
}

var _ RefundPolicyStore = (*MockRefundPolicyStore)(nil)

func (m *MockRefundPolicyStore) GetByTenant(ctx context.Context, tenantID string) (*models.RefundPolicySettings, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefundPolicySettings), args.Error(1)
}

func (m *MockRefundPolicyStore) Upsert(ctx context.Context, settings *models.RefundPolicySettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

func (m *MockRefundPolicyStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestGetSettings_ReturnsDefaultsWhenNoneStored(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockStore := new(MockRefundPolicyStore)
	service := NewRefundPolicyService(mockStore, nil)

	mockStore.On("GetByTenant", ctx, tenantID).Return(nil, nil)

	settings, err := service.GetSettings(ctx, tenantID)

	assert.NoError(t, err)
	assert.NotNil(t, settings)
	assert.Equal(t, tenantID, settings.TenantID)
	assert.Equal(t, 75.0, settings.BasePercentage)
	assert.Equal(t, 90.0, settings.ReturnRefundPercent)
	mockStore.AssertExpectations(t)
}

func TestGetSettings_ReturnsStoredSettings(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockStore := new(MockRefundPolicyStore)
	service := NewRefundPolicyService(mockStore, nil)

	stored := models.DefaultRefundPolicySettings(tenantID)
	stored.BasePercentage = 50

	mockStore.On("GetByTenant", ctx, tenantID).Return(stored, nil)

	settings, err := service.GetSettings(ctx, tenantID)

	assert.NoError(t, err)
	assert.Equal(t, 50.0, settings.BasePercentage)
	mockStore.AssertExpectations(t)
}

func TestUpdateSettings_AppliesPartialUpdate(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	store := new(MockRefundPolicyStore)
	service := NewRefundPolicyService(store, nil)

	existing := models.DefaultRefundPolicySettings(tenantID)

	store.On("GetByTenant", ctx, tenantID).Return(existing, nil)
	store.On("Upsert", ctx, mock.AnythingOfType("*models.RefundPolicySettings")).Return(nil)

	base := 60.0
	req := &models.UpdateRefundPolicyRequest{
		BasePercentage: &base,
		PolicyText:     "Refunds within 30 days.",
	}

	settings, err := service.UpdateSettings(ctx, tenantID, req, "admin-1")

	assert.NoError(t, err)
	assert.Equal(t, 60.0, settings.BasePercentage)
	assert.Equal(t, "Refunds within 30 days.", settings.PolicyText)
	assert.Equal(t, "admin-1", settings.UpdatedBy)
	// Untouched fields keep their existing values
	assert.Equal(t, 25.0, settings.MinPercentage)
	store.AssertExpectations(t)
}

func TestUpdateSettings_RejectsInvertedBounds(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	store := new(MockRefundPolicyStore)
	service := NewRefundPolicyService(store, nil)

	existing := models.DefaultRefundPolicySettings(tenantID)
	store.On("GetByTenant", ctx, tenantID).Return(existing, nil)

	minPct := 80.0
	maxPct := 40.0
	req := &models.UpdateRefundPolicyRequest{
		MinPercentage: &minPct,
		MaxPercentage: &maxPct,
	}

	settings, err := service.UpdateSettings(ctx, tenantID, req, "admin-1")

	assert.Error(t, err)
	assert.Nil(t, settings)
	store.AssertNotCalled(t, "Upsert")
}

func TestUpdateSettings_RejectsBaseOutsideBounds(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	store := new(MockRefundPolicyStore)
	service := NewRefundPolicyService(store, nil)

	existing := models.DefaultRefundPolicySettings(tenantID)
	store.On("GetByTenant", ctx, tenantID).Return(existing, nil)

	base := 10.0 // Below the default minimum of 25
	req := &models.UpdateRefundPolicyRequest{
		BasePercentage: &base,
	}

	settings, err := service.UpdateSettings(ctx, tenantID, req, "admin-1")

	assert.Error(t, err)
	assert.Nil(t, settings)
	store.AssertNotCalled(t, "Upsert")
}

func TestUpdateSettings_CreatesFromDefaultsWhenNoneStored(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	store := new(MockRefundPolicyStore)
	service := NewRefundPolicyService(store, nil)

	store.On("GetByTenant", ctx, tenantID).Return(nil, nil)
	store.On("Upsert", ctx, mock.AnythingOfType("*models.RefundPolicySettings")).Return(nil)

	useAlternate := true
	req := &models.UpdateRefundPolicyRequest{
		UseAlternateReturnRate: &useAlternate,
	}

	settings, err := service.UpdateSettings(ctx, tenantID, req, "admin-1")

	assert.NoError(t, err)
	assert.True(t, settings.UseAlternateReturnRate)
	assert.Equal(t, 65.0, settings.EffectiveReturnRate())
	store.AssertExpectations(t)
}
