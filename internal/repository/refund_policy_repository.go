package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"aftersale-service/internal/models"
)

// RefundPolicyRepository handles database operations for refund policy settings
type RefundPolicyRepository struct {
	db *gorm.DB
}

// NewRefundPolicyRepository creates a new repository instance
func NewRefundPolicyRepository(db *gorm.DB) *RefundPolicyRepository {
	return &RefundPolicyRepository{db: db}
}

// GetByTenant retrieves refund policy settings for a tenant. Returns nil
// without error when the tenant has none configured; callers fall back to
// the policy defaults.
func (r *RefundPolicyRepository) GetByTenant(ctx context.Context, tenantID string) (*models.RefundPolicySettings, error) {
	var settings models.RefundPolicySettings
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&settings).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refund policy settings: %w", err)
	}

	return &settings, nil
}

// Create creates new refund policy settings
func (r *RefundPolicyRepository) Create(ctx context.Context, settings *models.RefundPolicySettings) error {
	if settings.ID == uuid.Nil {
		settings.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(settings).Error
}

// Upsert creates or updates refund policy settings for a tenant
func (r *RefundPolicyRepository) Upsert(ctx context.Context, settings *models.RefundPolicySettings) error {
	var existing models.RefundPolicySettings
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", settings.TenantID).
		First(&existing).Error

	if err == nil {
		settings.ID = existing.ID
		settings.CreatedAt = existing.CreatedAt
		return r.db.WithContext(ctx).Save(settings).Error
	}

	if err == gorm.ErrRecordNotFound {
		if settings.ID == uuid.Nil {
			settings.ID = uuid.New()
		}
		return r.db.WithContext(ctx).Create(settings).Error
	}

	return fmt.Errorf("failed to upsert refund policy settings: %w", err)
}

// Delete soft-deletes refund policy settings
func (r *RefundPolicyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.RefundPolicySettings{}, "id = ?", id).Error
}
