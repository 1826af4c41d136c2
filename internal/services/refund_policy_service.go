package services

import (
	"context"
	"fmt"

	"aftersale-service/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RefundPolicyService defines the interface for refund policy settings operations
type RefundPolicyService interface {
	GetSettings(ctx context.Context, tenantID string) (*models.RefundPolicySettings, error)
	UpdateSettings(ctx context.Context, tenantID string, req *models.UpdateRefundPolicyRequest, userID string) (*models.RefundPolicySettings, error)
	DeleteSettings(ctx context.Context, id uuid.UUID) error
}

// RefundPolicyStore is the persistence surface the service needs
type RefundPolicyStore interface {
	GetByTenant(ctx context.Context, tenantID string) (*models.RefundPolicySettings, error)
	Upsert(ctx context.Context, settings *models.RefundPolicySettings) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type refundPolicyService struct {
	repo RefundPolicyStore
	log  *logrus.Logger
}

// NewRefundPolicyService creates a new refund policy service
func NewRefundPolicyService(repo RefundPolicyStore, logger *logrus.Logger) RefundPolicyService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &refundPolicyService{
		repo: repo,
		log:  logger,
	}
}

// GetSettings retrieves refund policy settings for a tenant.
// If no settings exist, returns default settings.
func (s *refundPolicyService) GetSettings(ctx context.Context, tenantID string) (*models.RefundPolicySettings, error) {
	settings, err := s.repo.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get refund policy settings: %w", err)
	}

	if settings == nil {
		s.log.WithField("tenant_id", tenantID).Debug("No refund policy settings found, returning defaults")
		return models.DefaultRefundPolicySettings(tenantID), nil
	}

	return settings, nil
}

// UpdateSettings updates existing refund policy settings, creating them from
// defaults when the tenant has none yet.
func (s *refundPolicyService) UpdateSettings(ctx context.Context, tenantID string, req *models.UpdateRefundPolicyRequest, userID string) (*models.RefundPolicySettings, error) {
	settings, err := s.repo.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get existing settings: %w", err)
	}

	if settings == nil {
		settings = models.DefaultRefundPolicySettings(tenantID)
	}

	settings.UpdatedBy = userID

	if req.BasePercentage != nil {
		settings.BasePercentage = *req.BasePercentage
	}
	if req.MinPercentage != nil {
		settings.MinPercentage = *req.MinPercentage
	}
	if req.MaxPercentage != nil {
		settings.MaxPercentage = *req.MaxPercentage
	}
	if req.ReturnRefundPercent != nil {
		settings.ReturnRefundPercent = *req.ReturnRefundPercent
	}
	if req.AlternateReturnRefundPercent != nil {
		settings.AlternateReturnRefundPercent = *req.AlternateReturnRefundPercent
	}
	if req.UseAlternateReturnRate != nil {
		settings.UseAlternateReturnRate = *req.UseAlternateReturnRate
	}
	if req.PolicyText != "" {
		settings.PolicyText = req.PolicyText
	}

	if settings.MinPercentage > settings.MaxPercentage {
		return nil, fmt.Errorf("min percentage %.2f exceeds max percentage %.2f", settings.MinPercentage, settings.MaxPercentage)
	}
	if settings.BasePercentage < settings.MinPercentage || settings.BasePercentage > settings.MaxPercentage {
		return nil, fmt.Errorf("base percentage %.2f outside [%.2f, %.2f]", settings.BasePercentage, settings.MinPercentage, settings.MaxPercentage)
	}

	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to update refund policy settings: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"id":        settings.ID.String(),
	}).Info("Updated refund policy settings")

	return settings, nil
}

// DeleteSettings soft-deletes refund policy settings
func (s *refundPolicyService) DeleteSettings(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete refund policy settings: %w", err)
	}
	return nil
}
