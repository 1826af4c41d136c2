package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"aftersale-service/internal/models"
)

type CancellationRepository struct {
	db *gorm.DB
}

func NewCancellationRepository(db *gorm.DB) *CancellationRepository {
	return &CancellationRepository{db: db}
}

// CreateCancellation creates a new cancellation request. The insert is
// guarded against a concurrent pending request for the same order: two
// overlapping pending requests would let two admins approve overlapping
// item sets and double-count the refund.
func (r *CancellationRepository) CreateCancellation(req *models.CancellationRequest) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var pending int64
		if err := tx.Model(&models.CancellationRequest{}).
			Where("order_id = ? AND tenant_id = ? AND status = ?",
				req.OrderID, req.TenantID, models.CancellationStatusPending).
			Count(&pending).Error; err != nil {
			return fmt.Errorf("failed to check pending cancellations: %w", err)
		}
		if pending > 0 {
			return fmt.Errorf("order %s already has a pending cancellation request", req.OrderID)
		}

		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("failed to create cancellation request: %w", err)
		}

		return nil
	})
}

// GetCancellationByID retrieves a cancellation request by ID
func (r *CancellationRepository) GetCancellationByID(id uuid.UUID, tenantID string) (*models.CancellationRequest, error) {
	var req models.CancellationRequest
	err := r.db.
		Where("tenant_id = ?", tenantID).
		First(&req, "id = ?", id).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("cancellation request not found")
		}
		return nil, err
	}

	return &req, nil
}

// ListCancellations retrieves cancellation requests with pagination and filters
func (r *CancellationRepository) ListCancellations(tenantID string, filters map[string]interface{}, page, pageSize int) ([]models.CancellationRequest, int64, error) {
	var requests []models.CancellationRequest
	var total int64

	query := r.db.Where("tenant_id = ?", tenantID)

	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if orderID, ok := filters["order_id"].(uuid.UUID); ok {
		query = query.Where("order_id = ?", orderID)
	}

	if err := query.Model(&models.CancellationRequest{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&requests).Error

	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// GetCancellationsByOrderID retrieves the full cancellation ledger for an order
func (r *CancellationRepository) GetCancellationsByOrderID(orderID uuid.UUID) ([]models.CancellationRequest, error) {
	var requests []models.CancellationRequest
	err := r.db.
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&requests).Error

	if err != nil {
		return nil, err
	}

	return requests, nil
}

// ApproveCancellation records the admin response on a pending request. The
// pending status is part of the WHERE clause so a concurrent decision on the
// same request loses the race instead of overwriting the first one.
func (r *CancellationRepository) ApproveCancellation(id uuid.UUID, tenantID, processedBy string, refundAmount, refundPercentage float64, comments string) error {
	return r.decideCancellation(id, tenantID, models.CancellationStatusApproved, map[string]interface{}{
		"processed_by":      processedBy,
		"processed_at":      time.Now(),
		"refund_amount":     refundAmount,
		"refund_percentage": refundPercentage,
		"admin_comments":    comments,
	})
}

// RejectCancellation records a rejection on a pending request
func (r *CancellationRepository) RejectCancellation(id uuid.UUID, tenantID, processedBy, comments string) error {
	return r.decideCancellation(id, tenantID, models.CancellationStatusRejected, map[string]interface{}{
		"processed_by":   processedBy,
		"processed_at":   time.Now(),
		"admin_comments": comments,
	})
}

func (r *CancellationRepository) decideCancellation(id uuid.UUID, tenantID string, status models.CancellationStatus, updates map[string]interface{}) error {
	updates["status"] = status

	result := r.db.Model(&models.CancellationRequest{}).
		Where("id = ? AND tenant_id = ? AND status = ?", id, tenantID, models.CancellationStatusPending).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update cancellation request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("cancellation request %s is not pending", id)
	}

	return nil
}

// UpdateRefundDetails records the refund execution details once money moves
func (r *CancellationRepository) UpdateRefundDetails(id uuid.UUID, tenantID, refundID, refundStatus, refundMethod string) error {
	updates := map[string]interface{}{
		"refund_id":     refundID,
		"refund_status": refundStatus,
		"refund_method": refundMethod,
		"refunded_at":   time.Now(),
	}

	result := r.db.Model(&models.CancellationRequest{}).
		Where("id = ? AND tenant_id = ? AND status = ?", id, tenantID, models.CancellationStatusApproved).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update refund details: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("cancellation request %s is not approved", id)
	}

	return nil
}

// HasPendingCancellation reports whether any pending request freezes the order
func (r *CancellationRepository) HasPendingCancellation(orderID uuid.UUID, tenantID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.CancellationRequest{}).
		Where("order_id = ? AND tenant_id = ? AND status = ?", orderID, tenantID, models.CancellationStatusPending).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check pending cancellations: %w", err)
	}

	return count > 0, nil
}
