package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"aftersale-service/internal/models"
)

type ReturnRepository struct {
	db *gorm.DB
}

func NewReturnRepository(db *gorm.DB) *ReturnRepository {
	return &ReturnRepository{db: db}
}

// CreateReturn creates a new return request with its initial timeline entry
func (r *ReturnRepository) CreateReturn(ret *models.ReturnRequest) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ret).Error; err != nil {
			return fmt.Errorf("failed to create return: %w", err)
		}

		timeline := ret.CreateTimelineEntry(
			models.ReturnStatusRequested,
			"Return request submitted",
			nil,
		)
		if err := tx.Create(&timeline).Error; err != nil {
			return fmt.Errorf("failed to create timeline entry: %w", err)
		}

		return nil
	})
}

// GetReturnByID retrieves a return by ID with its timeline
func (r *ReturnRepository) GetReturnByID(id uuid.UUID, tenantID string) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	err := r.db.
		Preload("Timeline").
		Where("tenant_id = ?", tenantID).
		First(&ret, "id = ?", id).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("return not found")
		}
		return nil, err
	}

	return &ret, nil
}

// GetReturnByRMANumber retrieves a return by RMA number
func (r *ReturnRepository) GetReturnByRMANumber(rmaNumber string, tenantID string) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	err := r.db.
		Preload("Timeline").
		Where("tenant_id = ?", tenantID).
		First(&ret, "rma_number = ?", rmaNumber).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("return not found")
		}
		return nil, err
	}

	return &ret, nil
}

// ListReturns retrieves returns with pagination and filters
func (r *ReturnRepository) ListReturns(tenantID string, filters map[string]interface{}, page, pageSize int) ([]models.ReturnRequest, int64, error) {
	var returns []models.ReturnRequest
	var total int64

	query := r.db.Where("tenant_id = ?", tenantID)

	// Apply filters
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if orderID, ok := filters["order_id"].(uuid.UUID); ok {
		query = query.Where("order_id = ?", orderID)
	}
	if reason, ok := filters["reason"].(string); ok && reason != "" {
		query = query.Where("return_reason = ?", reason)
	}
	if search, ok := filters["search"].(string); ok && search != "" {
		query = query.Where("rma_number ILIKE ? OR item_name ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	// Count total
	if err := query.Model(&models.ReturnRequest{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Get paginated results
	offset := (page - 1) * pageSize
	err := query.
		Preload("Timeline").
		Order("created_at DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&returns).Error

	if err != nil {
		return nil, 0, err
	}

	return returns, total, nil
}

// UpdateReturn updates a return
func (r *ReturnRepository) UpdateReturn(ret *models.ReturnRequest) error {
	return r.db.Save(ret).Error
}

// UpdateReturnStatus moves a return to a new status and appends the timeline
// entry in the same transaction. The current status is part of the WHERE
// clause so a concurrent transition of the same request loses the race
// instead of double-applying.
func (r *ReturnRepository) UpdateReturnStatus(returnID uuid.UUID, from, to models.ReturnStatus, note string, userID *uuid.UUID, extra map[string]interface{}) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status": to,
		}
		for k, v := range extra {
			updates[k] = v
		}

		result := tx.Model(&models.ReturnRequest{}).
			Where("id = ? AND status = ?", returnID, from).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update return status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("return %s is no longer in status %s", returnID, from)
		}

		timeline := models.ReturnTimeline{
			ReturnID:  returnID,
			Status:    to,
			Note:      note,
			CreatedBy: userID,
			CreatedAt: time.Now(),
		}
		if err := tx.Create(&timeline).Error; err != nil {
			return fmt.Errorf("failed to create timeline entry: %w", err)
		}

		return nil
	})
}

// AddTimelineEntry adds a timeline entry to a return
func (r *ReturnRepository) AddTimelineEntry(timeline *models.ReturnTimeline) error {
	return r.db.Create(timeline).Error
}

// GetReturnsByOrderID retrieves the full return ledger for an order
func (r *ReturnRepository) GetReturnsByOrderID(orderID uuid.UUID) ([]models.ReturnRequest, error) {
	var returns []models.ReturnRequest
	err := r.db.
		Preload("Timeline").
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&returns).Error

	if err != nil {
		return nil, err
	}

	return returns, nil
}

// GetReturnStats retrieves return statistics for a tenant
func (r *ReturnRepository) GetReturnStats(tenantID string) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	// Total returns
	var totalReturns int64
	r.db.Model(&models.ReturnRequest{}).Where("tenant_id = ?", tenantID).Count(&totalReturns)
	stats["total_returns"] = totalReturns

	// Returns by status
	var statusCounts []struct {
		Status string
		Count  int64
	}
	r.db.Model(&models.ReturnRequest{}).
		Select("status, count(*) as count").
		Where("tenant_id = ?", tenantID).
		Group("status").
		Scan(&statusCounts)
	stats["by_status"] = statusCounts

	// Total refund amount actually paid out
	var totalRefund float64
	r.db.Model(&models.ReturnRequest{}).
		Where("tenant_id = ? AND status IN ?", tenantID, []models.ReturnStatus{
			models.ReturnStatusRefundProcessed,
			models.ReturnStatusCompleted,
		}).
		Select("COALESCE(SUM(actual_refund_amount), 0)").
		Scan(&totalRefund)
	stats["total_refunded"] = totalRefund

	// Average processing time (approval to refund)
	var avgProcessingDays float64
	r.db.Raw(`
		SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (refunded_at - processed_at)) / 86400), 0)
		FROM return_requests
		WHERE tenant_id = ? AND status = ? AND processed_at IS NOT NULL AND refunded_at IS NOT NULL
	`, tenantID, models.ReturnStatusCompleted).Scan(&avgProcessingDays)
	stats["avg_processing_days"] = avgProcessingDays

	return stats, nil
}
