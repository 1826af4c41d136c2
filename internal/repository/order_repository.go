package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"aftersale-service/internal/models"
)

// Cache TTL constants for orders
const (
	OrderCacheTTL       = 10 * time.Minute // Orders - frequently accessed
	OrderNumberCacheTTL = 10 * time.Minute // Order lookups by number
	OrderListCacheTTL   = 2 * time.Minute  // Order lists - frequent changes
)

// OrderRepository defines the interface for order data operations
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uuid.UUID, tenantID string) (*models.Order, error)
	GetByOrderNumber(orderNumber string, tenantID string) (*models.Order, error)
	List(filters OrderFilters) ([]models.Order, int64, error)
	UpdateStatus(id uuid.UUID, status models.OrderStatus, notes string, tenantID string, extra map[string]interface{}) error
	UpdatePaymentStatus(id uuid.UUID, status models.PaymentStatus, tenantID string) error
	MarkCancelled(id uuid.UUID, reason string, itemIDs models.UUIDList, tenantID string) error
	AddRefundSummaryEntry(entry *models.RefundSummaryEntry, tenantID string) error
	AddTimelineEvent(orderID uuid.UUID, event, description string, createdBy *uuid.UUID, tenantID string) error
	GetTimelineByOrderID(orderID uuid.UUID) ([]models.OrderTimeline, error)
	// Health check methods for Redis
	RedisHealth(ctx context.Context) error
	CacheStats() *cache.CacheStats
}

// OrderFilters represents filters for querying orders
type OrderFilters struct {
	TenantID   string
	CustomerID *uuid.UUID
	Status     *models.OrderStatus
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	Limit      int
}

type orderRepository struct {
	db    *gorm.DB
	redis *redis.Client
	cache *cache.CacheLayer
}

// NewOrderRepository creates a new order repository with optional Redis caching
func NewOrderRepository(db *gorm.DB, redisClient *redis.Client) OrderRepository {
	repo := &orderRepository{
		db:    db,
		redis: redisClient,
	}

	// Initialize CacheLayer with the existing Redis client
	if redisClient != nil {
		cacheConfig := cache.CacheConfig{
			L1Enabled:  true,
			L1MaxItems: 5000,
			L1TTL:      30 * time.Second,
			DefaultTTL: OrderCacheTTL,
			KeyPrefix:  "aftersale:orders:",
		}
		repo.cache = cache.NewCacheLayerFromClient(redisClient, cacheConfig)
	}

	return repo
}

// generateOrderCacheKey creates a cache key for order lookups by ID
func generateOrderCacheKey(tenantID string, orderID uuid.UUID) string {
	return fmt.Sprintf("order:%s:%s", tenantID, orderID.String())
}

// generateOrderNumberCacheKey creates a cache key for order lookups by number
func generateOrderNumberCacheKey(tenantID string, orderNumber string) string {
	return fmt.Sprintf("order:number:%s:%s", tenantID, orderNumber)
}

// invalidateOrderCaches invalidates all caches related to an order
func (r *orderRepository) invalidateOrderCaches(ctx context.Context, tenantID string, orderID uuid.UUID, orderNumber string) {
	if r.cache == nil {
		return
	}

	orderKey := generateOrderCacheKey(tenantID, orderID)
	_ = r.cache.Delete(ctx, orderKey)

	if orderNumber != "" {
		numberKey := generateOrderNumberCacheKey(tenantID, orderNumber)
		_ = r.cache.Delete(ctx, numberKey)
	}

	_ = r.cache.DeletePattern(ctx, fmt.Sprintf("order:list:%s:*", tenantID))
}

// RedisHealth returns the health status of Redis connection
func (r *orderRepository) RedisHealth(ctx context.Context) error {
	if r.redis == nil {
		return fmt.Errorf("redis not configured")
	}
	return r.redis.Ping(ctx).Err()
}

// CacheStats returns cache statistics
func (r *orderRepository) CacheStats() *cache.CacheStats {
	if r.cache == nil {
		return nil
	}
	stats := r.cache.Stats()
	return &stats
}

// Create creates a new order with all related entities
func (r *orderRepository) Create(order *models.Order) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		timeline := models.OrderTimeline{
			OrderID:     order.ID,
			Event:       "ORDER_CREATED",
			Description: "Order has been created",
			Timestamp:   time.Now(),
			CreatedBy:   "system",
		}
		if err := tx.Create(&timeline).Error; err != nil {
			return fmt.Errorf("failed to create timeline event: %w", err)
		}

		return nil
	})
}

// GetByID retrieves an order by ID with all related data (with caching)
func (r *orderRepository) GetByID(id uuid.UUID, tenantID string) (*models.Order, error) {
	ctx := context.Background()
	cacheKey := generateOrderCacheKey(tenantID, id)

	// Try to get from cache first
	if r.redis != nil {
		val, err := r.redis.Get(ctx, "aftersale:orders:"+cacheKey).Result()
		if err == nil {
			var order models.Order
			if err := json.Unmarshal([]byte(val), &order); err == nil {
				return &order, nil
			}
		}
	}

	var order models.Order
	err := r.db.Preload("Items").
		Preload("RefundSummary").
		Preload("Timeline").
		Where("tenant_id = ?", tenantID).
		First(&order, "id = ?", id).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("order with ID %s not found", id.String())
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	// Cache the result
	if r.redis != nil {
		data, marshalErr := json.Marshal(order)
		if marshalErr == nil {
			r.redis.Set(ctx, "aftersale:orders:"+cacheKey, data, OrderCacheTTL)
		}
	}

	return &order, nil
}

// GetByOrderNumber retrieves an order by order number (with caching)
func (r *orderRepository) GetByOrderNumber(orderNumber string, tenantID string) (*models.Order, error) {
	ctx := context.Background()
	cacheKey := generateOrderNumberCacheKey(tenantID, orderNumber)

	if r.redis != nil {
		val, err := r.redis.Get(ctx, "aftersale:orders:"+cacheKey).Result()
		if err == nil {
			var order models.Order
			if err := json.Unmarshal([]byte(val), &order); err == nil {
				return &order, nil
			}
		}
	}

	var order models.Order
	err := r.db.Preload("Items").
		Preload("RefundSummary").
		Preload("Timeline").
		Where("tenant_id = ?", tenantID).
		First(&order, "order_number = ?", orderNumber).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("order with number %s not found", orderNumber)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if r.redis != nil {
		data, marshalErr := json.Marshal(order)
		if marshalErr == nil {
			r.redis.Set(ctx, "aftersale:orders:"+cacheKey, data, OrderNumberCacheTTL)
		}
	}

	return &order, nil
}

// List retrieves orders with filtering and pagination
func (r *orderRepository) List(filters OrderFilters) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.Model(&models.Order{})

	// Apply tenant filter (required)
	if filters.TenantID != "" {
		query = query.Where("tenant_id = ?", filters.TenantID)
	}

	if filters.CustomerID != nil {
		query = query.Where("customer_id = ?", *filters.CustomerID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
		if filters.Page > 0 {
			offset := (filters.Page - 1) * filters.Limit
			query = query.Offset(offset)
		}
	}

	err := query.Preload("Items").
		Preload("RefundSummary").
		Order("created_at DESC").
		Find(&orders).Error

	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	return orders, total, nil
}

// UpdateStatus updates the status of an order. The extra map carries
// additional column updates that belong to the same transition, such as the
// delivery timestamp when an order reaches DELIVERED.
func (r *orderRepository) UpdateStatus(id uuid.UUID, status models.OrderStatus, notes string, tenantID string, extra map[string]interface{}) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": status}
		for k, v := range extra {
			updates[k] = v
		}
		if err := tx.Model(&models.Order{}).Where("id = ? AND tenant_id = ?", id, tenantID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		description := fmt.Sprintf("Order status changed to %s", status.DisplayName())
		if notes != "" {
			description += fmt.Sprintf(". Notes: %s", notes)
		}

		timeline := models.OrderTimeline{
			OrderID:     id,
			Event:       "STATUS_CHANGED",
			Description: description,
			Timestamp:   time.Now(),
			CreatedBy:   "system",
		}
		if err := tx.Create(&timeline).Error; err != nil {
			return fmt.Errorf("failed to create timeline event: %w", err)
		}

		return nil
	})

	if err == nil {
		r.invalidateOrderCaches(context.Background(), tenantID, id, "")
	}

	return err
}

// UpdatePaymentStatus updates the payment status for an order
func (r *orderRepository) UpdatePaymentStatus(id uuid.UUID, status models.PaymentStatus, tenantID string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Where("id = ? AND tenant_id = ?", id, tenantID).First(&order).Error; err != nil {
			return fmt.Errorf("order not found: %w", err)
		}

		if err := tx.Model(&models.Order{}).Where("id = ? AND tenant_id = ?", id, tenantID).Update("payment_status", status).Error; err != nil {
			return fmt.Errorf("failed to update order payment status: %w", err)
		}

		timeline := models.OrderTimeline{
			OrderID:     id,
			Event:       "PAYMENT_STATUS_CHANGED",
			Description: fmt.Sprintf("Payment status changed to %s", string(status)),
			Timestamp:   time.Now(),
			CreatedBy:   "system",
		}
		if err := tx.Create(&timeline).Error; err != nil {
			return fmt.Errorf("failed to create timeline event: %w", err)
		}

		return nil
	})

	if err == nil {
		r.invalidateOrderCaches(context.Background(), tenantID, id, "")
	}

	return err
}

// MarkCancelled writes the embedded cancellation annotation onto the order.
// An empty itemIDs list cancels the whole order and moves its status to
// CANCELLED; a non-empty list only annotates the named items.
func (r *orderRepository) MarkCancelled(id uuid.UUID, reason string, itemIDs models.UUIDList, tenantID string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		updates := map[string]interface{}{
			"cancelled_at":        now,
			"cancellation_reason": reason,
		}
		if len(itemIDs) == 0 {
			updates["status"] = models.OrderStatusCancelled
		} else {
			updates["cancelled_item_ids"] = itemIDs
		}

		result := tx.Model(&models.Order{}).
			Where("id = ? AND tenant_id = ?", id, tenantID).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to mark order cancelled: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("order with ID %s not found", id.String())
		}

		description := "Order has been cancelled"
		if len(itemIDs) > 0 {
			description = fmt.Sprintf("%d item(s) cancelled on the order", len(itemIDs))
		}
		if reason != "" {
			description += fmt.Sprintf(". Reason: %s", reason)
		}

		timeline := models.OrderTimeline{
			OrderID:     id,
			Event:       "ORDER_CANCELLED",
			Description: description,
			Timestamp:   now,
			CreatedBy:   "system",
		}
		if err := tx.Create(&timeline).Error; err != nil {
			return fmt.Errorf("failed to create timeline event: %w", err)
		}

		return nil
	})

	if err == nil {
		r.invalidateOrderCaches(context.Background(), tenantID, id, "")
	}

	return err
}

// AddRefundSummaryEntry appends a refund audit-trail line to the order
func (r *orderRepository) AddRefundSummaryEntry(entry *models.RefundSummaryEntry, tenantID string) error {
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to add refund summary entry: %w", err)
	}

	r.invalidateOrderCaches(context.Background(), tenantID, entry.OrderID, "")

	return nil
}

// AddTimelineEvent adds a timeline event to an order
func (r *orderRepository) AddTimelineEvent(orderID uuid.UUID, event, description string, createdBy *uuid.UUID, tenantID string) error {
	createdByStr := "system"
	if createdBy != nil {
		createdByStr = createdBy.String()
	}

	timeline := models.OrderTimeline{
		OrderID:     orderID,
		Event:       event,
		Description: description,
		Timestamp:   time.Now(),
		CreatedBy:   createdByStr,
	}

	if err := r.db.Create(&timeline).Error; err != nil {
		return fmt.Errorf("failed to add timeline event: %w", err)
	}

	return nil
}

// GetTimelineByOrderID retrieves timeline events for an order
func (r *orderRepository) GetTimelineByOrderID(orderID uuid.UUID) ([]models.OrderTimeline, error) {
	var timeline []models.OrderTimeline
	err := r.db.Where("order_id = ?", orderID).
		Order("timestamp DESC").
		Find(&timeline).Error

	if err != nil {
		return nil, fmt.Errorf("failed to get order timeline: %w", err)
	}

	return timeline, nil
}
