package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"aftersale-service/internal/models"
	"aftersale-service/internal/services"
)

// CancellationHandler handles HTTP requests for cancellation requests
type CancellationHandler struct {
	cancellationService *services.CancellationService
}

// NewCancellationHandler creates a new cancellation handler
func NewCancellationHandler(cancellationService *services.CancellationService) *CancellationHandler {
	return &CancellationHandler{
		cancellationService: cancellationService,
	}
}

// CreateCancellation files a cancellation request for an order
// @Summary Create cancellation request
// @Description Customer requests cancellation of an order or selected items
// @Tags Cancellations
// @Accept json
// @Produce json
// @Param request body services.CreateCancellationRequest true "Cancellation request"
// @Success 201 {object} models.CancellationRequest
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/cancellations [post]
func (h *CancellationHandler) CreateCancellation(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant ID", "message": "X-Tenant-ID header is required"})
		return
	}

	var req services.CreateCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	req.TenantID = tenantID

	cr, err := h.cancellationService.CreateCancellationRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to create cancellation request", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, cr)
}

// GetCancellation retrieves a cancellation request by ID
// @Summary Get cancellation request
// @Description Get cancellation request details by ID
// @Tags Cancellations
// @Produce json
// @Param id path string true "Cancellation request ID"
// @Success 200 {object} models.CancellationRequest
// @Router /api/v1/cancellations/{id} [get]
func (h *CancellationHandler) GetCancellation(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant ID", "message": "X-Tenant-ID header is required"})
		return
	}

	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cancellation request ID"})
		return
	}

	cr, err := h.cancellationService.GetCancellation(id, tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cancellation request not found", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, cr)
}

// ListCancellations lists cancellation requests with pagination and filters
// @Summary List cancellation requests
// @Description List cancellation requests with pagination and filters
// @Tags Cancellations
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(10)
// @Param status query string false "Filter by status"
// @Param orderId query string false "Filter by order ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/cancellations [get]
func (h *CancellationHandler) ListCancellations(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant ID", "message": "X-Tenant-ID header is required"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "10"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	filters := make(map[string]interface{})
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	if orderID := c.Query("orderId"); orderID != "" {
		if id, err := uuid.Parse(orderID); err == nil {
			filters["order_id"] = id
		}
	}

	requests, total, err := h.cancellationService.ListCancellations(tenantID, filters, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cancellation requests", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cancellations": requests,
		"total":         total,
		"page":          page,
		"pageSize":      pageSize,
	})
}

// GetOrderCancellations lists all cancellation requests for an order
// @Summary List order cancellation requests
// @Description List all cancellation requests filed against an order
// @Tags Cancellations
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {array} models.CancellationRequest
// @Router /api/v1/orders/{id}/cancellations [get]
func (h *CancellationHandler) GetOrderCancellations(c *gin.Context) {
	if _, ok := getTenantID(c); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant ID", "message": "X-Tenant-ID header is required"})
		return
	}

	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	requests, err := h.cancellationService.GetCancellationsByOrder(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cancellation requests", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, requests)
}

// ApproveCancellation approves a pending cancellation request
// @Summary Approve cancellation request
// @Description Admin approves a cancellation request; the refund percentage is computed from policy with an optional override
// @Tags Cancellations
// @Accept json
// @Produce json
// @Param id path string true "Cancellation request ID"
// @Param request body ApproveCancellationRequest true "Approval details"
// @Success 200 {object} models.CancellationRequest
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/cancellations/{id}/approve [post]
func (h *CancellationHandler) ApproveCancellation(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant ID", "message": "X-Tenant-ID header is required"})
		return
	}

	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cancellation request ID"})
		return
	}

	var req ApproveCancellationRequest
	c.ShouldBindJSON(&req)

	processedBy := c.GetString("user_id")
	if processedBy == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found"})
		return
	}

	cr, err := h.cancellationService.ApproveCancellation(id, tenantID, processedBy, req.RefundPercentage, req.Comments)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to approve cancellation request", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, cr)
}

// PreviewRefund computes the refund a cancellation would yield right now
// @Summary Preview cancellation refund
// @Description Run the refund policy against the current order state without persisting a decision
// @Tags Cancellations
// @Accept json
// @Produce json
// @Param request body PreviewRefundRequest true "Preview parameters"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/cancellations/preview [post]
func (h *CancellationHandler) PreviewRefund(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant ID", "message": "X-Tenant-ID header is required"})
		return
	}

	var req PreviewRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	result, items, err := h.cancellationService.PreviewRefund(req.OrderID, tenantID, req.ItemIDs, req.RefundPercentage)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to compute refund preview", "details": err.Error()})
		return
	}

	resp := gin.H{"refund": result}
	if items != nil {
		resp["items"] = items
	}
	c.JSON(http.StatusOK, resp)
}

// RejectCancellation rejects a pending cancellation request
// @Summary Reject cancellation request
// @Description Admin rejects a cancellation request
// @Tags Cancellations
// @Accept json
// @Produce json
// @Param id path string true "Cancellation request ID"
// @Param request body RejectCancellationRequest true "Rejection details"
// @Success 200 {object} models.CancellationRequest
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/cancellations/{id}/reject [post]
func (h *CancellationHandler) RejectCancellation(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant ID", "message": "X-Tenant-ID header is required"})
		return
	}

	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cancellation request ID"})
		return
	}

	var req RejectCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rejection reason is required"})
		return
	}

	processedBy := c.GetString("user_id")
	if processedBy == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found"})
		return
	}

	cr, err := h.cancellationService.RejectCancellation(id, tenantID, processedBy, req.Comments)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to reject cancellation request", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, cr)
}

type PreviewRefundRequest struct {
	OrderID          uuid.UUID       `json:"orderId" binding:"required"`
	ItemIDs          models.UUIDList `json:"items"`
	RefundPercentage *float64        `json:"refundPercentage"`
}

type ApproveCancellationRequest struct {
	RefundPercentage *float64 `json:"refundPercentage"`
	Comments         string   `json:"comments"`
}

type RejectCancellationRequest struct {
	Comments string `json:"comments" binding:"required"`
}
