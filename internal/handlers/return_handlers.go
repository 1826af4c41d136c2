package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"aftersale-service/internal/models"
	"aftersale-service/internal/services"
)

type ReturnHandlers struct {
	returnService *services.ReturnService
}

func NewReturnHandlers(returnService *services.ReturnService) *ReturnHandlers {
	return &ReturnHandlers{
		returnService: returnService,
	}
}

// CreateReturn creates a new return request
// @Summary Create return request
// @Description Customer creates a return request for a delivered order item
// @Tags Returns
// @Accept json
// @Produce json
// @Param return body services.CreateReturnRequest true "Return request"
// @Success 201 {object} models.ReturnRequest
// @Router /api/v1/returns [post]
func (h *ReturnHandlers) CreateReturn(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant ID", "message": "X-Tenant-ID header is required"})
		return
	}

	var req services.CreateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	req.TenantID = tenantID

	ret, err := h.returnService.CreateReturnRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to create return", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, ret)
}

// GetReturn retrieves a return by ID
// @Summary Get return
// @Description Get return details by ID
// @Tags Returns
// @Produce json
// @Param id path string true "Return ID"
// @Success 200 {object} models.ReturnRequest
// @Router /api/v1/returns/{id} [get]
func (h *ReturnHandlers) GetReturn(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant ID", "message": "X-Tenant-ID header is required"})
		return
	}

	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid return ID"})
		return
	}

	ret, err := h.returnService.GetReturn(id, tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Return not found", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ret)
}

// GetReturnByRMA retrieves a return by RMA number
// @Summary Get return by RMA
// @Description Get return details by RMA number
// @Tags Returns
// @Produce json
// @Param rma path string true "RMA Number"
// @Success 200 {object} models.ReturnRequest
// @Router /api/v1/returns/rma/{rma} [get]
func (h *ReturnHandlers) GetReturnByRMA(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant ID", "message": "X-Tenant-ID header is required"})
		return
	}

	rmaNumber := c.Param("rma")

	ret, err := h.returnService.GetReturnByRMA(rmaNumber, tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Return not found", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ret)
}

// ListReturns lists returns with pagination and filters
// @Summary List returns
// @Description List all returns with pagination and filters
// @Tags Returns
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(10)
// @Param status query string false "Filter by status"
// @Param search query string false "Search by RMA or item name"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/returns [get]
func (h *ReturnHandlers) ListReturns(c *gin.Context) {
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
	if search := c.Query("search"); search != "" {
		filters["search"] = search
	}
	if reason := c.Query("reason"); reason != "" {
		filters["reason"] = reason
	}
	if orderID := c.Query("orderId"); orderID != "" {
		if id, err := uuid.Parse(orderID); err == nil {
			filters["order_id"] = id
		}
	}

	returns, total, err := h.returnService.ListReturns(tenantID, filters, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch returns", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"returns":  returns,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// GetOrderReturns lists all returns for an order
// @Summary List order returns
// @Description List all return requests filed against an order
// @Tags Returns
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {array} models.ReturnRequest
// @Router /api/v1/orders/{id}/returns [get]
func (h *ReturnHandlers) GetOrderReturns(c *gin.Context) {
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

	returns, err := h.returnService.GetReturnsByOrder(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch returns", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, returns)
}

// ApproveReturn approves a return request and locks the refund amount
// @Summary Approve return
// @Description Admin approves a return request
// @Tags Returns
// @Accept json
// @Produce json
// @Param id path string true "Return ID"
// @Param request body map[string]string true "Approval details"
// @Success 200 {object} models.ReturnRequest
// @Router /api/v1/returns/{id}/approve [post]
func (h *ReturnHandlers) ApproveReturn(c *gin.Context) {
	h.applyTransition(c, models.ReturnStatusApproved, true)
}

// RejectReturn rejects a return request
// @Summary Reject return
// @Description Admin rejects a return request
// @Tags Returns
// @Accept json
// @Produce json
// @Param id path string true "Return ID"
// @Param request body map[string]string true "Rejection details"
// @Success 200 {object} models.ReturnRequest
// @Router /api/v1/returns/{id}/reject [post]
func (h *ReturnHandlers) RejectReturn(c *gin.Context) {
	h.applyTransition(c, models.ReturnStatusRejected, true)
}

// UpdateReturnStatus advances a return along its lifecycle
// @Summary Update return status
// @Description Move a return to the next lifecycle status (pickup scheduled, picked up, inspected, refund processed, completed)
// @Tags Returns
// @Accept json
// @Produce json
// @Param id path string true "Return ID"
// @Param request body UpdateReturnStatusRequest true "Status update"
// @Success 200 {object} models.ReturnRequest
// @Router /api/v1/returns/{id}/status [patch]
func (h *ReturnHandlers) UpdateReturnStatus(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant ID", "message": "X-Tenant-ID header is required"})
		return
	}

	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid return ID"})
		return
	}

	var req UpdateReturnStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	ret, err := h.returnService.ApplyReturnTransition(id, tenantID, models.ReturnStatus(req.Status), req.Notes, getUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to update return status", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ret)
}

// UpdateReturnDetails edits reason, description or photos on a pending return
// @Summary Update return details
// @Description Edit the reason, description or evidence photos of a return that is still awaiting review
// @Tags Returns
// @Accept json
// @Produce json
// @Param id path string true "Return ID"
// @Param request body services.UpdateReturnDetailsRequest true "Details update"
// @Success 200 {object} models.ReturnRequest
// @Router /api/v1/returns/{id} [patch]
func (h *ReturnHandlers) UpdateReturnDetails(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant ID", "message": "X-Tenant-ID header is required"})
		return
	}

	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid return ID"})
		return
	}

	var req services.UpdateReturnDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	ret, err := h.returnService.UpdateReturnDetails(id, tenantID, &req, getUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to update return details", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ret)
}

// CancelReturn cancels a return request before pickup
// @Summary Cancel return
// @Description Cancel a return request that has not been picked up yet
// @Tags Returns
// @Accept json
// @Produce json
// @Param id path string true "Return ID"
// @Param request body map[string]string true "Cancellation details"
// @Success 200 {object} models.ReturnRequest
// @Router /api/v1/returns/{id}/cancel [post]
func (h *ReturnHandlers) CancelReturn(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant ID", "message": "X-Tenant-ID header is required"})
		return
	}

	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid return ID"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	c.ShouldBindJSON(&req)

	ret, err := h.returnService.CancelReturn(id, tenantID, getUserID(c), req.Reason)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to cancel return", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ret)
}

// GetReturnStats retrieves return statistics
// @Summary Get return stats
// @Description Get return statistics for tenant
// @Tags Returns
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/returns/stats [get]
func (h *ReturnHandlers) GetReturnStats(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant ID", "message": "X-Tenant-ID header is required"})
		return
	}

	stats, err := h.returnService.GetReturnStats(tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// applyTransition is the shared path for decision endpoints. Admin decisions
// require an authenticated user; lifecycle progress updates do not.
func (h *ReturnHandlers) applyTransition(c *gin.Context, target models.ReturnStatus, requireUser bool) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tenant ID", "message": "X-Tenant-ID header is required"})
		return
	}

	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid return ID"})
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	c.ShouldBindJSON(&req)

	userID := getUserID(c)
	if requireUser && userID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found"})
		return
	}

	ret, err := h.returnService.ApplyReturnTransition(id, tenantID, target, req.Notes, userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to update return", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ret)
}

type UpdateReturnStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}
