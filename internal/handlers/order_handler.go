package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"aftersale-service/internal/models"
	"aftersale-service/internal/repository"
	"aftersale-service/internal/services"
)

// OrderHandler handles HTTP requests for orders
type OrderHandler struct {
	orderService      *services.OrderService
	guestTokenService *services.GuestTokenService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService *services.OrderService, guestTokenService *services.GuestTokenService) *OrderHandler {
	return &OrderHandler{
		orderService:      orderService,
		guestTokenService: guestTokenService,
	}
}

// getTenantID extracts tenant ID from context
// SECURITY: RequireTenantID middleware ensures this is always set
func getTenantID(c *gin.Context) (string, bool) {
	tenantID, exists := c.Get("tenant_id")
	if !exists {
		return "", false
	}
	return tenantID.(string), true
}

// getUserID extracts the authenticated user ID from context, if present
func getUserID(c *gin.Context) *uuid.UUID {
	if userIDStr := c.GetString("user_id"); userIDStr != "" {
		if parsed, err := uuid.Parse(userIDStr); err == nil {
			return &parsed
		}
	}
	return nil
}

// CreateOrder creates a new order
// @Summary Create a new order
// @Description Create a new order with items and price snapshots
// @Tags orders
// @Accept json
// @Produce json
// @Param order body models.Order true "Order creation request"
// @Success 201 {object} models.Order
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Missing tenant ID",
			Message: "X-Tenant-ID header is required",
		})
		return
	}

	var order models.Order
	if err := c.ShouldBindJSON(&order); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}
	order.TenantID = tenantID

	created, err := h.orderService.CreateOrder(&order)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to create order",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// GetOrder retrieves an order by ID
// @Summary Get order by ID
// @Description Get a specific order by its ID
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} models.Order
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Missing tenant ID",
			Message: "X-Tenant-ID header is required",
		})
		return
	}

	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid order ID",
			Message: "Order ID must be a valid UUID",
		})
		return
	}

	order, err := h.orderService.GetOrder(id, tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Order not found",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, order)
}

// GetOrderByNumber retrieves an order by order number
// @Summary Get order by order number
// @Description Get a specific order by its order number
// @Tags orders
// @Produce json
// @Param orderNumber path string true "Order Number"
// @Success 200 {object} models.Order
// @Failure 404 {object} ErrorResponse
// @Router /orders/number/{orderNumber} [get]
func (h *OrderHandler) GetOrderByNumber(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Missing tenant ID",
			Message: "X-Tenant-ID header is required",
		})
		return
	}

	orderNumber := c.Param("orderNumber")

	order, err := h.orderService.GetOrderByNumber(orderNumber, tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Order not found",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, order)
}

// ListOrders retrieves orders with filtering and pagination
// @Summary List orders
// @Description Get a paginated list of orders with optional filters
// @Tags orders
// @Produce json
// @Param customerId query string false "Customer ID filter"
// @Param status query string false "Order status filter"
// @Param dateFrom query string false "Date from filter (RFC3339 format)"
// @Param dateTo query string false "Date to filter (RFC3339 format)"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} OrderListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Missing tenant ID",
			Message: "X-Tenant-ID header is required",
		})
		return
	}

	filters := repository.OrderFilters{
		TenantID: tenantID,
		Page:     1,
		Limit:    20,
	}

	if pageStr := c.Query("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			filters.Page = page
		}
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filters.Limit = limit
		}
	}

	if customerIDStr := c.Query("customerId"); customerIDStr != "" {
		if customerID, err := uuid.Parse(customerIDStr); err == nil {
			filters.CustomerID = &customerID
		}
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.OrderStatus(statusStr)
		filters.Status = &status
	}

	if dateFromStr := c.Query("dateFrom"); dateFromStr != "" {
		if dateFrom, err := time.Parse(time.RFC3339, dateFromStr); err == nil {
			filters.DateFrom = &dateFrom
		}
	}

	if dateToStr := c.Query("dateTo"); dateToStr != "" {
		if dateTo, err := time.Parse(time.RFC3339, dateToStr); err == nil {
			filters.DateTo = &dateTo
		}
	}

	orders, total, err := h.orderService.ListOrders(filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to list orders",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, OrderListResponse{
		Orders: orders,
		Total:  total,
		Page:   filters.Page,
		Limit:  filters.Limit,
	})
}

// GetActiveView returns the reconciled active view of an order
// @Summary Get reconciled order view
// @Description Get the active items, remaining totals, and refund amounts for an order after cancellations and returns
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} reconcile.ActiveOrderView
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id}/active-view [get]
func (h *OrderHandler) GetActiveView(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Missing tenant ID",
			Message: "X-Tenant-ID header is required",
		})
		return
	}

	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid order ID",
			Message: "Order ID must be a valid UUID",
		})
		return
	}

	view, err := h.orderService.GetActiveView(id, tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Order not found",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, view)
}

// UpdateOrderStatus updates the status of an order
// @Summary Update order status
// @Description Update the status of an order
// @Tags orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body UpdateOrderStatusRequest true "Status update request"
// @Success 200 {object} models.Order
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /orders/{id}/status [patch]
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Missing tenant ID",
			Message: "X-Tenant-ID header is required",
		})
		return
	}

	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid order ID",
			Message: "Order ID must be a valid UUID",
		})
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	order, err := h.orderService.UpdateOrderStatus(id, tenantID, req.Status, req.Notes)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Failed to update order status",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, order)
}

// GetOrderTimeline retrieves timeline events for an order
// @Summary Get order timeline
// @Description Get the audit timeline for an order
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {array} models.OrderTimeline
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id}/timeline [get]
func (h *OrderHandler) GetOrderTimeline(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Missing tenant ID",
			Message: "X-Tenant-ID header is required",
		})
		return
	}

	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid order ID",
			Message: "Order ID must be a valid UUID",
		})
		return
	}

	// Tenant scoping is enforced on the order lookup
	if _, err := h.orderService.GetOrder(id, tenantID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Order not found",
			Message: err.Error(),
		})
		return
	}

	timeline, err := h.orderService.GetOrderTimeline(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to get order timeline",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, timeline)
}

// CreateGuestAccessLink mints a tokenized self-service link for an order
// @Summary Create guest access link
// @Description Mint a tokenized link a customer can use to view and cancel the order without an account
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} GuestAccessLinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id}/guest-link [post]
func (h *OrderHandler) CreateGuestAccessLink(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Missing tenant ID",
			Message: "X-Tenant-ID header is required",
		})
		return
	}

	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid order ID",
			Message: "Order ID must be a valid UUID",
		})
		return
	}

	order, err := h.orderService.GetOrder(id, tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Order not found",
			Message: err.Error(),
		})
		return
	}

	token := h.guestTokenService.GenerateToken(order.ID.String(), order.OrderNumber)
	c.JSON(http.StatusOK, GuestAccessLinkResponse{
		OrderNumber: order.OrderNumber,
		Token:       token,
		LookupPath:  "/api/v1/public/orders/lookup?order_number=" + order.OrderNumber + "&token=" + token,
	})
}

// HealthCheck reports service health
// @Summary Health check
// @Description Check if the service is healthy
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *OrderHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: "aftersale-service",
		Version: "1.0.0",
	})
}

// Request and Response DTOs
type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
	Notes  string             `json:"notes"`
}

type OrderListResponse struct {
	Orders []models.Order `json:"orders"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

type GuestAccessLinkResponse struct {
	OrderNumber string `json:"orderNumber"`
	Token       string `json:"token"`
	LookupPath  string `json:"lookupPath"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}
