package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"aftersale-service/internal/models"
	"aftersale-service/internal/services"
)

// GuestOrderHandler handles public guest order endpoints (token-based auth, no JWT).
type GuestOrderHandler struct {
	orderService        *services.OrderService
	cancellationService *services.CancellationService
	guestTokenService   *services.GuestTokenService
}

// NewGuestOrderHandler creates a new guest order handler.
func NewGuestOrderHandler(orderService *services.OrderService, cancellationService *services.CancellationService, guestTokenService *services.GuestTokenService) *GuestOrderHandler {
	return &GuestOrderHandler{
		orderService:        orderService,
		cancellationService: cancellationService,
		guestTokenService:   guestTokenService,
	}
}

// GuestErrorResponse is a generic error response for public endpoints.
type GuestErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// LookupOrder handles GET /api/v1/public/orders/lookup?order_number=X&token=X
func (h *GuestOrderHandler) LookupOrder(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, GuestErrorResponse{Error: "MISSING_TENANT", Message: "Tenant context required"})
		return
	}

	orderNumber := c.Query("order_number")
	token := c.Query("token")

	if orderNumber == "" || token == "" {
		c.JSON(http.StatusBadRequest, GuestErrorResponse{Error: "MISSING_PARAMS", Message: "order_number and token are required"})
		return
	}

	order, err := h.orderService.GetOrderByNumber(orderNumber, tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, GuestErrorResponse{Error: "NOT_FOUND", Message: "Invalid or expired link"})
		return
	}

	if err := h.guestTokenService.ValidateToken(token, order.ID.String(), orderNumber); err != nil {
		c.JSON(http.StatusUnauthorized, GuestErrorResponse{Error: "UNAUTHORIZED", Message: "Invalid or expired link"})
		return
	}

	result := services.MaskOrderForPublic(order)

	// Attach the reconciled view so the storefront can show what remains
	// active and what has been refunded
	if view, err := h.orderService.GetActiveView(order.ID, tenantID); err == nil {
		result["activeView"] = view
	}

	c.JSON(http.StatusOK, result)
}

// GuestCancelOrderRequest is the request body for guest cancellation requests.
type GuestCancelOrderRequest struct {
	OrderNumber string   `json:"order_number" binding:"required"`
	Token       string   `json:"token" binding:"required"`
	ItemIDs     []string `json:"item_ids"`
	Reason      string   `json:"reason"`
}

// RequestCancellation handles POST /api/v1/public/orders/cancel.
// Guest cancellation goes through the same request/approval flow as
// authenticated cancellation; nothing is cancelled directly here.
func (h *GuestOrderHandler) RequestCancellation(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, GuestErrorResponse{Error: "MISSING_TENANT", Message: "Tenant context required"})
		return
	}

	var req GuestCancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GuestErrorResponse{Error: "INVALID_REQUEST", Message: "Invalid request body"})
		return
	}

	order, err := h.orderService.GetOrderByNumber(req.OrderNumber, tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, GuestErrorResponse{Error: "NOT_FOUND", Message: "Invalid or expired link"})
		return
	}

	if err := h.guestTokenService.ValidateToken(req.Token, order.ID.String(), req.OrderNumber); err != nil {
		c.JSON(http.StatusUnauthorized, GuestErrorResponse{Error: "UNAUTHORIZED", Message: "Invalid or expired link"})
		return
	}

	itemIDs, err := models.ParseUUIDList(req.ItemIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, GuestErrorResponse{Error: "INVALID_REQUEST", Message: "item_ids must be valid UUIDs"})
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "Cancelled by customer"
	}

	cr, err := h.cancellationService.CreateCancellationRequest(&services.CreateCancellationRequest{
		TenantID: tenantID,
		OrderID:  order.ID,
		ItemIDs:  itemIDs,
		Reason:   reason,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, GuestErrorResponse{Error: "CANCEL_FAILED", Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, cr)
}
