package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"aftersale-service/internal/models"
	"aftersale-service/internal/services"
)

// RefundPolicyHandler handles HTTP requests for refund policy settings
type RefundPolicyHandler struct {
	service services.RefundPolicyService
}

// NewRefundPolicyHandler creates a new handler instance
func NewRefundPolicyHandler(service services.RefundPolicyService) *RefundPolicyHandler {
	return &RefundPolicyHandler{service: service}
}

// RefundPolicyResponse is the envelope for refund policy endpoints
type RefundPolicyResponse struct {
	Success bool                         `json:"success"`
	Data    *models.RefundPolicySettings `json:"data,omitempty"`
	Error   string                       `json:"error,omitempty"`
	Message string                       `json:"message,omitempty"`
}

// GetSettings returns refund policy settings for a tenant
// @Summary Get refund policy settings
// @Description Get refund policy settings for the current tenant, falling back to defaults
// @Tags refund-policy
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Success 200 {object} RefundPolicyResponse
// @Failure 400 {object} RefundPolicyResponse
// @Failure 500 {object} RefundPolicyResponse
// @Router /api/v1/settings/refund-policy [get]
func (h *RefundPolicyHandler) GetSettings(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, RefundPolicyResponse{
			Success: false,
			Error:   "Missing tenant ID",
			Message: "X-Tenant-ID header is required",
		})
		return
	}

	settings, err := h.service.GetSettings(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, RefundPolicyResponse{
			Success: false,
			Error:   "Failed to get settings",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, RefundPolicyResponse{
		Success: true,
		Data:    settings,
	})
}

// GetPublicSettings returns refund policy settings for public storefront use
// @Summary Get public refund policy settings
// @Description Get refund policy settings for public storefront use
// @Tags refund-policy
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Success 200 {object} RefundPolicyResponse
// @Failure 400 {object} RefundPolicyResponse
// @Failure 500 {object} RefundPolicyResponse
// @Router /api/v1/public/settings/refund-policy [get]
func (h *RefundPolicyHandler) GetPublicSettings(c *gin.Context) {
	tenantID := c.GetHeader("X-Tenant-ID")
	if tenantID == "" {
		tenantID = c.Query("tenantId")
	}
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, RefundPolicyResponse{
			Success: false,
			Error:   "Missing tenant ID",
			Message: "X-Tenant-ID header or tenantId query parameter is required",
		})
		return
	}

	settings, err := h.service.GetSettings(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, RefundPolicyResponse{
			Success: false,
			Error:   "Failed to get settings",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, RefundPolicyResponse{
		Success: true,
		Data:    settings,
	})
}

// UpdateSettings updates refund policy settings for a tenant
// @Summary Update refund policy settings
// @Description Update refund policy settings for the current tenant
// @Tags refund-policy
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param settings body models.UpdateRefundPolicyRequest true "Settings to update"
// @Success 200 {object} RefundPolicyResponse
// @Failure 400 {object} RefundPolicyResponse
// @Failure 500 {object} RefundPolicyResponse
// @Router /api/v1/settings/refund-policy [put]
func (h *RefundPolicyHandler) UpdateSettings(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, RefundPolicyResponse{
			Success: false,
			Error:   "Missing tenant ID",
			Message: "X-Tenant-ID header is required",
		})
		return
	}

	var req models.UpdateRefundPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, RefundPolicyResponse{
			Success: false,
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	settings, err := h.service.UpdateSettings(c.Request.Context(), tenantID, &req, c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, RefundPolicyResponse{
			Success: false,
			Error:   "Failed to update settings",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, RefundPolicyResponse{
		Success: true,
		Data:    settings,
		Message: "Refund policy settings updated successfully",
	})
}
