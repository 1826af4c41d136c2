package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"aftersale-service/internal/models"
)

// CatalogClient defines the interface for communicating with products-service.
// It supplies the catalog references the pricing resolver falls back to and
// restores inventory when cancellations and returns put stock back.
type CatalogClient interface {
	GetProductRef(productID string, tenantID string) (*models.CatalogRef, error)
	GetBundleRef(bundleID string, tenantID string) (*models.CatalogRef, error)
	// RestoreInventoryWithIdempotency restores inventory with idempotency key to prevent duplicate restorations
	RestoreInventoryWithIdempotency(items []InventoryItem, reason string, orderID string, tenantID string) error
}

// InventoryItem represents an item for inventory operations
type InventoryItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// InventoryRequest is the request for bulk inventory operations
type InventoryRequest struct {
	Items          []InventoryItem `json:"items"`
	Reason         string          `json:"reason"`
	OrderID        string          `json:"orderId,omitempty"`        // For traceability
	IdempotencyKey string          `json:"idempotencyKey,omitempty"` // Prevents duplicate operations
}

type catalogRefResponse struct {
	Success bool              `json:"success"`
	Data    models.CatalogRef `json:"data"`
}

type catalogClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCatalogClient creates a new products service client
func NewCatalogClient(baseURL string) CatalogClient {
	return &catalogClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetProductRef fetches the pricing reference for a product
func (c *catalogClient) GetProductRef(productID string, tenantID string) (*models.CatalogRef, error) {
	url := fmt.Sprintf("%s/api/v1/products/%s/pricing", c.baseURL, productID)
	return c.getRef(url, tenantID)
}

// GetBundleRef fetches the pricing reference for a bundle
func (c *catalogClient) GetBundleRef(bundleID string, tenantID string) (*models.CatalogRef, error) {
	url := fmt.Sprintf("%s/api/v1/bundles/%s/pricing", c.baseURL, bundleID)
	return c.getRef(url, tenantID)
}

func (c *catalogClient) getRef(url string, tenantID string) (*models.CatalogRef, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("products service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var refResp catalogRefResponse
	if err := json.NewDecoder(resp.Body).Decode(&refResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &refResp.Data, nil
}

// RestoreInventoryWithIdempotency restores inventory with idempotency key to prevent duplicate restorations
// The idempotency key is based on orderID + "restore" to ensure each order only restores once
func (c *catalogClient) RestoreInventoryWithIdempotency(items []InventoryItem, reason string, orderID string, tenantID string) error {
	idempotencyKey := fmt.Sprintf("order-%s-restore", orderID)

	reqBody := InventoryRequest{
		Items:          items,
		Reason:         reason,
		OrderID:        orderID,
		IdempotencyKey: idempotencyKey,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/products/inventory/bulk/restore", c.baseURL)
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)
	req.Header.Set("X-Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("products service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return nil
}
