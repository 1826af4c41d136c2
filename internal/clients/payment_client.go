package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// PaymentClient talks to payment-service to pay refunds out. Refund requests
// carry an idempotency key derived from the aftersale request so a retried
// approval never pays twice.
type PaymentClient interface {
	// FindRefundablePayment returns the settled payment on an order, or an
	// error when nothing has been captured yet
	FindRefundablePayment(orderID uuid.UUID, tenantID string) (*Payment, error)
	// CreateRefund refunds part or all of a payment back to its source
	CreateRefund(paymentID uuid.UUID, req CreateRefundRequest, tenantID string) (*RefundResponse, error)
}

// settledStatuses are the payment states a refund can be issued against
var settledStatuses = map[string]bool{
	"COMPLETED": true,
	"CAPTURED":  true,
}

// CreateRefundRequest asks payment-service to return money to the customer
type CreateRefundRequest struct {
	Amount         float64 `json:"amount"`
	Reason         string  `json:"reason,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	IdempotencyKey string  `json:"idempotencyKey,omitempty"`
}

// RefundResponse is payment-service's record of an issued refund
type RefundResponse struct {
	ID              string  `json:"id"`
	PaymentID       string  `json:"paymentId"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	GatewayRefundID string  `json:"gatewayRefundId,omitempty"`
	Reason          string  `json:"reason,omitempty"`
	CreatedAt       string  `json:"createdAt"`
}

// Payment is a payment record as payment-service reports it
type Payment struct {
	ID                   string  `json:"id"`
	OrderID              string  `json:"orderId"`
	Amount               float64 `json:"amount"`
	Currency             string  `json:"currency"`
	Status               string  `json:"status"`
	GatewayType          string  `json:"gatewayType"`
	GatewayTransactionID string  `json:"gatewayTransactionId,omitempty"`
}

type paymentClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPaymentClient creates a new payment service client
func NewPaymentClient(baseURL string) PaymentClient {
	return &paymentClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second, // Longer timeout for payment operations
		},
	}
}

// FindRefundablePayment lists the order's payments and picks the first one in
// a settled state
func (c *paymentClient) FindRefundablePayment(orderID uuid.UUID, tenantID string) (*Payment, error) {
	url := fmt.Sprintf("%s/api/v1/orders/%s/payments", c.baseURL, orderID.String())

	body, err := c.doRequest(http.MethodGet, url, nil, tenantID)
	if err != nil {
		return nil, err
	}

	var payments []Payment
	if err := json.Unmarshal(body, &payments); err != nil {
		return nil, fmt.Errorf("failed to parse payments response: %w", err)
	}

	for i := range payments {
		if settledStatuses[payments[i].Status] {
			return &payments[i], nil
		}
	}
	return nil, fmt.Errorf("no settled payment on order %s", orderID)
}

// CreateRefund refunds a payment through payment-service
func (c *paymentClient) CreateRefund(paymentID uuid.UUID, req CreateRefundRequest, tenantID string) (*RefundResponse, error) {
	url := fmt.Sprintf("%s/api/v1/payments/%s/refund", c.baseURL, paymentID.String())

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal refund request: %w", err)
	}

	body, err := c.doRequest(http.MethodPost, url, payload, tenantID)
	if err != nil {
		return nil, err
	}

	var refund RefundResponse
	if err := json.Unmarshal(body, &refund); err != nil {
		return nil, fmt.Errorf("failed to parse refund response: %w", err)
	}

	return &refund, nil
}

func (c *paymentClient) doRequest(method, url string, payload []byte, tenantID string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewBuffer(payload)
	}

	httpReq, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call payment service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment service returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
