package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CancellationStatus represents the lifecycle status of a cancellation request
type CancellationStatus string

const (
	CancellationStatusPending  CancellationStatus = "PENDING"  // Submitted, awaiting admin review
	CancellationStatusApproved CancellationStatus = "APPROVED" // Approved with a refund decision
	CancellationStatusRejected CancellationStatus = "REJECTED" // Rejected by admin
)

// CancellationRequest is one entry of an order's cancellation ledger.
// An empty ItemIDs list means the whole order is being cancelled; a non-empty
// list cancels only the named items. Requests are never deleted, only
// transitioned, so the ledger doubles as the cancellation audit trail.
type CancellationRequest struct {
	ID       uuid.UUID          `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID string             `json:"tenantId" gorm:"type:varchar(255);not null;index:idx_cancellations_tenant_id;index:idx_cancellations_tenant_status"`
	OrderID  uuid.UUID          `json:"orderId" gorm:"type:uuid;not null;index:idx_cancellations_order"`
	Status   CancellationStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index:idx_cancellations_tenant_status"`

	// Empty = full-order cancellation
	ItemIDs UUIDList `json:"items" gorm:"type:jsonb"`

	Reason      string    `json:"reason" gorm:"type:text"`
	RequestedAt time.Time `json:"requestDate" gorm:"not null"`

	// Admin response, populated on approval/rejection
	ProcessedBy      string     `json:"processedBy,omitempty" gorm:"type:varchar(255)"`
	ProcessedAt      *time.Time `json:"processedDate,omitempty"`
	RefundAmount     float64    `json:"refundAmount" gorm:"type:decimal(10,2);default:0"`
	RefundPercentage float64    `json:"refundPercentage" gorm:"type:decimal(5,2);default:0"`
	AdminComments    string     `json:"adminComments,omitempty" gorm:"type:text"`

	// Refund execution details, populated once money moves
	RefundID     string     `json:"refundId,omitempty" gorm:"type:varchar(100)"`
	RefundStatus string     `json:"refundStatus,omitempty" gorm:"type:varchar(30)"`
	RefundMethod string     `json:"refundMethod,omitempty" gorm:"type:varchar(30)"`
	RefundedAt   *time.Time `json:"refundDate,omitempty"`

	CreatedAt time.Time      `json:"createdAt" gorm:"index:idx_cancellations_tenant_created,sort:desc"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for CancellationRequest
func (CancellationRequest) TableName() string {
	return "cancellation_requests"
}

// IsFullOrder reports whether the request cancels the entire order
func (c *CancellationRequest) IsFullOrder() bool {
	return len(c.ItemIDs) == 0
}

// CoversItem reports whether the request covers the given order item.
// A full-order request covers every item.
func (c *CancellationRequest) CoversItem(itemID uuid.UUID) bool {
	if c.IsFullOrder() {
		return true
	}
	return c.ItemIDs.Contains(itemID)
}

// CanApprove checks if the request can be approved
func (c *CancellationRequest) CanApprove() bool {
	return c.Status == CancellationStatusPending
}

// CanReject checks if the request can be rejected
func (c *CancellationRequest) CanReject() bool {
	return c.Status == CancellationStatusPending
}

// HasExplicitRefund reports whether an admin recorded a concrete refund
// figure on approval. When true, views must prefer it over recomputing.
func (c *CancellationRequest) HasExplicitRefund() bool {
	return c.Status == CancellationStatusApproved && c.RefundAmount > 0
}

// DisplayName returns a human-readable name for the cancellation status
func (s CancellationStatus) DisplayName() string {
	switch s {
	case CancellationStatusPending:
		return "Pending Review"
	case CancellationStatusApproved:
		return "Approved"
	case CancellationStatusRejected:
		return "Rejected"
	default:
		return string(s)
	}
}
