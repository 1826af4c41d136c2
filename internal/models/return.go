package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ReturnStatus represents the status of a return request
type ReturnStatus string

const (
	ReturnStatusRequested       ReturnStatus = "REQUESTED"        // Return request submitted, awaiting review
	ReturnStatusApproved        ReturnStatus = "APPROVED"         // Approved, refund amount locked
	ReturnStatusRejected        ReturnStatus = "REJECTED"         // Rejected; a fresh request may be submitted
	ReturnStatusPickupScheduled ReturnStatus = "PICKUP_SCHEDULED" // Courier pickup booked
	ReturnStatusPickedUp        ReturnStatus = "PICKED_UP"        // Items collected from customer
	ReturnStatusInspected       ReturnStatus = "INSPECTED"        // Items inspected at warehouse
	ReturnStatusRefundProcessed ReturnStatus = "REFUND_PROCESSED" // Refund issued to customer
	ReturnStatusCompleted       ReturnStatus = "COMPLETED"        // Return closed
	ReturnStatusCancelled       ReturnStatus = "CANCELLED"        // Withdrawn by customer before pickup
)

// ReturnReason represents the reason for return
type ReturnReason string

const (
	ReturnReasonDefective      ReturnReason = "DEFECTIVE"        // Product is defective or damaged
	ReturnReasonWrongItem      ReturnReason = "WRONG_ITEM"       // Wrong item received
	ReturnReasonWrongSize      ReturnReason = "WRONG_SIZE"       // Size does not fit
	ReturnReasonNotAsDescribed ReturnReason = "NOT_AS_DESCRIBED" // Product not as described
	ReturnReasonChangedMind    ReturnReason = "CHANGED_MIND"     // Customer changed mind
	ReturnReasonOther          ReturnReason = "OTHER"            // Other reason
)

// ReturnRequest is one entry of an order's return ledger, covering a single
// order item and claimed quantity. Requests advance through the return state
// machine and are never deleted; a rejected request is resubmitted as a new
// record so the rejection history survives.
type ReturnRequest struct {
	ID        uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string       `json:"tenantId" gorm:"type:varchar(255);not null;index:idx_returns_tenant_id;index:idx_returns_tenant_status;index:idx_returns_tenant_rma,unique"`
	RMANumber string       `json:"rmaNumber" gorm:"not null;index:idx_returns_tenant_rma,unique"` // Return Merchandise Authorization number
	OrderID   uuid.UUID    `json:"orderId" gorm:"type:uuid;not null;index:idx_returns_order"`
	ItemID    uuid.UUID    `json:"itemId" gorm:"type:uuid;not null;index:idx_returns_item"`
	Status    ReturnStatus `json:"status" gorm:"type:varchar(20);not null;default:'REQUESTED';index:idx_returns_tenant_status"`

	// Item snapshot captured at request time
	ItemName      string  `json:"itemName" gorm:"not null"`
	ItemSize      string  `json:"itemSize" gorm:"type:varchar(10)"`
	Quantity      int     `json:"quantity" gorm:"not null"`
	OriginalPrice float64 `json:"originalPrice" gorm:"type:decimal(10,2);not null"`

	// Refund amount locked at approval from the return refund policy
	RefundAmount float64 `json:"refundAmount" gorm:"type:decimal(10,2);default:0"`

	ReturnReason      ReturnReason `json:"returnReason" gorm:"type:varchar(30);not null"`
	ReturnDescription string       `json:"returnDescription" gorm:"type:text"`

	// Customer-supplied photo URLs supporting the claim
	EvidencePhotos pq.StringArray `json:"evidencePhotos,omitempty" gorm:"type:text[]"`

	// Admin response
	AdminComments string     `json:"adminComments,omitempty" gorm:"type:text"`
	ProcessedBy   string     `json:"processedBy,omitempty" gorm:"type:varchar(255)"`
	ProcessedAt   *time.Time `json:"processedDate,omitempty"`

	// Refund execution details
	RefundID           string     `json:"refundId,omitempty" gorm:"type:varchar(100)"`
	RefundStatus       string     `json:"refundStatus,omitempty" gorm:"type:varchar(30)"`
	RefundMethod       string     `json:"refundMethod,omitempty" gorm:"type:varchar(30)"`
	RefundedAt         *time.Time `json:"refundDate,omitempty"`
	ActualRefundAmount float64    `json:"actualRefundAmount" gorm:"type:decimal(10,2);default:0"`

	CreatedAt time.Time      `json:"createdAt" gorm:"index:idx_returns_tenant_created,sort:desc"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Timeline []ReturnTimeline `json:"timeline" gorm:"foreignKey:ReturnID;constraint:OnDelete:CASCADE"`
}

// ReturnTimeline tracks status changes and events, append-only
type ReturnTimeline struct {
	ID        uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ReturnID  uuid.UUID    `json:"returnId" gorm:"type:uuid;not null;index"`
	Status    ReturnStatus `json:"status" gorm:"type:varchar(20);not null"`
	Note      string       `json:"note" gorm:"type:text;not null"`
	CreatedBy *uuid.UUID   `json:"createdBy" gorm:"type:uuid"` // Staff user ID, null for system events
	CreatedAt time.Time    `json:"timestamp"`
}

// BeforeCreate hook to generate RMA number
func (r *ReturnRequest) BeforeCreate(tx *gorm.DB) error {
	if r.RMANumber == "" {
		// RMA-YYYYMMDD-XXXXXX (where X is random)
		timestamp := time.Now().Format("20060102")
		randomPart := uuid.New().String()[:6]
		r.RMANumber = "RMA-" + timestamp + "-" + randomPart
	}
	return nil
}

// TableName specifies the table name for ReturnRequest
func (ReturnRequest) TableName() string {
	return "return_requests"
}

// TableName specifies the table name for ReturnTimeline
func (ReturnTimeline) TableName() string {
	return "return_timeline"
}

// CreateTimelineEntry creates a timeline entry for a status change
func (r *ReturnRequest) CreateTimelineEntry(status ReturnStatus, note string, userID *uuid.UUID) ReturnTimeline {
	return ReturnTimeline{
		ReturnID:  r.ID,
		Status:    status,
		Note:      note,
		CreatedBy: userID,
		CreatedAt: time.Now(),
	}
}

// LineTotal returns the value of the returned quantity at the original price
func (r *ReturnRequest) LineTotal() float64 {
	return r.OriginalPrice * float64(r.Quantity)
}

// IsFinalized checks if the return is in a terminal state
func (r *ReturnRequest) IsFinalized() bool {
	return r.Status == ReturnStatusCompleted ||
		r.Status == ReturnStatusRejected ||
		r.Status == ReturnStatusCancelled
}

// DisplayName returns a human-readable name for the return status
func (s ReturnStatus) DisplayName() string {
	switch s {
	case ReturnStatusRequested:
		return "Requested"
	case ReturnStatusApproved:
		return "Approved"
	case ReturnStatusRejected:
		return "Rejected"
	case ReturnStatusPickupScheduled:
		return "Pickup Scheduled"
	case ReturnStatusPickedUp:
		return "Picked Up"
	case ReturnStatusInspected:
		return "Inspected"
	case ReturnStatusRefundProcessed:
		return "Refund Processed"
	case ReturnStatusCompleted:
		return "Completed"
	case ReturnStatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}
