package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONB is a custom type for PostgreSQL JSONB fields
type JSONB json.RawMessage

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = JSONB(v)
		return nil
	case string:
		*j = JSONB([]byte(v))
		return nil
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler
func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (j *JSONB) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		*j = nil
		return nil
	}
	*j = JSONB(data)
	return nil
}

// UUIDList is a custom type for JSONB storage of UUID arrays
type UUIDList []uuid.UUID

// Value implements driver.Valuer for JSONB storage
func (l UUIDList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]uuid.UUID{})
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB retrieval
func (l *UUIDList) Scan(value interface{}) error {
	if value == nil {
		*l = []uuid.UUID{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return nil
}

// Contains reports whether the list holds the given ID
func (l UUIDList) Contains(id uuid.UUID) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// ParseUUIDList parses string IDs into a UUIDList, rejecting malformed entries
func ParseUUIDList(ids []string) (UUIDList, error) {
	list := make(UUIDList, 0, len(ids))
	for _, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		list = append(list, id)
	}
	return list, nil
}

// OrderStatus represents the overall lifecycle status of an order
type OrderStatus string

const (
	OrderStatusPlaced         OrderStatus = "ORDER_PLACED"     // Order created
	OrderStatusProcessing     OrderStatus = "PROCESSING"       // Being fulfilled/packed
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY" // Last mile delivery
	OrderStatusDelivered      OrderStatus = "DELIVERED"        // Successfully delivered
	OrderStatusCancelled      OrderStatus = "CANCELLED"        // Cancelled as a whole
)

// PaymentStatus represents the payment/money flow status
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "PENDING"            // Awaiting payment
	PaymentStatusPaid              PaymentStatus = "PAID"               // Payment received
	PaymentStatusFailed            PaymentStatus = "FAILED"             // Payment failed
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED" // Partial refund issued
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"           // Fully refunded
)

// ItemType distinguishes single products from bundles. It is resolved once
// at order ingestion, not re-detected per read.
type ItemType string

const (
	ItemTypeProduct ItemType = "product"
	ItemTypeBundle  ItemType = "bundle"
)

// Order represents the main order entity. Items are append-only once the
// order is placed; cancellations and returns never delete an item, they only
// annotate it through the cancellation and return ledgers.
// Performance indexes: Composite indexes on tenant_id with frequently filtered columns
// for multi-tenant list/filter queries
type Order struct {
	ID             uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID       string        `json:"tenantId" gorm:"type:varchar(255);not null;index:idx_orders_tenant_id;index:idx_orders_tenant_status;index:idx_orders_tenant_order_number,unique"`
	OrderNumber    string        `json:"orderNumber" gorm:"not null;index:idx_orders_tenant_order_number,unique"`
	CustomerID     uuid.UUID     `json:"customerId" gorm:"type:uuid;not null;index:idx_orders_tenant_customer"`
	Status         OrderStatus   `json:"status" gorm:"type:varchar(20);not null;default:'ORDER_PLACED';index:idx_orders_tenant_status"`
	PaymentStatus  PaymentStatus `json:"paymentStatus" gorm:"type:varchar(30);not null;default:'PENDING'"`
	Subtotal       float64       `json:"subtotal" gorm:"type:decimal(10,2);not null"`
	DeliveryCharge float64       `json:"deliveryCharge" gorm:"type:decimal(10,2);default:0"`
	Total          float64       `json:"total" gorm:"type:decimal(10,2);not null"`
	OrderDate      time.Time     `json:"orderDate" gorm:"not null"`

	// Delivery tracking, used by the refund policy engine
	EstimatedDelivery *time.Time `json:"estimatedDelivery"`
	ActualDelivery    *time.Time `json:"actualDelivery"`

	// Embedded cancellation annotation. Written when a flow cancels items
	// directly on the order instead of through the ledger; the reconciliation
	// view treats it as one of three independent sources of cancelled item
	// IDs, never as a cache of the ledger.
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CancellationReason string     `json:"cancellationReason,omitempty" gorm:"type:text"`
	CancelledItemIDs   UUIDList   `json:"cancelledItemIds,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time      `json:"createdAt" gorm:"index:idx_orders_tenant_created,sort:desc"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Items         []OrderItem          `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	RefundSummary []RefundSummaryEntry `json:"refundSummary" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Timeline      []OrderTimeline      `json:"timeline" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem represents a line in an order. The price snapshot columns
// (UnitPrice, SizeAdjustedPrice, ItemTotal) record what was actually charged
// at purchase time and always win over recomputing from the catalog columns,
// which may have drifted since.
type OrderItem struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrderID  uuid.UUID `json:"orderId" gorm:"type:uuid;not null"`
	ItemType ItemType  `json:"itemType" gorm:"type:varchar(10);not null;default:'product'"`

	ProductID *uuid.UUID `json:"productId,omitempty" gorm:"type:uuid"`
	BundleID  *uuid.UUID `json:"bundleId,omitempty" gorm:"type:uuid"`

	Name     string `json:"name" gorm:"not null"`
	SKU      string `json:"sku"`
	Size     string `json:"size" gorm:"type:varchar(10)"`
	Quantity int    `json:"quantity" gorm:"not null"`

	// Authoritative price snapshot, zero when absent
	UnitPrice         float64 `json:"unitPrice" gorm:"type:decimal(10,2);default:0"`
	SizeAdjustedPrice float64 `json:"sizeAdjustedPrice" gorm:"type:decimal(10,2);default:0"`
	ItemTotal         float64 `json:"itemTotal" gorm:"type:decimal(10,2);default:0"`

	// Catalog snapshot captured at ingestion, used only when no price
	// snapshot exists
	BasePrice       float64 `json:"basePrice" gorm:"type:decimal(10,2);default:0"`
	BundlePrice     float64 `json:"bundlePrice" gorm:"type:decimal(10,2);default:0"`
	DiscountPercent float64 `json:"discountPercent" gorm:"type:decimal(5,2);default:0"`
	SizePricing     JSONB   `json:"sizePricing,omitempty" gorm:"type:jsonb"`
	Variants        JSONB   `json:"variants,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CatalogRef is the product/bundle reference shape supplied by the catalog
// resolver. Pricing falls back to it when an item carries no price snapshot.
type CatalogRef struct {
	Price           float64            `json:"price"`
	BundlePrice     float64            `json:"bundlePrice"`
	DiscountPercent float64            `json:"discount"`
	SizePricing     map[string]float64 `json:"sizePricing,omitempty"`
	Variants        []SizeVariant      `json:"variants,omitempty"`
}

// SizeVariant is a single size/price pair in a catalog variant list
type SizeVariant struct {
	Size  string  `json:"size"`
	Price float64 `json:"price"`
}

// RefundSummaryStatus represents the state of a refund audit-trail entry
type RefundSummaryStatus string

const (
	RefundSummaryPending   RefundSummaryStatus = "Pending"
	RefundSummaryApproved  RefundSummaryStatus = "Approved"
	RefundSummaryCompleted RefundSummaryStatus = "Completed"
)

// RefundSummaryEntry is an audit-trail line recorded directly on the order.
// Some refunds are written here rather than through the cancellation ledger,
// so the reconciliation view reads it as an independent source of truth.
type RefundSummaryEntry struct {
	ID      uuid.UUID           `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrderID uuid.UUID           `json:"orderId" gorm:"type:uuid;not null;index:idx_refund_summary_order"`
	ItemID  uuid.UUID           `json:"itemId" gorm:"type:uuid;not null"`
	Status  RefundSummaryStatus `json:"status" gorm:"type:varchar(20);not null;default:'Pending'"`
	Amount  float64             `json:"amount" gorm:"type:decimal(10,2);not null"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for RefundSummaryEntry
func (RefundSummaryEntry) TableName() string {
	return "order_refund_summary"
}

// IsSettled reports whether the entry represents money the customer has been
// promised or paid
func (e RefundSummaryEntry) IsSettled() bool {
	return e.Status == RefundSummaryApproved || e.Status == RefundSummaryCompleted
}

// OrderTimeline represents timeline events for an order
type OrderTimeline struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrderID     uuid.UUID `json:"orderId" gorm:"type:uuid;not null"`
	Event       string    `json:"event" gorm:"not null"`
	Description string    `json:"description" gorm:"not null"`
	Timestamp   time.Time `json:"timestamp" gorm:"not null"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BeforeCreate hook to generate order number
func (o *Order) BeforeCreate(tx *gorm.DB) (err error) {
	if o.OrderNumber == "" {
		o.OrderNumber = generateOrderNumber()
	}
	return
}

// generateOrderNumber creates a unique order number
func generateOrderNumber() string {
	timestamp := time.Now().Unix()
	return fmt.Sprintf("ORD-%d", timestamp)
}

// ItemByID returns the order item with the given ID, or nil
func (o *Order) ItemByID(id uuid.UUID) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i]
		}
	}
	return nil
}

// ItemSubtotal sums the stored line totals of all items, falling back to
// unit price times quantity when no total was persisted
func (o *Order) ItemSubtotal() float64 {
	total := 0.0
	for _, item := range o.Items {
		if item.ItemTotal > 0 {
			total += item.ItemTotal
			continue
		}
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}

// DisplayName returns a human-readable name for the order status
func (s OrderStatus) DisplayName() string {
	switch s {
	case OrderStatusPlaced:
		return "Order Placed"
	case OrderStatusProcessing:
		return "Processing"
	case OrderStatusOutForDelivery:
		return "Out for Delivery"
	case OrderStatusDelivered:
		return "Delivered"
	case OrderStatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}
