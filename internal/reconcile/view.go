package reconcile

import (
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"aftersale-service/internal/models"
	"aftersale-service/internal/pricing"
)

// Split applied to cancelled value when no explicit refund figure was
// recorded: the customer gets the refund share, the merchant keeps the rest
const (
	refundShare    = 0.9
	retentionShare = 0.1
)

// ActiveOrderView is the derived, non-persisted summary of what remains
// live on an order after cancellations and returns. It is recomputed from
// the ledgers on every request; nothing here is stored.
type ActiveOrderView struct {
	OrderID           uuid.UUID          `json:"orderId"`
	ActiveItems       []models.OrderItem `json:"activeItems"`
	ActiveItemCount   int                `json:"activeItemCount"`
	RemainingSubtotal float64            `json:"remainingSubtotal"`
	RemainingTotal    float64            `json:"remainingTotal"`
	DeliveryCharge    float64            `json:"deliveryCharge"`
	HasCancelledItems bool               `json:"hasCancelledItems"`
	HasReturnedItems  bool               `json:"hasReturnedItems"`
	IsFullyCancelled  bool               `json:"isFullyCancelled"`
	RefundAmount      float64            `json:"refundAmount"`
	RetentionFee      float64            `json:"retentionFee"`

	// Degraded is set when ledger data could not be fully resolved and the
	// view fell back to the order's stored totals
	Degraded bool `json:"degraded,omitempty"`
}

// Builder merges an order with its cancellation and return ledgers into a
// single consistent view. It holds no mutable state and is safe for
// concurrent use; building the same snapshot twice yields identical output.
type Builder struct {
	pricer *pricing.Resolver
	log    *logrus.Entry
}

// NewBuilder creates a reconciliation view builder
func NewBuilder(pricer *pricing.Resolver, logger *logrus.Logger) *Builder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if pricer == nil {
		pricer = pricing.NewResolver(logger)
	}
	return &Builder{
		pricer: pricer,
		log:    logger.WithField("component", "reconcile"),
	}
}

// BuildActiveView produces the active view of an order given its ledgers.
// It never returns an error: any failure while merging degrades to the
// order's stored totals with the Degraded flag set, since financial read
// paths must keep rendering even on malformed data.
func (b *Builder) BuildActiveView(order *models.Order, cancellations []models.CancellationRequest, returns []models.ReturnRequest) (view *ActiveOrderView) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(logrus.Fields{
				"order_id": order.ID,
				"panic":    r,
			}).Error("reconciliation failed, degrading to stored totals")
			view = b.storedTotalsView(order)
			view.Degraded = true
		}
	}()

	if order.Status == models.OrderStatusCancelled {
		return b.fullyCancelledView(order, cancellations)
	}

	cancelled := cancelledItemIDs(order, cancellations)
	returned := returnedItemIDs(order, returns)

	// Common case, nothing removed: hand back the stored totals untouched
	if len(cancelled) == 0 && len(returned) == 0 {
		return b.storedTotalsView(order)
	}

	view = &ActiveOrderView{
		OrderID:           order.ID,
		ActiveItems:       []models.OrderItem{},
		HasCancelledItems: len(cancelled) > 0,
		HasReturnedItems:  len(returned) > 0,
	}

	// Stored subtotals reflect the original full item set; once anything is
	// removed the remaining amounts must be re-derived per line
	remainingSubtotal := 0.0
	allCancelled := true
	for _, item := range order.Items {
		if !cancelled[item.ID] {
			allCancelled = false
		}
		if cancelled[item.ID] || returned[item.ID] {
			continue
		}
		amount := b.pricer.ResolveLineAmount(item, nil)
		remainingSubtotal += amount.Total
		view.ActiveItems = append(view.ActiveItems, item)
		view.ActiveItemCount += item.Quantity
	}
	view.RemainingSubtotal = round2(remainingSubtotal)
	view.IsFullyCancelled = allCancelled

	deliveryWaived := allCancelled ||
		(len(order.Items) == 1 && cancelled[order.Items[0].ID])
	if deliveryWaived {
		view.DeliveryCharge = 0
		view.RemainingTotal = view.RemainingSubtotal
	} else {
		view.DeliveryCharge = order.DeliveryCharge
		view.RemainingTotal = round2(view.RemainingSubtotal + order.DeliveryCharge)
	}

	removedValue := originalSubtotal(b.pricer, order) - view.RemainingSubtotal
	if removedValue < 0 {
		removedValue = 0
	}
	if explicit := explicitRefundAmount(order, cancellations); explicit > 0 {
		view.RefundAmount = round2(explicit)
	} else {
		refund := removedValue * refundShare
		if deliveryWaived {
			refund += order.DeliveryCharge
		}
		view.RefundAmount = round2(refund)
	}
	view.RetentionFee = round2(removedValue * retentionShare)

	return view
}

// fullyCancelledView is the short-circuit for an order whose status is
// CANCELLED outright: nothing is active and the delivery charge is refunded
// in full alongside the refund share of the item subtotal.
func (b *Builder) fullyCancelledView(order *models.Order, cancellations []models.CancellationRequest) *ActiveOrderView {
	subtotal := originalSubtotal(b.pricer, order)

	view := &ActiveOrderView{
		OrderID:           order.ID,
		ActiveItems:       []models.OrderItem{},
		HasCancelledItems: true,
		IsFullyCancelled:  true,
		RetentionFee:      round2(subtotal * retentionShare),
	}
	if explicit := explicitRefundAmount(order, cancellations); explicit > 0 {
		view.RefundAmount = round2(explicit)
	} else {
		view.RefundAmount = round2(subtotal*refundShare + order.DeliveryCharge)
	}
	return view
}

// storedTotalsView mirrors the order's persisted figures without consulting
// the ledgers
func (b *Builder) storedTotalsView(order *models.Order) *ActiveOrderView {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	return &ActiveOrderView{
		OrderID:           order.ID,
		ActiveItems:       order.Items,
		ActiveItemCount:   count,
		RemainingSubtotal: order.Subtotal,
		RemainingTotal:    order.Total,
		DeliveryCharge:    order.DeliveryCharge,
	}
}

// cancelledItemIDs unions the three independent sources of cancelled items:
// the order's own embedded annotation, approved cancellation requests, and
// settled refund-summary entries. Product history left all three in play,
// so none of them alone is authoritative.
func cancelledItemIDs(order *models.Order, cancellations []models.CancellationRequest) map[uuid.UUID]bool {
	cancelled := make(map[uuid.UUID]bool)

	for _, id := range order.CancelledItemIDs {
		cancelled[id] = true
	}

	for i := range cancellations {
		req := &cancellations[i]
		if req.Status != models.CancellationStatusApproved {
			continue
		}
		if req.IsFullOrder() {
			for _, item := range order.Items {
				cancelled[item.ID] = true
			}
			continue
		}
		for _, id := range req.ItemIDs {
			cancelled[id] = true
		}
	}

	for _, entry := range order.RefundSummary {
		if entry.IsSettled() {
			cancelled[entry.ItemID] = true
		}
	}

	return cancelled
}

func returnedItemIDs(order *models.Order, returns []models.ReturnRequest) map[uuid.UUID]bool {
	returned := make(map[uuid.UUID]bool)
	for _, item := range order.Items {
		if models.ItemReturned(item.ID, returns) {
			returned[item.ID] = true
		}
	}
	return returned
}

// explicitRefundAmount sums refund figures an admin actually recorded,
// across approved cancellation requests and settled refund-summary entries.
// A recorded figure always beats a freshly computed one.
func explicitRefundAmount(order *models.Order, cancellations []models.CancellationRequest) float64 {
	total := 0.0
	for i := range cancellations {
		if cancellations[i].HasExplicitRefund() {
			total += cancellations[i].RefundAmount
		}
	}
	for _, entry := range order.RefundSummary {
		if entry.IsSettled() {
			total += entry.Amount
		}
	}
	return total
}

// originalSubtotal prefers the order's stored subtotal and falls back to
// re-deriving it per line when the stored figure is missing
func originalSubtotal(pricer *pricing.Resolver, order *models.Order) float64 {
	if order.Subtotal > 0 {
		return order.Subtotal
	}
	sum := 0.0
	for _, item := range order.Items {
		sum += pricer.ResolveLineAmount(item, nil).Total
	}
	return round2(sum)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
