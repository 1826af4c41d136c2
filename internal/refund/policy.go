package refund

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"aftersale-service/internal/models"
	"aftersale-service/internal/pricing"
)

// Refund percentage defaults and penalty points. Penalties are additive
// deductions from the base percentage; the final percentage is clamped to
// [MinRefundPercentage, MaxRefundPercentage].
const (
	DefaultBasePercentage = 75.0
	MinRefundPercentage   = 25.0
	MaxRefundPercentage   = 100.0

	penaltyDelivered     = 25.0
	penaltyPastEstimate  = 15.0
	penaltyWithinWeek    = 20.0
	penaltyWithinMonth   = 30.0
	penaltyAfterMonth    = 25.0
	penaltyAgedOrder     = 15.0

	agedOrderDays = 7
)

// AmountTolerance is the allowed rounding slack when checking that refund
// plus retained equals the original amount
const AmountTolerance = 0.01

// Penalty is one itemized deduction with its human-readable reason
type Penalty struct {
	Points float64 `json:"points"`
	Reason string  `json:"reason"`
}

// RefundResult is the outcome of a refund computation
type RefundResult struct {
	Percentage     float64   `json:"percentage"`
	RefundAmount   float64   `json:"refundAmount"`
	RetainedAmount float64   `json:"retainedAmount"`
	Penalties      []Penalty `json:"penalties"`
}

// ItemRefund is one line of a partial (itemized) refund computation
type ItemRefund struct {
	ItemID       uuid.UUID `json:"itemId"`
	Name         string    `json:"name"`
	LineTotal    float64   `json:"lineTotal"`
	RefundAmount float64   `json:"refundAmount"`
}

// RequestContext carries the request-side inputs to the policy: when the
// cancellation or return was asked for
type RequestContext struct {
	RequestedAt time.Time
}

// ValidationError reports violated refund invariants. It blocks an approval;
// amounts are never silently clamped into validity.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("refund validation failed: %s", strings.Join(e.Violations, "; "))
}

// Engine converts order and request context into a refund percentage and
// amount. It is a pure computation over the supplied snapshot and is safe
// for concurrent use.
type Engine struct {
	pricer *pricing.Resolver
	log    *logrus.Entry
}

// NewEngine creates a refund policy engine
func NewEngine(pricer *pricing.Resolver, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if pricer == nil {
		pricer = pricing.NewResolver(logger)
	}
	return &Engine{
		pricer: pricer,
		log:    logger.WithField("component", "refund-policy"),
	}
}

// ComputeRefund computes the refund for cancelling the whole order.
// The base percentage is the override when supplied, otherwise the policy
// default; penalties are deducted and the result clamped to the policy
// bounds. The returned amounts always satisfy the refund invariants; an
// error is returned only when the override itself is out of range.
func (e *Engine) ComputeRefund(order *models.Order, ctx RequestContext, override *float64, settings *models.RefundPolicySettings) (*RefundResult, error) {
	settings = withDefaults(settings)

	base := settings.BasePercentage
	if override != nil {
		if *override < 0 || *override > 100 {
			return nil, &ValidationError{Violations: []string{
				fmt.Sprintf("override percentage %.2f is outside [0, 100]", *override),
			}}
		}
		base = *override
	}

	penalties := e.assessPenalties(order, ctx)
	percentage := base
	for _, p := range penalties {
		percentage -= p.Points
	}
	percentage = clamp(percentage, settings.MinPercentage, settings.MaxPercentage)

	result := &RefundResult{
		Percentage:     percentage,
		RefundAmount:   round2(order.Total * percentage / 100),
		RetainedAmount: 0,
		Penalties:      penalties,
	}
	result.RetainedAmount = round2(order.Total - result.RefundAmount)

	if err := Validate(result, order.Total); err != nil {
		return nil, err
	}
	return result, nil
}

// ComputeItemsRefund computes a partial refund covering only the named
// items. The percentage is derived exactly as in ComputeRefund but applied
// to the subtotal of those items, itemized per line.
func (e *Engine) ComputeItemsRefund(order *models.Order, itemIDs []uuid.UUID, ctx RequestContext, override *float64, settings *models.RefundPolicySettings) (*RefundResult, []ItemRefund, error) {
	settings = withDefaults(settings)

	base := settings.BasePercentage
	if override != nil {
		if *override < 0 || *override > 100 {
			return nil, nil, &ValidationError{Violations: []string{
				fmt.Sprintf("override percentage %.2f is outside [0, 100]", *override),
			}}
		}
		base = *override
	}

	penalties := e.assessPenalties(order, ctx)
	percentage := base
	for _, p := range penalties {
		percentage -= p.Points
	}
	percentage = clamp(percentage, settings.MinPercentage, settings.MaxPercentage)

	wanted := make(map[uuid.UUID]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}

	var lines []ItemRefund
	subtotal := 0.0
	for _, item := range order.Items {
		if !wanted[item.ID] {
			continue
		}
		amount := e.pricer.ResolveLineAmount(item, nil)
		lines = append(lines, ItemRefund{
			ItemID:       item.ID,
			Name:         item.Name,
			LineTotal:    amount.Total,
			RefundAmount: round2(amount.Total * percentage / 100),
		})
		subtotal += amount.Total
	}

	result := &RefundResult{
		Percentage:   percentage,
		RefundAmount: round2(subtotal * percentage / 100),
		Penalties:    penalties,
	}
	result.RetainedAmount = round2(subtotal - result.RefundAmount)

	if err := Validate(result, round2(subtotal)); err != nil {
		return nil, nil, err
	}
	return result, lines, nil
}

// ReturnLineRefund computes the flat-rate refund for a single returned
// item's line total, split into the refund and the retention fee
func (e *Engine) ReturnLineRefund(lineTotal float64, settings *models.RefundPolicySettings) (refund, retention float64) {
	settings = withDefaults(settings)
	rate := settings.EffectiveReturnRate()
	refund = round2(lineTotal * rate / 100)
	retention = round2(lineTotal - refund)
	return refund, retention
}

// Validate checks the refund invariants against the original amount.
// Violations are reported, never clamped away.
func Validate(result *RefundResult, originalAmount float64) error {
	var violations []string

	if result.Percentage < 0 || result.Percentage > 100 {
		violations = append(violations,
			fmt.Sprintf("percentage %.2f is outside [0, 100]", result.Percentage))
	}
	if result.RefundAmount > originalAmount+AmountTolerance {
		violations = append(violations,
			fmt.Sprintf("refund %.2f exceeds original amount %.2f", result.RefundAmount, originalAmount))
	}
	if diff := math.Abs(result.RefundAmount + result.RetainedAmount - originalAmount); diff > AmountTolerance {
		violations = append(violations,
			fmt.Sprintf("refund %.2f plus retained %.2f does not equal original %.2f",
				result.RefundAmount, result.RetainedAmount, originalAmount))
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// assessPenalties evaluates every penalty rule against the order and the
// request timestamp. The delivery-age brackets are mutually exclusive, most
// specific bracket wins; the order-age penalty applies independently.
func (e *Engine) assessPenalties(order *models.Order, ctx RequestContext) []Penalty {
	var penalties []Penalty

	if order.Status == models.OrderStatusDelivered {
		penalties = append(penalties, Penalty{
			Points: penaltyDelivered,
			Reason: "order has already been delivered",
		})
	}

	if order.EstimatedDelivery != nil && ctx.RequestedAt.After(*order.EstimatedDelivery) {
		penalties = append(penalties, Penalty{
			Points: penaltyPastEstimate,
			Reason: "request made after the estimated delivery date",
		})
	}

	if order.ActualDelivery != nil && ctx.RequestedAt.After(*order.ActualDelivery) {
		days := ctx.RequestedAt.Sub(*order.ActualDelivery).Hours() / 24
		switch {
		case days <= 7:
			penalties = append(penalties, Penalty{
				Points: penaltyWithinWeek,
				Reason: "request made within 7 days of delivery",
			})
		case days <= 30:
			penalties = append(penalties, Penalty{
				Points: penaltyWithinMonth,
				Reason: "request made within 30 days of delivery",
			})
		default:
			penalties = append(penalties, Penalty{
				Points: penaltyAfterMonth,
				Reason: "request made more than 30 days after delivery",
			})
		}
	}

	if ctx.RequestedAt.Sub(order.OrderDate).Hours()/24 > agedOrderDays {
		penalties = append(penalties, Penalty{
			Points: penaltyAgedOrder,
			Reason: "request made more than 7 days after order placement",
		})
	}

	return penalties
}

func withDefaults(settings *models.RefundPolicySettings) *models.RefundPolicySettings {
	if settings == nil {
		return models.DefaultRefundPolicySettings("")
	}
	return settings
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
