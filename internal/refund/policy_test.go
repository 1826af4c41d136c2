package refund

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"aftersale-service/internal/models"
)

func timePtr(t time.Time) *time.Time { return &t }

func floatPtr(f float64) *float64 { return &f }

func freshOrder(total float64) *models.Order {
	now := time.Now()
	return &models.Order{
		ID:        uuid.New(),
		Status:    models.OrderStatusProcessing,
		Total:     total,
		OrderDate: now,
	}
}

func TestComputeRefund_NoPenalties(t *testing.T) {
	e := NewEngine(nil, nil)
	order := freshOrder(1000)

	result, err := e.ComputeRefund(order, RequestContext{RequestedAt: order.OrderDate.Add(time.Hour)}, nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, 75.0, result.Percentage)
	assert.Equal(t, 750.0, result.RefundAmount)
	assert.Equal(t, 250.0, result.RetainedAmount)
	assert.Empty(t, result.Penalties)
}

func TestComputeRefund_DeliveredPenalty(t *testing.T) {
	e := NewEngine(nil, nil)
	order := freshOrder(1000)
	order.Status = models.OrderStatusDelivered

	result, err := e.ComputeRefund(order, RequestContext{RequestedAt: order.OrderDate.Add(time.Hour)}, nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, 50.0, result.Percentage)
	assert.Len(t, result.Penalties, 1)
}

func TestComputeRefund_PastEstimatedDelivery(t *testing.T) {
	e := NewEngine(nil, nil)
	order := freshOrder(1000)
	order.EstimatedDelivery = timePtr(order.OrderDate.Add(24 * time.Hour))

	result, err := e.ComputeRefund(order, RequestContext{RequestedAt: order.OrderDate.Add(48 * time.Hour)}, nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, 60.0, result.Percentage)
}

func TestComputeRefund_DeliveryAgeBracketsAreExclusive(t *testing.T) {
	e := NewEngine(nil, nil)

	cases := []struct {
		name        string
		daysAgo     float64
		wantPenalty float64
	}{
		{"within a week", 3, 20},
		{"within a month", 10, 30},
		{"beyond a month", 45, 25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requestedAt := time.Now()
			order := freshOrder(1000)
			order.OrderDate = requestedAt.Add(-time.Hour)
			order.ActualDelivery = timePtr(requestedAt.Add(-time.Duration(tc.daysAgo*24) * time.Hour))

			result, err := e.ComputeRefund(order, RequestContext{RequestedAt: requestedAt}, nil, nil)

			assert.NoError(t, err)
			assert.Len(t, result.Penalties, 1)
			assert.Equal(t, tc.wantPenalty, result.Penalties[0].Points)
		})
	}
}

func TestComputeRefund_AgedOrderPenalty(t *testing.T) {
	e := NewEngine(nil, nil)
	requestedAt := time.Now()
	order := freshOrder(1000)
	order.OrderDate = requestedAt.Add(-10 * 24 * time.Hour)

	result, err := e.ComputeRefund(order, RequestContext{RequestedAt: requestedAt}, nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, 60.0, result.Percentage)
}

// An order delivered 10 days before the request: base 75 minus 25 for the
// delivered status minus 30 for the within-a-month bracket minus 15 for the
// aged order lands below the floor and clamps to 25.
func TestComputeRefund_ClampsToMinimum(t *testing.T) {
	e := NewEngine(nil, nil)
	requestedAt := time.Now()
	order := freshOrder(1000)
	order.Status = models.OrderStatusDelivered
	order.OrderDate = requestedAt.Add(-12 * 24 * time.Hour)
	order.ActualDelivery = timePtr(requestedAt.Add(-10 * 24 * time.Hour))

	result, err := e.ComputeRefund(order, RequestContext{RequestedAt: requestedAt}, nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, 25.0, result.Percentage)
	assert.Equal(t, 250.0, result.RefundAmount)
	assert.Equal(t, 750.0, result.RetainedAmount)
}

func TestComputeRefund_OverrideReplacesBase(t *testing.T) {
	e := NewEngine(nil, nil)
	order := freshOrder(500)

	result, err := e.ComputeRefund(order, RequestContext{RequestedAt: order.OrderDate.Add(time.Hour)}, floatPtr(90), nil)

	assert.NoError(t, err)
	assert.Equal(t, 90.0, result.Percentage)
	assert.Equal(t, 450.0, result.RefundAmount)
}

func TestComputeRefund_OverrideOutOfRange(t *testing.T) {
	e := NewEngine(nil, nil)
	order := freshOrder(500)

	_, err := e.ComputeRefund(order, RequestContext{RequestedAt: order.OrderDate}, floatPtr(120), nil)

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestComputeRefund_AmountsSumToOriginal(t *testing.T) {
	e := NewEngine(nil, nil)
	order := freshOrder(333.33)

	result, err := e.ComputeRefund(order, RequestContext{RequestedAt: order.OrderDate.Add(time.Hour)}, nil, nil)

	assert.NoError(t, err)
	assert.InDelta(t, order.Total, result.RefundAmount+result.RetainedAmount, AmountTolerance)
}

func TestComputeItemsRefund_AppliesPercentageToSelectedLines(t *testing.T) {
	e := NewEngine(nil, nil)
	itemA := models.OrderItem{ID: uuid.New(), Name: "Shirt", Quantity: 2, UnitPrice: 100}
	itemB := models.OrderItem{ID: uuid.New(), Name: "Jeans", Quantity: 1, UnitPrice: 300}
	order := freshOrder(550)
	order.Items = []models.OrderItem{itemA, itemB}

	result, lines, err := e.ComputeItemsRefund(order, []uuid.UUID{itemA.ID}, RequestContext{RequestedAt: order.OrderDate.Add(time.Hour)}, nil, nil)

	assert.NoError(t, err)
	assert.Len(t, lines, 1)
	assert.Equal(t, itemA.ID, lines[0].ItemID)
	assert.Equal(t, 200.0, lines[0].LineTotal)
	assert.Equal(t, 150.0, lines[0].RefundAmount)
	assert.Equal(t, 150.0, result.RefundAmount)
	assert.Equal(t, 50.0, result.RetainedAmount)
}

func TestReturnLineRefund_DefaultRate(t *testing.T) {
	e := NewEngine(nil, nil)

	refund, retention := e.ReturnLineRefund(200, nil)

	assert.Equal(t, 180.0, refund)
	assert.Equal(t, 20.0, retention)
}

func TestReturnLineRefund_AlternateRate(t *testing.T) {
	e := NewEngine(nil, nil)
	settings := models.DefaultRefundPolicySettings("tenant-1")
	settings.UseAlternateReturnRate = true

	refund, retention := e.ReturnLineRefund(200, settings)

	assert.Equal(t, 130.0, refund)
	assert.Equal(t, 70.0, retention)
}

func TestValidate_ReportsAllViolations(t *testing.T) {
	err := Validate(&RefundResult{
		Percentage:     130,
		RefundAmount:   900,
		RetainedAmount: 0,
	}, 500)

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 3)
}

func TestValidate_AcceptsWithinTolerance(t *testing.T) {
	err := Validate(&RefundResult{
		Percentage:     50,
		RefundAmount:   250.004,
		RetainedAmount: 250.0,
	}, 500)

	assert.NoError(t, err)
}
