package pricing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"aftersale-service/internal/models"
)

func TestResolveLineAmount_SizeAdjustedPriceWins(t *testing.T) {
	r := NewResolver(nil)
	item := models.OrderItem{
		ID:                uuid.New(),
		Quantity:          2,
		UnitPrice:         100,
		SizeAdjustedPrice: 110,
		BasePrice:         90,
	}

	amount := r.ResolveLineAmount(item, &models.CatalogRef{Price: 500})

	assert.Equal(t, 110.0, amount.UnitPrice)
	assert.Equal(t, 220.0, amount.Total)
}

func TestResolveLineAmount_UnitPriceBeforeItemTotal(t *testing.T) {
	r := NewResolver(nil)
	item := models.OrderItem{
		Quantity:  3,
		UnitPrice: 50,
		ItemTotal: 999,
	}

	amount := r.ResolveLineAmount(item, nil)

	assert.Equal(t, 50.0, amount.UnitPrice)
	assert.Equal(t, 150.0, amount.Total)
}

func TestResolveLineAmount_ItemTotalDerivesUnitPrice(t *testing.T) {
	r := NewResolver(nil)
	item := models.OrderItem{
		Quantity:  4,
		ItemTotal: 200,
	}

	amount := r.ResolveLineAmount(item, nil)

	assert.Equal(t, 50.0, amount.UnitPrice)
	assert.Equal(t, 200.0, amount.Total)
}

func TestResolveLineAmount_BundleUsesBundlePriceAndDiscount(t *testing.T) {
	r := NewResolver(nil)
	item := models.OrderItem{
		ItemType: models.ItemTypeBundle,
		Quantity: 1,
	}
	ref := &models.CatalogRef{
		Price:           1000,
		BundlePrice:     800,
		DiscountPercent: 10,
	}

	amount := r.ResolveLineAmount(item, ref)

	assert.Equal(t, 720.0, amount.UnitPrice)
	assert.Equal(t, 720.0, amount.Total)
}

func TestResolveLineAmount_BundleFallsBackToPlainPrice(t *testing.T) {
	r := NewResolver(nil)
	item := models.OrderItem{
		ItemType: models.ItemTypeBundle,
		Quantity: 2,
	}
	ref := &models.CatalogRef{Price: 300}

	amount := r.ResolveLineAmount(item, ref)

	assert.Equal(t, 300.0, amount.UnitPrice)
	assert.Equal(t, 600.0, amount.Total)
}

func TestResolveLineAmount_SizePricingMapWins(t *testing.T) {
	r := NewResolver(nil)
	item := models.OrderItem{
		ItemType: models.ItemTypeProduct,
		Size:     "XL",
		Quantity: 1,
	}
	ref := &models.CatalogRef{
		Price:       100,
		SizePricing: map[string]float64{"XL": 140},
		Variants:    []models.SizeVariant{{Size: "XL", Price: 999}},
	}

	amount := r.ResolveLineAmount(item, ref)

	assert.Equal(t, 140.0, amount.UnitPrice)
}

func TestResolveLineAmount_SizePricingCaseInsensitive(t *testing.T) {
	r := NewResolver(nil)
	item := models.OrderItem{
		ItemType: models.ItemTypeProduct,
		Size:     "xl",
		Quantity: 1,
	}
	ref := &models.CatalogRef{
		Price:       100,
		SizePricing: map[string]float64{"XL": 140},
	}

	amount := r.ResolveLineAmount(item, ref)

	assert.Equal(t, 140.0, amount.UnitPrice)
}

func TestResolveLineAmount_VariantListMatch(t *testing.T) {
	r := NewResolver(nil)
	item := models.OrderItem{
		ItemType: models.ItemTypeProduct,
		Size:     "m",
		Quantity: 2,
	}
	ref := &models.CatalogRef{
		Price:    100,
		Variants: []models.SizeVariant{{Size: "M", Price: 120}},
	}

	amount := r.ResolveLineAmount(item, ref)

	assert.Equal(t, 120.0, amount.UnitPrice)
	assert.Equal(t, 240.0, amount.Total)
}

func TestResolveLineAmount_SizeMultiplierTable(t *testing.T) {
	r := NewResolver(nil)

	cases := []struct {
		size string
		want float64
	}{
		{"XS", 90},
		{"S", 95},
		{"M", 100},
		{"L", 110},
		{"XL", 125},
		{"XXL", 140},
		{"28", 90},
		{"30", 100},
		{"42", 160},
		{"", 100},
		{"UNKNOWN", 100},
	}
	for _, tc := range cases {
		item := models.OrderItem{
			ItemType: models.ItemTypeProduct,
			Size:     tc.size,
			Quantity: 1,
		}
		amount := r.ResolveLineAmount(item, &models.CatalogRef{Price: 100})
		assert.Equal(t, tc.want, amount.UnitPrice, "size %q", tc.size)
	}
}

func TestResolveLineAmount_DiscountAppliedToSizedPrice(t *testing.T) {
	r := NewResolver(nil)
	item := models.OrderItem{
		ItemType: models.ItemTypeProduct,
		Size:     "L",
		Quantity: 1,
	}
	ref := &models.CatalogRef{Price: 100, DiscountPercent: 20}

	amount := r.ResolveLineAmount(item, ref)

	assert.Equal(t, 88.0, amount.UnitPrice)
}

func TestResolveLineAmount_SnapshotColumnsWhenNoRef(t *testing.T) {
	r := NewResolver(nil)
	item := models.OrderItem{
		ItemType:        models.ItemTypeProduct,
		Size:            "M",
		Quantity:        2,
		BasePrice:       50,
		DiscountPercent: 10,
		SizePricing:     models.JSONB(`{"M": 60}`),
	}

	amount := r.ResolveLineAmount(item, nil)

	assert.Equal(t, 54.0, amount.UnitPrice)
	assert.Equal(t, 108.0, amount.Total)
}

func TestResolveLineAmount_BadSnapshotDegradesToZero(t *testing.T) {
	r := NewResolver(nil)
	item := models.OrderItem{
		ItemType:    models.ItemTypeProduct,
		Size:        "M",
		Quantity:    2,
		ItemTotal:   0,
		BasePrice:   0,
		SizePricing: models.JSONB(`not valid json`),
	}

	amount := r.ResolveLineAmount(item, nil)

	assert.Equal(t, 0.0, amount.Total)
}

func TestResolveLineAmount_ZeroEverythingNeverPanics(t *testing.T) {
	r := NewResolver(nil)

	assert.NotPanics(t, func() {
		amount := r.ResolveLineAmount(models.OrderItem{}, nil)
		assert.Equal(t, 0.0, amount.UnitPrice)
		assert.Equal(t, 0.0, amount.Total)
	})
}
