package pricing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"aftersale-service/internal/models"
)

// LineAmount is the resolved price of a single order line
type LineAmount struct {
	UnitPrice float64 `json:"unitPrice"`
	Total     float64 `json:"total"`
}

// Letter-size multipliers applied to a base price when the catalog carries
// neither a size price map nor a variant list
var sizeMultipliers = map[string]float64{
	"XS":  0.9,
	"S":   0.95,
	"M":   1.0,
	"L":   1.1,
	"XL":  1.25,
	"XXL": 1.4,
}

// Numeric waist sizes 28..42 map linearly onto 0.9..1.6
const (
	waistMin           = 28
	waistMax           = 42
	waistMinMultiplier = 0.9
	waistStep          = 0.05
)

// Resolver computes line amounts for order items. It never returns an error:
// pricing sits on read paths and a malformed catalog reference must degrade
// to the stored totals rather than break a page render.
type Resolver struct {
	log *logrus.Entry
}

// NewResolver creates a pricing resolver
func NewResolver(logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{log: logger.WithField("component", "pricing")}
}

// ResolveLineAmount resolves the unit price and total for an order line.
//
// Priority, first match wins:
//  1. persisted size-adjusted or unit price on the item (the price actually
//     charged; never overridden by the current catalog)
//  2. persisted item total divided by quantity
//  3. recomputed from the catalog reference (bundle discount, size price
//     map, variant list, or size-multiplier table)
func (r *Resolver) ResolveLineAmount(item models.OrderItem, ref *models.CatalogRef) (amount LineAmount) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithFields(logrus.Fields{
				"itemId": item.ID,
				"panic":  rec,
			}).Error("pricing resolution failed, falling back to stored totals")
			amount = fallbackAmount(item)
		}
	}()

	qty := float64(item.Quantity)

	if item.SizeAdjustedPrice > 0 {
		return LineAmount{UnitPrice: item.SizeAdjustedPrice, Total: item.SizeAdjustedPrice * qty}
	}
	if item.UnitPrice > 0 {
		return LineAmount{UnitPrice: item.UnitPrice, Total: item.UnitPrice * qty}
	}

	if item.ItemTotal > 0 && item.Quantity > 0 {
		unit := item.ItemTotal / qty
		return LineAmount{UnitPrice: unit, Total: item.ItemTotal}
	}

	if ref == nil {
		ref = snapshotRef(item)
	}

	var unit float64
	if item.ItemType == models.ItemTypeBundle {
		unit = bundleUnitPrice(ref)
	} else {
		unit = productUnitPrice(item.Size, ref)
	}

	if unit <= 0 {
		return fallbackAmount(item)
	}
	return LineAmount{UnitPrice: round2(unit), Total: round2(unit * qty)}
}

// bundleUnitPrice prices a bundle line: bundle price (or plain price) with
// the discount applied
func bundleUnitPrice(ref *models.CatalogRef) float64 {
	price := ref.BundlePrice
	if price <= 0 {
		price = ref.Price
	}
	return applyDiscount(price, ref.DiscountPercent)
}

// productUnitPrice prices a sized product line. An explicit size price map
// wins, then a variant list match on the size token, then the fixed
// size-multiplier tables applied to the base price.
func productUnitPrice(size string, ref *models.CatalogRef) float64 {
	token := strings.TrimSpace(size)

	if len(ref.SizePricing) > 0 && token != "" {
		if price, ok := ref.SizePricing[token]; ok && price > 0 {
			return applyDiscount(price, ref.DiscountPercent)
		}
		for k, price := range ref.SizePricing {
			if strings.EqualFold(k, token) && price > 0 {
				return applyDiscount(price, ref.DiscountPercent)
			}
		}
	}

	if len(ref.Variants) > 0 && token != "" {
		for _, v := range ref.Variants {
			if strings.EqualFold(strings.TrimSpace(v.Size), token) && v.Price > 0 {
				return applyDiscount(v.Price, ref.DiscountPercent)
			}
		}
	}

	return applyDiscount(ref.Price*sizeMultiplier(token), ref.DiscountPercent)
}

// sizeMultiplier resolves the fixed multiplier for a size token. Unknown
// tokens (including blank) price at the base rate.
func sizeMultiplier(token string) float64 {
	if token == "" {
		return 1.0
	}
	if m, ok := sizeMultipliers[strings.ToUpper(token)]; ok {
		return m
	}
	if waist, err := strconv.Atoi(token); err == nil && waist >= waistMin && waist <= waistMax {
		return waistMinMultiplier + float64(waist-waistMin)*waistStep
	}
	return 1.0
}

func applyDiscount(price, discountPercent float64) float64 {
	if price <= 0 {
		return 0
	}
	if discountPercent <= 0 || discountPercent > 100 {
		return price
	}
	return price * (1 - discountPercent/100)
}

// fallbackAmount degrades to the item's stored totals, defaulting to zero
func fallbackAmount(item models.OrderItem) LineAmount {
	qty := float64(item.Quantity)
	if item.ItemTotal > 0 {
		unit := 0.0
		if item.Quantity > 0 {
			unit = item.ItemTotal / qty
		}
		return LineAmount{UnitPrice: unit, Total: item.ItemTotal}
	}
	if item.BasePrice > 0 && item.Quantity > 0 {
		return LineAmount{UnitPrice: item.BasePrice, Total: item.BasePrice * qty}
	}
	return LineAmount{}
}

// snapshotRef rebuilds a catalog reference from the catalog columns captured
// on the item at ingestion
func snapshotRef(item models.OrderItem) *models.CatalogRef {
	ref := &models.CatalogRef{
		Price:           item.BasePrice,
		BundlePrice:     item.BundlePrice,
		DiscountPercent: item.DiscountPercent,
	}
	if len(item.SizePricing) > 0 {
		_ = json.Unmarshal(item.SizePricing, &ref.SizePricing)
	}
	if len(item.Variants) > 0 {
		_ = json.Unmarshal(item.Variants, &ref.Variants)
	}
	return ref
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
