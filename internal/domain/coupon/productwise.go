package coupon

import "github.com/shopspring/decimal"

type productWiseStrategy struct {
	rule *ProductWiseRule
}

func (s productWiseStrategy) evaluate(c *Coupon, cart *Cart) outcome {
	if !s.applicable(cart) {
		return outcome{
			message: "No applicable products found in cart or minimum quantity requirement not met",
		}
	}

	lines := make([]decimal.Decimal, len(cart.Lines))
	perProduct := make(map[int64]decimal.Decimal)
	for i, l := range cart.Lines {
		lines[i] = zero
		if !s.rule.ProductIDs.Contains(l.ProductID) {
			continue
		}
		// Per line, unlike the summed applicability threshold.
		if s.rule.MinQuantity != nil && l.Quantity < *s.rule.MinQuantity {
			continue
		}

		eligible := l.Quantity
		if s.rule.MaxQuantity != nil {
			eligible = min(eligible, *s.rule.MaxQuantity)
		}
		amount := l.UnitPrice.Mul(decimal.NewFromInt(int64(eligible)))

		lines[i] = discountFor(c.DiscountType, c.DiscountValue, amount)
		perProduct[l.ProductID] = perProduct[l.ProductID].Add(lines[i])
	}

	total := sum(lines)
	return outcome{
		applicable: true,
		message:    "Coupon applicable to eligible products",
		total:      total,
		lines:      lines,
		breakdown: Breakdown{
			CartTotal:          cart.Total,
			DiscountAmount:     total,
			DiscountPercentage: percentageOf(c),
			ProductDiscounts:   perProduct,
		},
	}
}

// applicable reports whether some cart line carries a listed product and, when
// a minimum quantity is set, whether the quantity of at least one listed
// product summed over all its lines reaches it.
func (s productWiseStrategy) applicable(cart *Cart) bool {
	quantities := make(map[int64]int)
	for _, l := range cart.Lines {
		if s.rule.ProductIDs.Contains(l.ProductID) {
			quantities[l.ProductID] += l.Quantity
		}
	}
	if len(quantities) == 0 {
		return false
	}
	if s.rule.MinQuantity == nil {
		return true
	}
	for _, qty := range quantities {
		if qty >= *s.rule.MinQuantity {
			return true
		}
	}
	return false
}
