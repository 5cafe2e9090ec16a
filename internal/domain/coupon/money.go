package coupon

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// PercentageDiscount returns amount * pct / 100 rounded half-up to cents.
// Non-positive amounts yield zero.
func PercentageDiscount(amount, pct decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return zero
	}
	return Round(amount.Mul(pct).Div(hundred))
}

// FixedDiscount returns fixed, never more than amount.
// Non-positive amounts yield zero.
func FixedDiscount(amount, fixed decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return zero
	}
	return decimal.Min(fixed, amount)
}

// CapDiscount limits discount to maxCap when a cap is set.
func CapDiscount(discount decimal.Decimal, maxCap *decimal.Decimal) decimal.Decimal {
	if maxCap == nil {
		return discount
	}
	return decimal.Min(discount, *maxCap)
}

// ClampNonNegative returns total - discount, floored at zero.
func ClampNonNegative(total, discount decimal.Decimal) decimal.Decimal {
	return floorAtZero(total.Sub(discount))
}

// Round rounds half-up to 2 fractional digits.
func Round(d decimal.Decimal) decimal.Decimal {
	// Round is half away from zero, which is half-up for the
	// non-negative amounts used here.
	return d.Round(2)
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}

// discountFor applies a coupon level percentage or fixed rule to amount.
func discountFor(t DiscountType, value, amount decimal.Decimal) decimal.Decimal {
	if t == DiscountPercentage {
		return PercentageDiscount(amount, value)
	}
	return FixedDiscount(amount, value)
}
