package coupon

import "github.com/shopspring/decimal"

// strategy evaluates one rule variant against a cart.
//
// Discounts in the outcome are raw: line discounts are never rounded by a
// strategy, only by the Engine when results are emitted.
type strategy interface {
	evaluate(c *Coupon, cart *Cart) outcome
}

// outcome is the raw result of a strategy.
type outcome struct {
	applicable bool
	message    string
	// total is the aggregate discount.
	total decimal.Decimal
	// lines holds the discount of every cart line, in cart order. It is nil
	// when the coupon is not applicable.
	lines     []decimal.Decimal
	breakdown Breakdown
}

// Breakdown explains how a discount was derived. Variant specific fields are
// left empty for other variants.
type Breakdown struct {
	CartTotal          decimal.Decimal
	DiscountAmount     decimal.Decimal
	DiscountPercentage *decimal.Decimal
	// ProductDiscounts maps product id to its discount (ProductWise).
	ProductDiscounts map[int64]decimal.Decimal
	// BxGy is set for buy-X-get-Y coupons.
	BxGy *BxGyBreakdown
}

// BxGyBreakdown reports the buy/get ratio and how often it was satisfied.
type BxGyBreakdown struct {
	BuyQuantity  int
	GetQuantity  int
	Applications int
}

func (r *CartWiseRule) strategy() strategy    { return cartWiseStrategy{rule: r} }
func (r *ProductWiseRule) strategy() strategy { return productWiseStrategy{rule: r} }
func (r *BxGyRule) strategy() strategy        { return bxgyStrategy{rule: r} }

// strategyFor returns the strategy of c's rule after checking the rule is
// well formed.
func strategyFor(c *Coupon) (strategy, error) {
	if c.Rule == nil {
		return nil, invalidCoupon("coupon %s has no rule", c.Code)
	}
	if err := c.Rule.validate(); err != nil {
		return nil, err
	}
	return c.Rule.strategy(), nil
}

// percentageOf returns the coupon's percentage when it is a percentage coupon.
func percentageOf(c *Coupon) *decimal.Decimal {
	if c.DiscountType != DiscountPercentage {
		return nil
	}
	pct := c.DiscountValue
	return &pct
}

func sum(ds []decimal.Decimal) decimal.Decimal {
	total := zero
	for _, d := range ds {
		total = total.Add(d)
	}
	return total
}
