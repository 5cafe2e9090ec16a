package coupon

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// bxgyStrategy implements buy-X-get-Y deals.
//
// A product may be listed both as buy and as get product (an overlap
// product). Units of overlap products count toward buy first and a unit is
// never counted on both sides. Lines are always walked in cart order, which
// decides which physical line receives the discount.
type bxgyStrategy struct {
	rule *BxGyRule
}

func (s bxgyStrategy) evaluate(c *Coupon, cart *Cart) outcome {
	buyCount, getCount := s.counts(cart)
	applications := min(
		buyCount/s.rule.BuyQuantity,
		getCount/s.rule.GetQuantity,
		s.rule.RepetitionLimit,
	)
	if applications <= 0 {
		return outcome{
			message: fmt.Sprintf("Not applicable: Need %d buy products (have %d) and %d get products (have %d)",
				s.rule.BuyQuantity, buyCount, s.rule.GetQuantity, getCount),
		}
	}

	lines := s.allocate(c, cart, applications)
	total := sum(lines)
	return outcome{
		applicable: true,
		message:    fmt.Sprintf("Coupon applicable: %d application(s)", applications),
		total:      total,
		lines:      lines,
		breakdown: Breakdown{
			CartTotal:      cart.Total,
			DiscountAmount: total,
			BxGy: &BxGyBreakdown{
				BuyQuantity:  s.rule.BuyQuantity,
				GetQuantity:  s.rule.GetQuantity,
				Applications: applications,
			},
		},
	}
}

// counts returns the number of buy units and the number of get units left
// once overlap units have been reserved for the largest number of whole buy
// batches the cart allows.
func (s bxgyStrategy) counts(cart *Cart) (buyCount, getCount int) {
	for _, l := range cart.Lines {
		if s.rule.BuyProductIDs.Contains(l.ProductID) {
			buyCount += l.Quantity
		}
	}

	needed := (buyCount / s.rule.BuyQuantity) * s.rule.BuyQuantity
	reserved := s.reserveOverlap(cart, needed)

	for i, l := range cart.Lines {
		if s.rule.GetProductIDs.Contains(l.ProductID) {
			getCount += max(l.Quantity-reserved[i], 0)
		}
	}
	return buyCount, getCount
}

// reserveOverlap walks the lines of overlap products in cart order and
// reserves up to need units for the buy side. It returns the reserved units
// per line.
func (s bxgyStrategy) reserveOverlap(cart *Cart, need int) []int {
	overlap := s.rule.BuyProductIDs.Intersect(s.rule.GetProductIDs)
	reserved := make([]int, len(cart.Lines))
	if len(overlap) == 0 {
		return reserved
	}

	for i, l := range cart.Lines {
		if need <= 0 {
			break
		}
		if !overlap.Contains(l.ProductID) {
			continue
		}
		take := min(l.Quantity, need)
		reserved[i] = take
		need -= take
	}
	return reserved
}

// allocate discounts applications*GetQuantity get units. Overlap units needed
// for exactly applications buy batches are reserved first.
func (s bxgyStrategy) allocate(c *Coupon, cart *Cart, applications int) []decimal.Decimal {
	reserved := s.reserveOverlap(cart, applications*s.rule.BuyQuantity)
	remaining := applications * s.rule.GetQuantity

	lines := make([]decimal.Decimal, len(cart.Lines))
	for i, l := range cart.Lines {
		lines[i] = zero
		if remaining <= 0 || !s.rule.GetProductIDs.Contains(l.ProductID) {
			continue
		}

		take := min(l.Quantity-reserved[i], remaining)
		if take <= 0 {
			continue
		}
		lines[i] = s.discountUnits(c, l.UnitPrice, take)
		remaining -= take
	}
	return lines
}

// discountUnits returns the discount for qty get units priced at unitPrice.
func (s bxgyStrategy) discountUnits(c *Coupon, unitPrice decimal.Decimal, qty int) decimal.Decimal {
	units := decimal.NewFromInt(int64(qty))
	amount := unitPrice.Mul(units)

	switch s.rule.DiscountType {
	case BxGyFree:
		return amount
	case BxGyPercentage:
		return PercentageDiscount(amount, c.DiscountValue)
	case BxGyFixedAmountPerUnit:
		return FixedDiscount(amount, c.DiscountValue.Mul(units))
	default:
		return zero
	}
}
