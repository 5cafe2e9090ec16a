package coupon

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type cartWiseStrategy struct {
	rule *CartWiseRule
}

func (s cartWiseStrategy) evaluate(c *Coupon, cart *Cart) outcome {
	if !cart.Total.IsPositive() || cart.Total.LessThan(s.rule.MinCartAmount) {
		return outcome{
			message: fmt.Sprintf("Cart total (%s) is less than minimum required (%s)",
				cart.Total.StringFixed(2), s.rule.MinCartAmount.StringFixed(2)),
		}
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		discount = CapDiscount(PercentageDiscount(cart.Total, c.DiscountValue), s.rule.MaxDiscountAmount)
	default:
		discount = FixedDiscount(cart.Total, c.DiscountValue)
	}

	return outcome{
		applicable: true,
		message:    "Coupon applicable",
		total:      discount,
		lines:      spreadProportionally(cart, discount),
		breakdown: Breakdown{
			CartTotal:          cart.Total,
			DiscountAmount:     discount,
			DiscountPercentage: percentageOf(c),
		},
	}
}

// spreadProportionally gives every line the share of discount matching its
// share of the cart total, so each line keeps (total - discount) / total of
// its amount.
func spreadProportionally(cart *Cart, discount decimal.Decimal) []decimal.Decimal {
	lines := make([]decimal.Decimal, len(cart.Lines))
	for i, l := range cart.Lines {
		lines[i] = l.Amount().Mul(discount).Div(cart.Total)
	}
	return lines
}
