package coupon

import "github.com/shopspring/decimal"

// MaxLineQuantity bounds the quantity of a single cart line so that quantity
// sums across a cart cannot overflow.
const MaxLineQuantity = 1_000_000

// Cart is a validated list of lines with its total.
type Cart struct {
	Lines []Line
	Total decimal.Decimal
}

// NormalizeCart validates lines and computes the cart total. Lines are kept in
// the given order; duplicates of the same product are not merged.
func NormalizeCart(lines []Line) (*Cart, error) {
	if len(lines) == 0 {
		return nil, invalidCart("cart items cannot be empty")
	}

	total := zero
	for _, l := range lines {
		if l.ProductID <= 0 {
			return nil, invalidCart("product id is required for all cart items")
		}
		if l.Quantity <= 0 {
			return nil, invalidCart("quantity must be positive for product %d", l.ProductID)
		}
		if l.Quantity > MaxLineQuantity {
			return nil, invalidCart("quantity cannot exceed %d for product %d", MaxLineQuantity, l.ProductID)
		}
		if !l.UnitPrice.IsPositive() {
			return nil, invalidCart("unit price must be positive for product %d", l.ProductID)
		}
		total = total.Add(l.Amount())
	}

	return &Cart{Lines: lines, Total: total}, nil
}
