package coupon

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02T15:04:05"

// ValidateDefinition checks a coupon definition before it is stored.
func ValidateDefinition(c *Coupon) error {
	if strings.TrimSpace(c.Code) == "" {
		return invalidCoupon("coupon code is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return invalidCoupon("coupon name is required")
	}
	if c.Rule == nil {
		return invalidCoupon("coupon type is required")
	}
	switch c.DiscountType {
	case DiscountPercentage, DiscountFixedAmount:
	default:
		return invalidCoupon("invalid discount type: %q", c.DiscountType)
	}
	if !c.DiscountValue.IsPositive() {
		return invalidCoupon("discount value must be greater than zero")
	}
	if !hasCents(c.DiscountValue) {
		return invalidCoupon("discount value cannot have more than 2 decimal places")
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return invalidCoupon("start date and end date are required")
	}
	if c.StartDate.After(c.EndDate) {
		return invalidCoupon("start date cannot be after end date")
	}
	if percentageCoupon(c) && c.DiscountValue.GreaterThan(hundred) {
		return invalidCoupon("percentage discount cannot exceed 100%%")
	}
	if c.MaxUsage != nil && *c.MaxUsage < 1 {
		return invalidCoupon("max usage must be at least 1")
	}
	if c.MaxUsagePerUser != nil && *c.MaxUsagePerUser < 1 {
		return invalidCoupon("max usage per user must be at least 1")
	}
	return c.Rule.validate()
}

// percentageCoupon reports whether DiscountValue is read as a percentage.
func percentageCoupon(c *Coupon) bool {
	if c.DiscountType == DiscountPercentage {
		return true
	}
	r, ok := c.Rule.(*BxGyRule)
	return ok && r.DiscountType == BxGyPercentage
}

// hasCents reports whether v fits a NUMERIC(12, 2) column without rounding.
func hasCents(v decimal.Decimal) bool {
	return v.Equal(v.Round(2))
}

func (r *CartWiseRule) validate() error {
	if !r.MinCartAmount.IsPositive() {
		return invalidCoupon("minimum cart amount must be greater than zero")
	}
	if !hasCents(r.MinCartAmount) {
		return invalidCoupon("minimum cart amount cannot have more than 2 decimal places")
	}
	if r.MaxDiscountAmount != nil {
		if !r.MaxDiscountAmount.IsPositive() {
			return invalidCoupon("maximum discount amount must be greater than zero")
		}
		if !hasCents(*r.MaxDiscountAmount) {
			return invalidCoupon("maximum discount amount cannot have more than 2 decimal places")
		}
	}
	return nil
}

func (r *ProductWiseRule) validate() error {
	if len(r.ProductIDs) == 0 {
		return invalidCoupon("product-wise coupon must have at least one applicable product")
	}
	if r.MinQuantity != nil && *r.MinQuantity < 1 {
		return invalidCoupon("minimum quantity must be greater than zero")
	}
	if r.MaxQuantity != nil {
		if *r.MaxQuantity < 1 {
			return invalidCoupon("maximum quantity must be greater than zero")
		}
		if r.MinQuantity != nil && *r.MaxQuantity < *r.MinQuantity {
			return invalidCoupon("maximum quantity cannot be less than minimum quantity")
		}
	}
	return nil
}

func (r *BxGyRule) validate() error {
	switch {
	case len(r.BuyProductIDs) == 0:
		return invalidCoupon("bxgy coupon must have at least one buy product")
	case len(r.GetProductIDs) == 0:
		return invalidCoupon("bxgy coupon must have at least one get product")
	case r.BuyQuantity < 1:
		return invalidCoupon("buy quantity must be greater than zero")
	case r.GetQuantity < 1:
		return invalidCoupon("get quantity must be greater than zero")
	case r.RepetitionLimit < 1:
		return invalidCoupon("repetition limit must be greater than zero")
	}
	switch r.DiscountType {
	case BxGyFree, BxGyPercentage, BxGyFixedAmountPerUnit:
		return nil
	default:
		return invalidCoupon("invalid bxgy discount type: %q", r.DiscountType)
	}
}

// checkEligible verifies c can be redeemed at now by the user whose usage is
// given. A nil usage skips the per-user cap.
func checkEligible(c *Coupon, usage *UserUsage, now time.Time) error {
	if !c.Active {
		return invalidCoupon("coupon is not active")
	}
	if now.Before(c.StartDate) {
		return invalidCoupon("coupon is not yet active, valid from %s", c.StartDate.UTC().Format(dateLayout))
	}
	if now.After(c.EndDate) {
		return invalidCoupon("coupon has expired, valid until %s", c.EndDate.UTC().Format(dateLayout))
	}
	if c.MaxUsage != nil && c.CurrentUsage >= *c.MaxUsage {
		return invalidCoupon("coupon usage limit exceeded")
	}
	if usage != nil && c.MaxUsagePerUser != nil && usage.Count(c.ID) >= *c.MaxUsagePerUser {
		return invalidCoupon("user has exceeded the usage limit for this coupon")
	}
	return nil
}
