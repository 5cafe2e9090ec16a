package coupon

import "fmt"

// InvalidCartError indicates a malformed cart.
type InvalidCartError struct {
	Reason string
}

func (e *InvalidCartError) Error() string {
	return "invalid cart: " + e.Reason
}

// InvalidCouponError indicates a malformed coupon definition or a coupon that
// cannot be used right now (inactive, outside its window, caps exhausted).
type InvalidCouponError struct {
	Reason string
}

func (e *InvalidCouponError) Error() string {
	return e.Reason
}

// CouponNotApplicableError indicates the cart does not satisfy the coupon's rule.
type CouponNotApplicableError struct {
	CouponID int64
	Reason   string
}

func (e *CouponNotApplicableError) Error() string {
	return e.Reason
}

// CouponNotFoundError indicates no coupon exists with the given id.
type CouponNotFoundError struct {
	ID int64
}

func (e *CouponNotFoundError) Error() string {
	return fmt.Sprintf("coupon not found with id %d", e.ID)
}

// DuplicateCouponCodeError indicates another coupon already uses Code.
type DuplicateCouponCodeError struct {
	Code string
}

func (e *DuplicateCouponCodeError) Error() string {
	return fmt.Sprintf("coupon code already exists: %s", e.Code)
}

func invalidCoupon(format string, args ...any) *InvalidCouponError {
	return &InvalidCouponError{Reason: fmt.Sprintf(format, args...)}
}

func invalidCart(format string, args ...any) *InvalidCartError {
	return &InvalidCartError{Reason: fmt.Sprintf(format, args...)}
}
